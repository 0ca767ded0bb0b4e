// ABOUTME: Redirecting TimeGate
// ABOUTME: Validates, resolves the requested moment and answers 302 to the selected version

package memento

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nainya/timegate/pkg/linkrel"
	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// TimeGate negotiates a requested datetime into a redirect
type TimeGate struct {
	locator *version.Locator
	uris    URIs
}

// NewTimeGate creates a TimeGate over locator
func NewTimeGate(locator *version.Locator, conf Config) *TimeGate {
	return &TimeGate{locator: locator, uris: NewURIs(conf)}
}

// Negotiate runs the TimeGate state machine. Any validation failure
// returns an *Error immediately, skipping later steps.
func (g *TimeGate) Negotiate(ctx context.Context, req Request) (*Response, error) {
	log := zerolog.Ctx(ctx)

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		h := http.Header{}
		h.Set(HEADER_ALLOW, ALLOWED_METHODS)
		h.Set(HEADER_VARY, HEADER_ACCEPT_DATETIME)
		return nil, &Error{Kind: KindInvalidMethod, Title: req.Title, Header: h}
	}

	res, err := g.locator.Resolve(ctx, req.Title)
	if err != nil {
		return nil, storeFailure(req.Title, err)
	}
	if res == nil {
		return nil, notFound(req.Title)
	}

	// a title without history cannot be negotiated
	rng, err := g.locator.Range(ctx, *res)
	if err != nil {
		return nil, storeFailure(req.Title, err)
	}
	if rng == nil {
		return nil, notFound(req.Title)
	}

	requested, err := timestamp.Parse(req.AcceptDatetime)
	if err != nil {
		set := g.uris.navigation(res.Title, *rng, version.Neighbors{})
		g.annotate(&set, res.Title, *rng)

		h := http.Header{}
		h.Set(HEADER_VARY, HEADER_ACCEPT_DATETIME)
		h.Set(HEADER_LINK, set.String())

		log.Debug().
			Str("title", res.Title).
			Str("accept_datetime", req.AcceptDatetime).
			Msg("Unusable Accept-Datetime")

		return nil, &Error{
			Kind:              KindInvalidMoment,
			Title:             res.Title,
			RequestedDatetime: req.AcceptDatetime,
			FirstURI:          g.uris.Memento(res.Title, rng.First.ID),
			LastURI:           g.uris.Memento(res.Title, rng.Last.ID),
			Header:            h,
			Err:               err,
		}
	}

	moment := rng.Clamp(requested)
	around, err := g.locator.Around(ctx, *res, moment)
	if err != nil {
		return nil, storeFailure(req.Title, err)
	}
	if around.Current == nil {
		return nil, notFound(req.Title)
	}

	set := g.uris.navigation(res.Title, *rng, around)
	g.annotate(&set, res.Title, *rng)

	h := http.Header{}
	h.Set(HEADER_VARY, HEADER_ACCEPT_DATETIME)
	h.Set(HEADER_LINK, set.String())
	h.Set(HEADER_LOCATION, g.uris.Memento(res.Title, around.Current.ID))

	log.Debug().
		Str("title", res.Title).
		Time("requested", requested).
		Time("resolved", moment).
		Int64("version", around.Current.ID).
		Msg("Negotiated")

	return &Response{
		Behavior: Redirected,
		Status:   http.StatusFound,
		Header:   h,
		Resource: *res,
		Version:  around.Current,
	}, nil
}

// annotate appends the original and timemap entries
func (g *TimeGate) annotate(set *linkrel.Set, title string, rng version.Range) {
	set.Add(linkrel.Original(g.uris.Original(title)))
	set.Add(linkrel.TimeMap(g.uris.TimeMap(title), rng.First.Timestamp, rng.Last.Timestamp))
}
