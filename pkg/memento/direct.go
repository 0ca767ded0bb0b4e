// ABOUTME: Direct access to versions and to the live resource
// ABOUTME: Memento-Datetime and relation sets for addressed, negotiated and original responses

package memento

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/timegate/pkg/linkrel"
	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// Direct serves resources without redirecting
type Direct struct {
	locator     *version.Locator
	uris        URIs
	recommended bool
	inline      bool
}

// NewDirect creates a Direct controller over locator
func NewDirect(locator *version.Locator, conf Config) *Direct {
	return &Direct{
		locator:     locator,
		uris:        NewURIs(conf),
		recommended: conf.RecommendedRelations,
		inline:      conf.Negotiation == NEGOTIATION_INLINE,
	}
}

// Memento serves version id of res
func (d *Direct) Memento(ctx context.Context, res version.Resource, id int64) (*Response, error) {
	v, err := d.locator.ByID(ctx, res, id)
	if err != nil {
		return nil, storeFailure(res.Title, err)
	}
	if v == nil {
		return nil, notFound(res.Title)
	}

	// the live resource is advertised as its own TimeGate in every mode
	var set linkrel.Set
	set.Add(linkrel.Original(d.uris.Original(res.Title), linkrel.REL_TIMEGATE))

	if d.recommended {
		rng, err := d.locator.Range(ctx, res)
		if err != nil {
			return nil, storeFailure(res.Title, err)
		}
		if rng == nil {
			return nil, notFound(res.Title)
		}
		around, err := d.locator.Around(ctx, res, v.Timestamp)
		if err != nil {
			return nil, storeFailure(res.Title, err)
		}
		// the addressed version, not whichever shares its timestamp
		around.Current = v

		set.Add(linkrel.TimeMap(d.uris.TimeMap(res.Title), rng.First.Timestamp, rng.Last.Timestamp))
		for _, l := range d.uris.navigation(res.Title, *rng, around) {
			set.Add(l)
		}
	} else {
		set.Add(linkrel.TimeMap(d.uris.TimeMap(res.Title), time.Time{}, time.Time{}))
		set.Add(linkrel.Link{
			URI:      d.uris.Memento(res.Title, v.ID),
			Rels:     []string{linkrel.REL_MEMENTO},
			Datetime: v.Timestamp,
		})
	}

	zerolog.Ctx(ctx).Debug().
		Str("title", res.Title).
		Int64("version", v.ID).
		Msg("Serving memento")

	return &Response{
		Behavior: DirectAccess,
		Status:   http.StatusOK,
		Header:   mementoHeader(set, *v),
		Resource: res,
		Version:  v,
	}, nil
}

// Negotiated resolves acceptDatetime on the original URI and serves the
// selected version there.
func (d *Direct) Negotiated(ctx context.Context, res version.Resource, acceptDatetime string) (*Response, error) {
	rng, err := d.locator.Range(ctx, res)
	if err != nil {
		return nil, storeFailure(res.Title, err)
	}
	if rng == nil {
		return nil, notFound(res.Title)
	}

	requested, err := timestamp.Parse(acceptDatetime)
	if err != nil {
		h := http.Header{}
		h.Set(HEADER_VARY, HEADER_ACCEPT_DATETIME)
		return nil, &Error{
			Kind:              KindInvalidMoment,
			Title:             res.Title,
			RequestedDatetime: acceptDatetime,
			FirstURI:          d.uris.Memento(res.Title, rng.First.ID),
			LastURI:           d.uris.Memento(res.Title, rng.Last.ID),
			Header:            h,
			Err:               err,
		}
	}

	around, err := d.locator.Around(ctx, res, rng.Clamp(requested))
	if err != nil {
		return nil, storeFailure(res.Title, err)
	}
	if around.Current == nil {
		return nil, notFound(res.Title)
	}

	var set linkrel.Set
	d.original(&set, res.Title)
	set.Add(linkrel.TimeMap(d.uris.TimeMap(res.Title), rng.First.Timestamp, rng.Last.Timestamp))
	for _, l := range d.uris.navigation(res.Title, *rng, around) {
		set.Add(l)
	}

	h := mementoHeader(set, *around.Current)
	h.Set(HEADER_VARY, HEADER_ACCEPT_DATETIME)
	h.Set(HEADER_CONTENT_LOCATION, d.uris.Memento(res.Title, around.Current.ID))

	zerolog.Ctx(ctx).Debug().
		Str("title", res.Title).
		Time("requested", requested).
		Int64("version", around.Current.ID).
		Msg("Negotiated inline")

	return &Response{
		Behavior: NegotiatedInline,
		Status:   http.StatusOK,
		Header:   h,
		Resource: res,
		Version:  around.Current,
	}, nil
}

// Original serves the live resource and points at its TimeGate
func (d *Direct) Original(_ context.Context, res version.Resource) (*Response, error) {
	var set linkrel.Set
	h := http.Header{}
	if d.inline {
		d.original(&set, res.Title)
		h.Set(HEADER_VARY, HEADER_ACCEPT_DATETIME)
	} else {
		set.Add(linkrel.TimeGate(d.uris.TimeGate(res.Title)))
	}
	h.Set(HEADER_LINK, set.String())

	return &Response{
		Behavior: OriginalDirect,
		Status:   http.StatusOK,
		Header:   h,
		Resource: res,
	}, nil
}

// original adds the live resource and its TimeGate, which share one entry
// when the original negotiates for itself.
func (d *Direct) original(set *linkrel.Set, title string) {
	set.Add(linkrel.Original(d.uris.Original(title)))
	set.Add(linkrel.TimeGate(d.uris.TimeGate(title)))
}
