// ABOUTME: Entry point for page requests
// ABOUTME: Resolves the title, applies exclusions, classifies and dispatches

package memento

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nainya/timegate/pkg/linkrel"
	"github.com/nainya/timegate/pkg/version"
)

// Resource serves page requests
type Resource struct {
	locator *version.Locator
	conf    Config
	direct  *Direct
}

// NewResource creates a Resource over locator
func NewResource(locator *version.Locator, conf Config) *Resource {
	return &Resource{
		locator: locator,
		conf:    conf,
		direct:  NewDirect(locator, conf),
	}
}

// Serve answers a page request
func (r *Resource) Serve(ctx context.Context, req Request) (*Response, error) {
	res, err := r.locator.Resolve(ctx, req.Title)
	if err != nil {
		return nil, storeFailure(req.Title, err)
	}
	if res == nil {
		return nil, notFound(req.Title)
	}

	behavior := Classify(req.HasVersionID, req.HasMoment(), r.conf.Negotiation)

	if r.conf.Excluded(*res) {
		zerolog.Ctx(ctx).Debug().
			Str("title", res.Title).
			Msg("Negotiation disabled for resource")
		return r.excluded(ctx, *res, req)
	}

	switch behavior {
	case DirectAccess:
		return r.direct.Memento(ctx, *res, req.VersionID)
	case NegotiatedInline:
		return r.direct.Negotiated(ctx, *res, req.AcceptDatetime)
	default:
		return r.direct.Original(ctx, *res)
	}
}

// excluded serves the addressed version or the live resource with only the
// donotnegotiate marker.
func (r *Resource) excluded(ctx context.Context, res version.Resource, req Request) (*Response, error) {
	resp := &Response{
		Behavior: OriginalDirect,
		Status:   http.StatusOK,
		Header:   http.Header{},
		Resource: res,
	}

	if req.HasVersionID {
		v, err := r.locator.ByID(ctx, res, req.VersionID)
		if err != nil {
			return nil, storeFailure(res.Title, err)
		}
		if v == nil {
			return nil, notFound(res.Title)
		}
		resp.Behavior = DirectAccess
		resp.Version = v
	}

	resp.Header.Set(HEADER_LINK, linkrel.DoNotNegotiate().String())
	return resp, nil
}
