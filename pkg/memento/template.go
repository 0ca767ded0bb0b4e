package memento

import (
	"context"
	"strings"

	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// TemplatePinner chooses which version of an embedded sub-resource to
// render alongside a negotiated page. It never writes to the store.
type TemplatePinner struct {
	locator *version.Locator
}

// NewTemplatePinner creates a pinner over locator
func NewTemplatePinner(locator *version.Locator) *TemplatePinner {
	return &TemplatePinner{locator: locator}
}

// Pin returns the version of tmpl to render for acceptDatetime. A nil
// version means render the current one.
func (p *TemplatePinner) Pin(ctx context.Context, tmpl version.Resource, acceptDatetime string) (*version.Version, error) {
	if strings.TrimSpace(acceptDatetime) == "" {
		return nil, nil
	}

	moment, err := timestamp.Parse(acceptDatetime)
	if err != nil {
		return nil, err
	}

	first, err := p.locator.First(ctx, tmpl)
	if err != nil || first == nil {
		return nil, err
	}

	// requests before the template existed get its first version
	if !moment.After(first.Timestamp) {
		return first, nil
	}
	return p.locator.AtOrBefore(ctx, tmpl, moment)
}
