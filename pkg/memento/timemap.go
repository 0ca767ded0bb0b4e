// ABOUTME: TimeMap listing in application/link-format
// ABOUTME: Original, TimeGate and self entries followed by every version

package memento

import (
	"context"

	"github.com/nainya/timegate/pkg/linkrel"
	"github.com/nainya/timegate/pkg/version"
)

// TimeMap lists the versions of a resource
type TimeMap struct {
	locator *version.Locator
	uris    URIs
}

// NewTimeMap creates a TimeMap over locator
func NewTimeMap(locator *version.Locator, conf Config) *TimeMap {
	return &TimeMap{locator: locator, uris: NewURIs(conf)}
}

// Build returns the TimeMap of title
func (m *TimeMap) Build(ctx context.Context, title string) (linkrel.Set, error) {
	res, err := m.locator.Resolve(ctx, title)
	if err != nil {
		return nil, storeFailure(title, err)
	}
	if res == nil {
		return nil, notFound(title)
	}

	versions, err := m.locator.List(ctx, *res)
	if err != nil {
		return nil, storeFailure(title, err)
	}
	if len(versions) == 0 {
		return nil, notFound(title)
	}

	first, last := versions[0], versions[len(versions)-1]

	var set linkrel.Set
	set.Add(linkrel.Original(m.uris.Original(res.Title)))
	set.Add(linkrel.TimeGate(m.uris.TimeGate(res.Title)))
	self := linkrel.TimeMap(m.uris.TimeMap(res.Title), first.Timestamp, last.Timestamp)
	self.Rels = []string{linkrel.REL_SELF}
	set.Add(self)

	for i, v := range versions {
		var rels []string
		if i == 0 {
			rels = append(rels, linkrel.REL_FIRST)
		}
		if i == len(versions)-1 {
			rels = append(rels, linkrel.REL_LAST)
		}
		rels = append(rels, linkrel.REL_MEMENTO)

		set.Add(linkrel.Link{
			URI:      m.uris.Memento(res.Title, v.ID),
			Rels:     rels,
			Datetime: v.Timestamp,
		})
	}

	return set, nil
}
