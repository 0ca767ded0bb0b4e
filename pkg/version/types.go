// ABOUTME: Version data model for time-based negotiation
// ABOUTME: Versions, derived ranges and resource identities

package version

import (
	"strings"
	"time"

	"github.com/nainya/timegate/pkg/timestamp"
)

// Version is one immutable point in a resource's history
type Version struct {
	ID        int64     // Store-assigned, monotonic per store
	Timestamp time.Time // Second granularity, UTC
}

// Less orders versions by timestamp, then by identifier
func (v Version) Less(o Version) bool {
	if v.Timestamp.Equal(o.Timestamp) {
		return v.ID < o.ID
	}
	return v.Timestamp.Before(o.Timestamp)
}

// Range is derived from a resource's first and last versions
type Range struct {
	First Version
	Last  Version
}

// Single reports whether the resource has exactly one version
func (r Range) Single() bool {
	return r.First.ID == r.Last.ID
}

// Clamp resolves a requested moment into the range
func (r Range) Clamp(requested time.Time) time.Time {
	return timestamp.Clamp(requested, r.First.Timestamp, r.Last.Timestamp)
}

// Resource is the lookup key for every version query. It is produced by
// title resolution and treated as opaque by the negotiation code.
type Resource struct {
	Title      string   // Namespace-qualified title, e.g. "Template:Infobox"
	PageID     int64    // Page identifier
	Categories []string // Categories the page belongs to
}

// Namespace returns the title prefix before the first colon, or "" for the
// main namespace.
func (r Resource) Namespace() string {
	ns, _, found := strings.Cut(r.Title, ":")
	if !found {
		return ""
	}
	return ns
}

// Neighbors are the versions around a resolved moment
type Neighbors struct {
	Current  *Version // Greatest timestamp <= moment
	Next     *Version // Least timestamp > moment
	Previous *Version // Greatest timestamp < moment
}
