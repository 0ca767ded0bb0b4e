// ABOUTME: Link header entries and collections
// ABOUTME: Rendering, merging by URI and parsing of RFC 8288 link values

package linkrel

import (
	"strings"
	"time"

	"github.com/nainya/timegate/pkg/timestamp"
)

// Relation names used by the Memento protocol
const (
	REL_ORIGINAL    = "original"
	REL_LATEST      = "latest-version"
	REL_TIMEGATE    = "timegate"
	REL_TIMEMAP     = "timemap"
	REL_MEMENTO     = "memento"
	REL_FIRST       = "first"
	REL_LAST        = "last"
	REL_PREV        = "prev"
	REL_PREDECESSOR = "predecessor-version"
	REL_NEXT        = "next"
	REL_SUCCESSOR   = "successor-version"
	REL_TYPE        = "type"
	REL_SELF        = "self"
)

// LINK_FORMAT is the media type of a TimeMap
const LINK_FORMAT = "application/link-format"

// DO_NOT_NEGOTIATE marks a resource that opts out of datetime negotiation
const DO_NOT_NEGOTIATE = "http://mementoweb.org/terms/donotnegotiate"

// Link is one entry of a Link header
type Link struct {
	URI      string
	Rels     []string
	Datetime time.Time // Omitted when zero
	Type     string
	From     time.Time
	Until    time.Time
}

// Has reports whether the entry carries relation name rel
func (l Link) Has(rel string) bool {
	for _, r := range l.Rels {
		if r == rel {
			return true
		}
	}
	return false
}

// Rel returns the relation names as they appear in the rel parameter
func (l Link) Rel() string {
	return strings.Join(l.Rels, " ")
}

func (l Link) String() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(l.URI)
	b.WriteString(`>; rel="`)
	b.WriteString(l.Rel())
	b.WriteString(`"`)
	if l.Type != "" {
		writeParam(&b, "type", l.Type)
	}
	if !l.Datetime.IsZero() {
		writeParam(&b, "datetime", timestamp.Format(l.Datetime))
	}
	if !l.From.IsZero() {
		writeParam(&b, "from", timestamp.Format(l.From))
	}
	if !l.Until.IsZero() {
		writeParam(&b, "until", timestamp.Format(l.Until))
	}
	return b.String()
}

func writeParam(b *strings.Builder, name, value string) {
	b.WriteString("; ")
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(value)
	b.WriteString(`"`)
}

// Set is an ordered collection of entries. A URI appears at most once.
type Set []Link

// Add appends l, or merges its relation names into the existing entry for
// the same URI.
func (s *Set) Add(l Link) {
	for i := range *s {
		existing := &(*s)[i]
		if existing.URI != l.URI {
			continue
		}
		for _, rel := range l.Rels {
			if !existing.Has(rel) {
				existing.Rels = append(existing.Rels, rel)
			}
		}
		if existing.Datetime.IsZero() {
			existing.Datetime = l.Datetime
		}
		return
	}
	*s = append(*s, l)
}

// Find returns the first entry carrying rel
func (s Set) Find(rel string) (Link, bool) {
	for _, l := range s {
		if l.Has(rel) {
			return l, true
		}
	}
	return Link{}, false
}

// Document renders the set one entry per line, as served in a TimeMap body
func (s Set) Document() string {
	var b strings.Builder
	for i, l := range s {
		b.WriteString(l.String())
		if i < len(s)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s Set) String() string {
	entries := make([]string, len(s))
	for i, l := range s {
		entries[i] = l.String()
	}
	return strings.Join(entries, ", ")
}
