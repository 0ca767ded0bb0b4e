// ABOUTME: Negotiation configuration passed explicitly into every controller
// ABOUTME: Negotiation mode, relation verbosity, exclusions and link base

package memento

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nainya/timegate/pkg/version"
)

// NegotiationMode selects how datetime negotiation is answered
type NegotiationMode int

const (
	// NEGOTIATION_REDIRECT sends clients to a separate TimeGate that answers 302
	NEGOTIATION_REDIRECT NegotiationMode = iota
	// NEGOTIATION_INLINE answers negotiation on the original URI with 200
	NEGOTIATION_INLINE
)

func (m NegotiationMode) String() string {
	switch m {
	case NEGOTIATION_INLINE:
		return "inline"
	case NEGOTIATION_REDIRECT:
		return "redirect"
	default:
		return fmt.Sprintf("NegotiationMode(%d)", int(m))
	}
}

// ParseNegotiationMode accepts "inline", "redirect" and the legacy "200"/"302"
func ParseNegotiationMode(s string) (NegotiationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inline", "200":
		return NEGOTIATION_INLINE, nil
	case "redirect", "302", "":
		return NEGOTIATION_REDIRECT, nil
	default:
		return 0, fmt.Errorf("unknown negotiation mode %q", s)
	}
}

// ErrorPageStyle selects how failures are presented
type ErrorPageStyle string

const (
	ERROR_PAGES_TRADITIONAL ErrorPageStyle = "traditional" // status and plain text
	ERROR_PAGES_FRIENDLY    ErrorPageStyle = "friendly"    // full HTML page
)

// Config is immutable once handed to a controller
type Config struct {
	Negotiation          NegotiationMode
	RecommendedRelations bool
	ExcludeNamespaces    []string
	ExcludeCategories    []string
	BaseURI              string
	ErrorPages           ErrorPageStyle
}

// Excluded reports whether res opted out of negotiation through its
// namespace or one of its categories.
func (c Config) Excluded(res version.Resource) bool {
	if slices.Contains(c.ExcludeNamespaces, res.Namespace()) {
		return true
	}
	for _, cat := range res.Categories {
		if slices.Contains(c.ExcludeCategories, cat) {
			return true
		}
	}
	return false
}
