// ABOUTME: Per-request behaviour selection
// ABOUTME: Direct access, inline negotiation or the original resource

package memento

import "fmt"

// Behavior is the response behaviour chosen for a request
type Behavior int

const (
	// DirectAccess serves an explicitly addressed version
	DirectAccess Behavior = iota
	// NegotiatedInline serves the negotiated version on the original URI
	NegotiatedInline
	// OriginalDirect serves the live resource and advertises its TimeGate
	OriginalDirect
	// Redirected is reported by the TimeGate; Classify never returns it
	Redirected
)

func (b Behavior) String() string {
	switch b {
	case DirectAccess:
		return "direct_access"
	case NegotiatedInline:
		return "negotiated_inline"
	case OriginalDirect:
		return "original_direct"
	case Redirected:
		return "redirected"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// Classify picks the behaviour for a request. A version identifier always
// wins; a requested moment only matters in inline mode.
func Classify(hasVersionID, hasMoment bool, mode NegotiationMode) Behavior {
	switch {
	case hasVersionID:
		return DirectAccess
	case hasMoment && mode == NEGOTIATION_INLINE:
		return NegotiatedInline
	default:
		return OriginalDirect
	}
}
