// ABOUTME: Negotiation failures with the context needed to render them
// ABOUTME: Each kind maps onto an HTTP status and a message key

package memento

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nainya/timegate/pkg/version"
)

// Kind classifies a negotiation failure
type Kind int

const (
	KindInvalidMethod Kind = iota
	KindResourceNotFound
	KindInvalidMoment
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidMethod:
		return "InvalidMethod"
	case KindResourceNotFound:
		return "ResourceNotFound"
	case KindInvalidMoment:
		return "InvalidOrMissingMoment"
	case KindStoreUnavailable:
		return "StoreUnavailable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by the controllers. It is never rendered here; Header
// holds the headers that must accompany the failure response.
type Error struct {
	Kind              Kind
	Title             string
	RequestedDatetime string
	FirstURI          string
	LastURI           string
	Header            http.Header
	Err               error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %q", e.Kind, e.Title)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode is the HTTP status for the failure
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidMethod:
		return http.StatusMethodNotAllowed
	case KindResourceNotFound:
		return http.StatusNotFound
	case KindInvalidMoment:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// MessageKey identifies the message shown to users
func (e *Error) MessageKey() string {
	switch e.Kind {
	case KindInvalidMethod:
		return "timegate-405-badmethod"
	case KindResourceNotFound:
		return "timegate-404-title"
	case KindInvalidMoment:
		return "timegate-400-date"
	default:
		return "timegate-503-store"
	}
}

// Message is the plain-text explanation for the failure
func (e *Error) Message() string {
	switch e.Kind {
	case KindInvalidMethod:
		return "The TimeGate only answers GET and HEAD requests."
	case KindResourceNotFound:
		return fmt.Sprintf("No version history is known for %q.", e.Title)
	case KindInvalidMoment:
		if e.RequestedDatetime == "" {
			return fmt.Sprintf("Negotiating %q requires an Accept-Datetime header. "+
				"The first version is %s and the last version is %s.", e.Title, e.FirstURI, e.LastURI)
		}
		return fmt.Sprintf("The requested datetime %q for %q could not be understood. "+
			"The first version is %s and the last version is %s.",
			e.RequestedDatetime, e.Title, e.FirstURI, e.LastURI)
	default:
		return "The version store is unavailable. Try again later."
	}
}

func notFound(title string) *Error {
	return &Error{Kind: KindResourceNotFound, Title: title}
}

// storeFailure converts a locator error into a StoreUnavailable failure.
// Anything already classified passes through untouched.
func storeFailure(title string, err error) error {
	var merr *Error
	if errors.As(err, &merr) {
		return err
	}
	if !errors.Is(err, version.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", version.ErrStoreUnavailable, err)
	}
	return &Error{Kind: KindStoreUnavailable, Title: title, Err: err}
}
