// ABOUTME: Datetime conversions at the Memento protocol boundary
// ABOUTME: Parses Accept-Datetime, formats Memento-Datetime, clamps into a version range

package timestamp

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	WIRE_LAYOUT    = "Mon, 02 Jan 2006 15:04:05 GMT" // RFC 1123, always GMT on output
	STORAGE_LAYOUT = "20060102150405"                // compact numeric form used by the stores
)

// Layouts accepted from clients, tried in order. The day of month may be
// one or two digits.
var wireLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC850,
	time.ANSIC,
}

// Named zones accepted in a wire datetime, with their offsets in hours.
// GMT and UTC plus the obsolete North American zones of RFC 2822.
var zoneOffsets = map[string]int{
	"GMT": 0,
	"UTC": 0,
	"UT":  0,
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

// ErrParse is wrapped by every ParseError.
var ErrParse = errors.New("invalid datetime")

// ParseError reports a datetime that could not be understood.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid datetime %q", e.Input)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Parse converts a wire datetime into an instant truncated to the second.
// Surrounding double quotes are ignored. Anything unparseable is a
// *ParseError; there is no fallback to "now" or the epoch.
func Parse(wire string) (time.Time, error) {
	s := strings.TrimSpace(wire)
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return time.Time{}, &ParseError{Input: wire}
	}

	for _, layout := range wireLayouts {
		// parsing in UTC keeps the written wall clock and zone name intact;
		// abbreviations other than UTC come back with offset 0
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "MST") {
			if t, err = applyZone(t); err != nil {
				return time.Time{}, &ParseError{Input: wire}
			}
		}
		return t.UTC().Truncate(time.Second), nil
	}

	return time.Time{}, &ParseError{Input: wire}
}

// applyZone reinterprets the wall clock of t in its named zone
func applyZone(t time.Time) (time.Time, error) {
	name, _ := t.Zone()
	hours, ok := zoneOffsets[name]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown zone %q", name)
	}
	zone := time.FixedZone(name, hours*60*60)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone), nil
}

// Format renders an instant as a wire datetime.
func Format(t time.Time) string {
	return t.UTC().Format(WIRE_LAYOUT)
}

// ToStorage renders an instant in the compact storage form.
func ToStorage(t time.Time) string {
	return t.UTC().Format(STORAGE_LAYOUT)
}

// FromStorage parses the compact storage form.
func FromStorage(s string) (time.Time, error) {
	if len(s) != len(STORAGE_LAYOUT) {
		return time.Time{}, &ParseError{Input: s}
	}
	t, err := time.ParseInLocation(STORAGE_LAYOUT, s, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Input: s}
	}
	return t, nil
}

// Clamp moves requested into [first, last]. Callers guarantee first <= last.
func Clamp(requested, first, last time.Time) time.Time {
	if requested.Before(first) {
		return first
	}
	if requested.After(last) {
		return last
	}
	return requested
}
