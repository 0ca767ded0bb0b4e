// ABOUTME: Request and response values exchanged with the transport
// ABOUTME: Header names and helpers shared by the controllers

package memento

import (
	"net/http"
	"strings"

	"github.com/nainya/timegate/pkg/linkrel"
	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// Header names
const (
	HEADER_ACCEPT_DATETIME  = "Accept-Datetime"
	HEADER_MEMENTO_DATETIME = "Memento-Datetime"
	HEADER_LINK             = "Link"
	HEADER_VARY             = "Vary"
	HEADER_ALLOW            = "Allow"
	HEADER_LOCATION         = "Location"
	HEADER_CONTENT_LOCATION = "Content-Location"
)

// ALLOWED_METHODS is advertised when the TimeGate rejects a method
const ALLOWED_METHODS = "GET, HEAD"

// Request is the transport-independent view of an incoming request
type Request struct {
	Method         string
	Title          string
	VersionID      int64
	HasVersionID   bool
	AcceptDatetime string
}

// HasMoment reports whether the client asked for a datetime
func (r Request) HasMoment() bool {
	return strings.TrimSpace(r.AcceptDatetime) != ""
}

// Response tells the transport what to emit. Version is nil when the live
// resource is served.
type Response struct {
	Behavior Behavior
	Status   int
	Header   http.Header
	Resource version.Resource
	Version  *version.Version
}

func (u URIs) entry(title string, v *version.Version) *linkrel.Entry {
	if v == nil {
		return nil
	}
	return &linkrel.Entry{URI: u.Memento(title, v.ID), Datetime: v.Timestamp}
}

// navigation renders the collapsed first/last/memento/next/prev entries
func (u URIs) navigation(title string, r version.Range, n version.Neighbors) linkrel.Set {
	return linkrel.Build(
		u.entry(title, &r.First),
		u.entry(title, &r.Last),
		u.entry(title, n.Current),
		u.entry(title, n.Next),
		u.entry(title, n.Previous),
	)
}

func mementoHeader(set linkrel.Set, v version.Version) http.Header {
	h := http.Header{}
	h.Set(HEADER_MEMENTO_DATETIME, timestamp.Format(v.Timestamp))
	h.Set(HEADER_LINK, set.String())
	return h
}
