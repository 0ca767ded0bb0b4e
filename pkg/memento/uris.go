package memento

import (
	"net/url"
	"strconv"
	"strings"
)

// URIs derives every advertised link from the configured base
type URIs struct {
	base   string
	inline bool
}

// NewURIs builds link derivation for conf
func NewURIs(conf Config) URIs {
	return URIs{
		base:   strings.TrimRight(conf.BaseURI, "/"),
		inline: conf.Negotiation == NEGOTIATION_INLINE,
	}
}

// Original is the live resource
func (u URIs) Original(title string) string {
	return u.base + "/page/" + url.PathEscape(title)
}

// Memento is one historical version
func (u URIs) Memento(title string, id int64) string {
	return u.Original(title) + "?oldid=" + strconv.FormatInt(id, 10)
}

// TimeGate is the negotiation endpoint. In inline mode the original
// resource negotiates for itself.
func (u URIs) TimeGate(title string) string {
	if u.inline {
		return u.Original(title)
	}
	return u.base + "/timegate/" + url.PathEscape(title)
}

// TimeMap lists every version
func (u URIs) TimeMap(title string) string {
	return u.base + "/timemap/" + url.PathEscape(title)
}
