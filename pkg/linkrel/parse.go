// ABOUTME: Link header parsing on top of tomnomnom/linkheader
// ABOUTME: Converts Memento datetime, from and until parameters into instants

package linkrel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomnomnom/linkheader"

	"github.com/nainya/timegate/pkg/timestamp"
)

// ErrMalformed is returned for link values that cannot be parsed
var ErrMalformed = errors.New("malformed link header")

// linkheader splits on every comma and semicolon, so separators inside
// targets and quoted values are swapped for these before parsing.
const (
	maskComma = "\x00"
	maskSemi  = "\x01"
)

var unmask = strings.NewReplacer(maskComma, ",", maskSemi, ";")

// Parse reads a Link header value into a Set. Unknown parameters are
// ignored. Datetime parameters must be in wire format.
func Parse(header string) (Set, error) {
	masked, err := mask(header)
	if err != nil {
		return nil, err
	}

	entries := 0
	for _, chunk := range strings.Split(masked, ",") {
		if strings.TrimSpace(chunk) != "" {
			entries++
		}
	}

	parsed := linkheader.Parse(masked)
	if len(parsed) != entries {
		return nil, fmt.Errorf("%w: %q: entry without target", ErrMalformed, header)
	}

	set := make(Set, 0, len(parsed))
	for _, raw := range parsed {
		l, err := convert(raw)
		if err != nil {
			return nil, err
		}
		set = append(set, l)
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set, nil
}

func convert(raw linkheader.Link) (Link, error) {
	l := Link{
		URI:  unmask.Replace(raw.URL),
		Rels: strings.Fields(unmask.Replace(raw.Rel)),
	}
	if len(l.Rels) == 0 {
		return Link{}, fmt.Errorf("%w: <%s>: no relation", ErrMalformed, l.URI)
	}

	for name, value := range raw.Params {
		value = unmask.Replace(value)

		var err error
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "type":
			l.Type = value
		case "datetime":
			l.Datetime, err = timestamp.Parse(value)
		case "from":
			l.From, err = timestamp.Parse(value)
		case "until":
			l.Until, err = timestamp.Parse(value)
		}
		if err != nil {
			return Link{}, fmt.Errorf("%w: <%s>: %w", ErrMalformed, l.URI, err)
		}
	}
	return l, nil
}

// mask hides separators inside <...> and "..." from linkheader and turns
// line breaks between entries into spaces
func mask(s string) (string, error) {
	var b strings.Builder
	inURI, inQuote := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && !inURI:
			inQuote = !inQuote
		case c == '<' && !inQuote:
			inURI = true
		case c == '>' && !inQuote:
			inURI = false
		case c == ',' && (inURI || inQuote):
			b.WriteString(maskComma)
			continue
		case c == ';' && (inURI || inQuote):
			b.WriteString(maskSemi)
			continue
		case (c == '\n' || c == '\r' || c == '\t') && !inQuote:
			// linkheader trims spaces only; Document puts entries on new lines
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(c)
	}
	if inURI || inQuote {
		return "", fmt.Errorf("%w: %q: unterminated target or quote", ErrMalformed, s)
	}
	return b.String(), nil
}
