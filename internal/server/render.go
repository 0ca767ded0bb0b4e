package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nainya/timegate/pkg/memento"
	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// Renderer writes the body of a served page
type Renderer interface {
	Render(ctx context.Context, w io.Writer, resp *memento.Response) error
}

// TextRenderer describes the served version in plain text. Embedded
// templates are pinned to the served version's datetime.
type TextRenderer struct {
	locator *version.Locator
	pinner  *memento.TemplatePinner
	embeds  map[string][]string
}

// NewTextRenderer creates a renderer. embeds maps a page title to the
// templates it transcludes.
func NewTextRenderer(locator *version.Locator, embeds map[string][]string) *TextRenderer {
	return &TextRenderer{
		locator: locator,
		pinner:  memento.NewTemplatePinner(locator),
		embeds:  embeds,
	}
}

// Render implements Renderer
func (t *TextRenderer) Render(ctx context.Context, w io.Writer, resp *memento.Response) error {
	acceptDatetime := ""
	if resp.Version != nil {
		acceptDatetime = timestamp.Format(resp.Version.Timestamp)
		if _, err := fmt.Fprintf(w, "%s as of %s (version %d)\n",
			resp.Resource.Title, acceptDatetime, resp.Version.ID); err != nil {
			return err
		}
	} else if _, err := fmt.Fprintf(w, "%s (current)\n", resp.Resource.Title); err != nil {
		return err
	}

	for _, title := range t.embeds[resp.Resource.Title] {
		line, err := t.embed(ctx, title, acceptDatetime)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (t *TextRenderer) embed(ctx context.Context, title, acceptDatetime string) (string, error) {
	res, err := t.locator.Resolve(ctx, title)
	if err != nil {
		return "", err
	}
	if res == nil {
		return fmt.Sprintf("  %s: missing", title), nil
	}

	v, err := t.pinner.Pin(ctx, *res, acceptDatetime)
	if err != nil {
		return "", err
	}
	if v == nil {
		if v, err = t.locator.Last(ctx, *res); err != nil {
			return "", err
		}
	}
	if v == nil {
		return fmt.Sprintf("  %s: no versions", title), nil
	}
	return fmt.Sprintf("  %s: version %d", title, v.ID), nil
}

var friendlyPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Status}} {{.StatusText}}</title></head>
<body>
<h1>{{.StatusText}}</h1>
<p class="{{.Key}}">{{.Message}}</p>
{{- if .FirstURI}}
<ul>
<li><a href="{{.FirstURI}}">First version</a></li>
<li><a href="{{.LastURI}}">Last version</a></li>
</ul>
{{- end}}
</body>
</html>
`))

type errorPage struct {
	Status     int
	StatusText string
	Key        string
	Message    string
	FirstURI   string
	LastURI    string
}

// ErrorRenderer presents controller failures
type ErrorRenderer struct {
	style memento.ErrorPageStyle
}

// NewErrorRenderer creates a renderer for the given page style
func NewErrorRenderer(style memento.ErrorPageStyle) *ErrorRenderer {
	return &ErrorRenderer{style: style}
}

// Render writes err as a response. Failures other than *memento.Error are
// reported as 500 without detail.
func (e *ErrorRenderer) Render(w http.ResponseWriter, r *http.Request, err error) {
	var merr *memento.Error
	if !errors.As(err, &merr) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if merr.Kind == memento.KindStoreUnavailable {
		zerolog.Ctx(r.Context()).Error().Err(merr).Msg("Version store unavailable")
	}

	for name, values := range merr.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	page := errorPage{
		Status:     merr.StatusCode(),
		StatusText: http.StatusText(merr.StatusCode()),
		Key:        merr.MessageKey(),
		Message:    merr.Message(),
		FirstURI:   merr.FirstURI,
		LastURI:    merr.LastURI,
	}

	if e.style == memento.ERROR_PAGES_FRIENDLY {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(page.Status)
	if r.Method == http.MethodHead {
		return
	}

	if e.style == memento.ERROR_PAGES_FRIENDLY {
		if err := friendlyPage.Execute(w, page); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Render error page")
		}
		return
	}
	_, _ = fmt.Fprintln(w, page.Message)
}
