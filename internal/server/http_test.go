package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/timegate/internal/logger"
	"github.com/nainya/timegate/internal/metrics"
	"github.com/nainya/timegate/pkg/linkrel"
	"github.com/nainya/timegate/pkg/memento"
	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
	"github.com/nainya/timegate/pkg/version/memstore"
	"github.com/nainya/timegate/pkg/version/versiontest"
)

var testConf = memento.Config{
	Negotiation:          memento.NEGOTIATION_REDIRECT,
	RecommendedRelations: true,
	BaseURI:              "http://wiki.test",
	ErrorPages:           memento.ERROR_PAGES_TRADITIONAL,
}

type fixture struct {
	handler http.Handler
	metrics *metrics.Metrics
	reg     *prometheus.Registry
	locator *version.Locator
}

func newFixture(t *testing.T, conf memento.Config, opts ...HandlerOption) *fixture {
	t.Helper()
	s, err := memstore.New()
	require.NoError(t, err)
	versiontest.Seed(t, s)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	loc := version.NewLocator(s, version.WithObserver(m))
	h := NewHandler(loc, conf, m, logger.Nop(), opts...)

	return &fixture{handler: h.Routes(), metrics: m, reg: reg, locator: loc}
}

func (f *fixture) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func acceptDatetime(value string) http.Header {
	h := http.Header{}
	h.Set(memento.HEADER_ACCEPT_DATETIME, value)
	return h
}

func TestTimeGateRedirect(t *testing.T) {
	f := newFixture(t, testConf)

	rec := f.do(http.MethodGet, "/timegate/Main_Page", acceptDatetime(timestamp.Format(versiontest.T2)))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://wiki.test/page/Main_Page?oldid=11", rec.Header().Get("Location"))
	assert.Equal(t, "Accept-Datetime", rec.Header().Get("Vary"))
	assert.Zero(t, rec.Body.Len())

	set, err := linkrel.Parse(rec.Header().Get("Link"))
	require.NoError(t, err)
	prev, ok := set.Find(linkrel.REL_PREV)
	require.True(t, ok)
	assert.Equal(t, "http://wiki.test/page/Main_Page?oldid=10", prev.URI)
	next, ok := set.Find(linkrel.REL_NEXT)
	require.True(t, ok)
	assert.Equal(t, "http://wiki.test/page/Main_Page?oldid=12", next.URI)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NegotiationsTotal.WithLabelValues("redirected", "302")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("/timegate/*", "GET", "302")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreQueriesTotal.WithLabelValues("resolve", "found")))
}

func TestTimeGateRejectsPost(t *testing.T) {
	f := newFixture(t, testConf)

	rec := f.do(http.MethodPost, "/timegate/Main_Page", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NegotiationsTotal.WithLabelValues("failed", "405")))
}

func TestTimeGateMissingDatetime(t *testing.T) {
	t.Run("traditional", func(t *testing.T) {
		f := newFixture(t, testConf)
		rec := f.do(http.MethodGet, "/timegate/Main_Page", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
		assert.Contains(t, rec.Body.String(), "http://wiki.test/page/Main_Page?oldid=10")
		assert.Contains(t, rec.Body.String(), "http://wiki.test/page/Main_Page?oldid=12")
		assert.NotEmpty(t, rec.Header().Get("Link"))
	})

	t.Run("friendly", func(t *testing.T) {
		conf := testConf
		conf.ErrorPages = memento.ERROR_PAGES_FRIENDLY
		f := newFixture(t, conf)
		rec := f.do(http.MethodGet, "/timegate/Main_Page", acceptDatetime("last tuesday"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), `<a href="http://wiki.test/page/Main_Page?oldid=10">`)
		assert.Contains(t, rec.Body.String(), "timegate-400-date")
	})

	t.Run("head has no body", func(t *testing.T) {
		f := newFixture(t, testConf)
		rec := f.do(http.MethodHead, "/timegate/Main_Page", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, rec.Body.Len())
	})
}

func TestTimeGateUnknownTitle(t *testing.T) {
	f := newFixture(t, testConf)
	rec := f.do(http.MethodGet, "/timegate/Nowhere", acceptDatetime(timestamp.Format(versiontest.T2)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPage(t *testing.T) {
	f := newFixture(t, testConf)

	t.Run("memento", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/page/Main_Page?oldid=11", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, timestamp.Format(versiontest.T2), rec.Header().Get("Memento-Datetime"))
		assert.Equal(t, "Main_Page as of Mon, 05 Mar 2012 12:30:00 GMT (version 11)\n", rec.Body.String())
	})

	t.Run("original", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/page/Main_Page", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `<http://wiki.test/timegate/Main_Page>; rel="timegate"`, rec.Header().Get("Link"))
		assert.Equal(t, "Main_Page (current)\n", rec.Body.String())
	})

	t.Run("head", func(t *testing.T) {
		rec := f.do(http.MethodHead, "/page/Main_Page?oldid=10", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Memento-Datetime"))
		assert.Zero(t, rec.Body.Len())
	})

	t.Run("bad oldid", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/page/Main_Page?oldid=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("foreign oldid", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/page/Main_Page?oldid=20", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPageInlineNegotiation(t *testing.T) {
	conf := testConf
	conf.Negotiation = memento.NEGOTIATION_INLINE
	f := newFixture(t, conf)

	rec := f.do(http.MethodGet, "/page/Main_Page", acceptDatetime(timestamp.Format(versiontest.T1)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://wiki.test/page/Main_Page?oldid=10", rec.Header().Get("Content-Location"))
	assert.Equal(t, timestamp.Format(versiontest.T1), rec.Header().Get("Memento-Datetime"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Main_Page as of"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NegotiationsTotal.WithLabelValues("negotiated_inline", "200")))
}

func TestPageEmbedsArePinned(t *testing.T) {
	s, err := memstore.New()
	require.NoError(t, err)
	versiontest.Seed(t, s)
	loc := version.NewLocator(s)

	renderer := NewTextRenderer(loc, map[string][]string{
		"Main_Page": {"Template:Box", "Template:Gone"},
	})
	f := newFixture(t, testConf, WithRenderer(renderer))

	rec := f.do(http.MethodGet, "/page/Main_Page?oldid=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Template:Box: version 20")
	assert.Contains(t, rec.Body.String(), "Template:Gone: missing")

	rec = f.do(http.MethodGet, "/page/Main_Page", nil)
	assert.Contains(t, rec.Body.String(), "Template:Box: version 20")
}

func TestTimeMapEndpoint(t *testing.T) {
	f := newFixture(t, testConf)

	rec := f.do(http.MethodGet, "/timemap/Main_Page", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, linkrel.LINK_FORMAT, rec.Header().Get("Content-Type"))

	set, err := linkrel.Parse(rec.Body.String())
	require.NoError(t, err)
	assert.Len(t, set, 6)
	first, ok := set.Find(linkrel.REL_FIRST)
	require.True(t, ok)
	assert.Equal(t, "http://wiki.test/page/Main_Page?oldid=10", first.URI)

	rec = f.do(http.MethodGet, "/timemap/Empty", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type downCatalog struct {
	version.Catalog
}

func (downCatalog) Resolve(context.Context, string) (*version.Resource, error) {
	return nil, errDown
}

func TestStoreUnavailableIs503(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := NewHandler(version.NewLocator(downCatalog{}), testConf, m, logger.Nop()).Routes()

	for _, target := range []string{"/timegate/Main_Page", "/page/Main_Page", "/timemap/Main_Page"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set(memento.HEADER_ACCEPT_DATETIME, timestamp.Format(versiontest.T2))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

func TestAccessLog(t *testing.T) {
	s, err := memstore.New()
	require.NoError(t, err)
	versiontest.Seed(t, s)

	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "info", Output: &buf})
	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := NewHandler(version.NewLocator(s), testConf, m, log).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/timemap/Main_Page", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var access map[string]interface{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if entry["message"] == "HTTP request completed" {
			access = entry
		}
	}
	require.NotNil(t, access)
	assert.Equal(t, "http", access["component"])
	assert.Equal(t, "/timemap/*", access["route"])
	assert.Equal(t, "/timemap/Main_Page", access["path"])
	assert.Equal(t, float64(http.StatusOK), access["status"])
	assert.NotEmpty(t, access["req_id"])
}

func TestObservabilityServer(t *testing.T) {
	f := newFixture(t, testConf)
	f.do(http.MethodGet, "/timegate/Main_Page", acceptDatetime(timestamp.Format(versiontest.T2)))

	obs := NewObservabilityServer(0, f.reg, logger.Nop()).Handler()

	for _, tt := range []struct {
		path string
		want string
	}{
		{"/health", `"status":"healthy"`},
		{"/ready", `"status":"ready"`},
		{"/metrics", "timegate_http_requests_total"},
	} {
		rec := httptest.NewRecorder()
		obs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, tt.path)
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), tt.want, tt.path)
	}
}
