// HTTP surface for Memento negotiation: TimeGate, TimeMap and page routes
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/nainya/timegate/internal/logger"
	"github.com/nainya/timegate/internal/metrics"
	"github.com/nainya/timegate/pkg/linkrel"
	"github.com/nainya/timegate/pkg/memento"
	"github.com/nainya/timegate/pkg/version"
)

const behaviorFailed = "failed"

// Handler serves the Memento HTTP surface
type Handler struct {
	gate     *memento.TimeGate
	resource *memento.Resource
	timemap  *memento.TimeMap
	renderer Renderer
	errors   *ErrorRenderer
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithRenderer replaces the default plain-text renderer
func WithRenderer(r Renderer) HandlerOption {
	return func(h *Handler) {
		h.renderer = r
	}
}

// NewHandler creates the Memento HTTP handler
func NewHandler(locator *version.Locator, conf memento.Config, m *metrics.Metrics, log *logger.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		gate:     memento.NewTimeGate(locator, conf),
		resource: memento.NewResource(locator, conf),
		timemap:  memento.NewTimeMap(locator, conf),
		renderer: NewTextRenderer(locator, nil),
		errors:   NewErrorRenderer(conf.ErrorPages),
		metrics:  m,
		log:      log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the router with access logging, recovery and metrics
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(*h.log.GetZerolog()))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, _ int, duration time.Duration) {
		logger.FromContext(r.Context()).
			HTTPLogger(routePattern(r)).
			LogRequest(r.Method, r.URL.String(), status, duration)
	}))
	r.Use(middleware.Recoverer)
	r.Use(HTTPMetricsMiddleware(h.metrics))

	// every method reaches the TimeGate so it can answer 405 itself
	r.HandleFunc("/timegate/*", h.serveTimeGate)
	r.Get("/timemap/*", h.serveTimeMap)
	r.Get("/page/*", h.servePage)
	r.Head("/page/*", h.servePage)

	return r
}

func title(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if t, err := url.PathUnescape(raw); err == nil {
		return t
	}
	return raw
}

func (h *Handler) serveTimeGate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gate.Negotiate(r.Context(), memento.Request{
		Method:         r.Method,
		Title:          title(r),
		AcceptDatetime: r.Header.Get(memento.HEADER_ACCEPT_DATETIME),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.RecordNegotiation(resp.Behavior.String(), resp.Status)
	writeHeader(w, resp)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request) {
	req := memento.Request{
		Method:         r.Method,
		Title:          title(r),
		AcceptDatetime: r.Header.Get(memento.HEADER_ACCEPT_DATETIME),
	}
	if oldid := r.URL.Query().Get("oldid"); oldid != "" {
		id, err := strconv.ParseInt(oldid, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid oldid %q", oldid), http.StatusBadRequest)
			return
		}
		req.VersionID, req.HasVersionID = id, true
	}

	resp, err := h.resource.Serve(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.RecordNegotiation(resp.Behavior.String(), resp.Status)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writeHeader(w, resp)
	if r.Method == http.MethodHead {
		return
	}
	if err := h.renderer.Render(r.Context(), w, resp); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Render page")
	}
}

func (h *Handler) serveTimeMap(w http.ResponseWriter, r *http.Request) {
	set, err := h.timemap.Build(r.Context(), title(r))
	if err != nil {
		h.errors.Render(w, r, err)
		return
	}

	w.Header().Set("Content-Type", linkrel.LINK_FORMAT)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(set.Document()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var merr *memento.Error
	if errors.As(err, &merr) {
		status = merr.StatusCode()
	}
	h.metrics.RecordNegotiation(behaviorFailed, status)
	h.errors.Render(w, r, err)
}

func writeHeader(w http.ResponseWriter, resp *memento.Response) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
}

// HTTPServer serves the Memento surface
type HTTPServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewHTTPServer wraps handler in an http.Server on port
func NewHTTPServer(port int, readTimeout, writeTimeout time.Duration, handler *Handler, log *logger.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler.Routes(),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start listens and serves until Shutdown is called
func (s *HTTPServer) Start() error {
	s.log.Info("Starting Memento HTTP server").Str("addr", s.server.Addr).Send()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down Memento HTTP server").Send()
	return s.server.Shutdown(ctx)
}
