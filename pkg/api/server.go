// Package api serves import, export and render over HTTP.
//
// Routes:
//
//	POST /import                triple lines in the body; JSON summary back
//	GET  /export                the whole visible graph as triple lines
//	GET  /export/{type}/{id}    one vertex or edge as triple lines
//	GET  /render                the visible graph as DOT or SVG
//	GET  /metrics               Prometheus metrics
//	GET  /health
//
// The reader's authorizations come from the X-Authorizations header, a
// comma-separated token list, and default to the server's.
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
	gtio "github.com/matzehuels/graphtriple/pkg/io"
	"github.com/matzehuels/graphtriple/pkg/render"
	"github.com/matzehuels/graphtriple/pkg/visibility"
	"github.com/matzehuels/graphtriple/pkg/workqueue"
)

// AuthorizationsHeader carries the reader's tokens.
const AuthorizationsHeader = "X-Authorizations"

// maxBody bounds an import request.
const maxBody = 256 << 20

// Server is an http.Handler over one graph store.
type Server struct {
	router   chi.Router
	store    graph.Store
	importer *gtio.Importer
	exporter *gtio.Exporter
	renderer *render.Renderer
	logger   *log.Logger
	gatherer prometheus.Gatherer
	auths    visibility.Authorizations
	defaults gtio.ImportOptions
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *log.Logger) Option                       { return func(s *Server) { s.logger = l } }
func WithRenderer(r *render.Renderer) Option                { return func(s *Server) { s.renderer = r } }
func WithGatherer(g prometheus.Gatherer) Option             { return func(s *Server) { s.gatherer = g } }
func WithImportDefaults(o gtio.ImportOptions) Option        { return func(s *Server) { s.defaults = o } }
func WithAuthorizations(a visibility.Authorizations) Option { return func(s *Server) { s.auths = a } }

// New returns a server that imports through importer into store.
func New(store graph.Store, importer *gtio.Importer, opts ...Option) *Server {
	s := &Server{
		store:    store,
		importer: importer,
		logger:   log.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderer == nil {
		s.renderer = render.NewRenderer(nil, nil)
	}
	s.exporter = gtio.NewExporter(gtio.WithExportLogger(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Post("/import", s.handleImport)
	r.Route("/export", func(r chi.Router) {
		r.Get("/", s.handleExportGraph)
		r.Get("/{type}/{id}", s.handleExportElement)
	})
	r.Get("/render", s.handleRender)
	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) authorizations(r *http.Request) visibility.Authorizations {
	h := r.Header.Get(AuthorizationsHeader)
	if h == "" {
		return s.auths
	}
	return visibility.NewAuthorizations(strings.Split(h, ",")...)
}

// ImportResponse is the body of a POST /import reply.
type ImportResponse struct {
	RunID    string        `json:"runId"`
	Lines    int           `json:"lines"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Elements int           `json:"elements"`
	Errors   []LineFailure `json:"errors,omitempty"`
}

// LineFailure describes one rejected line.
type LineFailure struct {
	Line    int    `json:"line"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := s.defaults
	opts.Authorizations = s.authorizations(r)
	if v := q.Get("visibility"); v != "" {
		opts.DefaultVisibility = v
	}
	if v := q.Get("source"); v != "" {
		opts.SourceFileName = v
	}
	if v := q.Get("user"); v != "" {
		opts.User = v
	}
	if v := q.Get("failFast"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "failFast: %v", err))
			return
		}
		opts.FailOnFirstError = b
	}
	if v := q.Get("priority"); v != "" {
		p, err := workqueue.ParsePriority(v)
		if err != nil {
			writeError(w, err)
			return
		}
		opts.Priority = p
	}
	// Streaming-value files must stay under the configured working directory.
	opts.RestrictPaths = true
	runID := uuid.NewString()
	opts.Metadata = opts.Metadata.With(graph.ImportRunMetadata, runID, "")

	sum, err := s.importer.ReadTriples(r.Context(), http.MaxBytesReader(w, r.Body, maxBody), opts)
	resp := ImportResponse{
		RunID:    runID,
		Lines:    sum.Lines,
		Imported: sum.Imported,
		Skipped:  sum.Skipped,
		Failed:   sum.Failed,
		Elements: len(sum.Elements),
	}
	for _, e := range sum.Errors {
		resp.Errors = append(resp.Errors, lineFailure(e))
	}

	status := http.StatusOK
	if err != nil {
		var le *errors.LineError
		if !stderrors.As(err, &le) {
			writeError(w, err)
			return
		}
		resp.Errors = append(resp.Errors, lineFailure(err))
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func lineFailure(err error) LineFailure {
	f := LineFailure{Code: string(errors.GetCode(err)), Message: errors.UserMessage(err)}
	var le *errors.LineError
	if stderrors.As(err, &le) {
		f.Line, f.Text = le.Num, le.Line
		f.Message = errors.UserMessage(le.Err)
	}
	return f
}

func (s *Server) handleExportGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := s.exporter.ExportGraph(r.Context(), s.store, s.authorizations(r), w); err != nil {
		// Headers are gone once the first element is written.
		s.logger.Error("export failed", "err", err)
	}
}

func (s *Server) handleExportElement(w http.ResponseWriter, r *http.Request) {
	var ref graph.Ref
	switch typ := chi.URLParam(r, "type"); typ {
	case "vertex":
		ref = graph.VertexRef(chi.URLParam(r, "id"))
	case "edge":
		ref = graph.EdgeRef(chi.URLParam(r, "id"))
	default:
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "element type %q is not vertex or edge", typ))
		return
	}

	el, err := s.store.Element(r.Context(), ref, s.authorizations(r))
	if err != nil {
		writeError(w, err)
		return
	}
	text, err := s.exporter.ExportElement(r.Context(), el)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = render.FormatSVG
	}
	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))

	data, hit, err := s.renderer.Render(r.Context(), s.store, s.authorizations(r), format, render.Options{Detailed: detailed})
	if err != nil {
		writeError(w, err)
		return
	}
	switch format {
	case render.FormatSVG:
		w.Header().Set("Content-Type", "image/svg+xml")
	default:
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	}
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	_, _ = w.Write(data)
}

type errorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{Code: string(errors.GetCode(err)), Message: errors.UserMessage(err)})
}

func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeElementNotFound, errors.ErrCodePropertyNotFound, errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case "", errors.ErrCodeInternal, errors.ErrCodeNetwork, errors.ErrCodeTimeout:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}
