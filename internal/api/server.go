// Package api exposes the classification scheme, field name planning and
// proportion calculations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
	"github.com/USEPA/ATtILA2-sub000/internal/metric"
	"github.com/USEPA/ATtILA2-sub000/internal/zonal"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 32 << 20

// Defaults fill request fields the caller leaves unset.
type Defaults struct {
	MaxFieldLength   int
	OverlapTolerance float64
	Concurrency      int
	UnitField        string
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	Defaults       Defaults
	RequestTimeout time.Duration
}

// Server serves requests against one classification document. Reloading the
// document is visible to subsequent requests.
type Server struct {
	doc  *lcc.Document
	opts Options
	log  *zap.Logger
}

// New returns a server for doc.
func New(doc *lcc.Document, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	return &Server{
		doc:  doc,
		opts: opts,
		log:  zap.L().With(zap.String("component", "api")),
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/scheme", s.handleScheme)
		r.Post("/fields", s.handleFields)
		r.Post("/proportions", s.handleProportions)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"scheme": s.doc.Loaded(),
	})
}

type schemeResponse struct {
	Source       string            `json:"source,omitempty"`
	Metadata     lcc.Metadata      `json:"metadata"`
	Values       []lcc.ValueEntry  `json:"values"`
	Coefficients []lcc.Coefficient `json:"coefficients"`
	Classes      []lcc.Class       `json:"classes"`
	Included     []lcc.ValueCode   `json:"included_values"`
}

func (s *Server) handleScheme(w http.ResponseWriter, _ *http.Request) {
	scheme, err := s.doc.Scheme()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemeResponse{
		Source:       s.doc.Source(),
		Metadata:     scheme.Metadata(),
		Values:       scheme.Values().Entries(),
		Coefficients: scheme.Coefficients(),
		Classes:      scheme.Classes(),
		Included:     scheme.IncludedValueIDs(),
	})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lcc.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case metric.IsSchemaError(err), errors.Is(err, errUnknownFamily):
		return http.StatusUnprocessableEntity
	case errors.Is(err, zonal.ErrInputContract), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
