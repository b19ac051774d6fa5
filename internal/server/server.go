// Package server exposes the address pipeline and stored runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/address-scraper/internal/export"
	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/internal/pipeline"
	"github.com/sells-group/address-scraper/internal/store"
)

// Runner executes one address query. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, q model.Query) (*model.PipelineReport, error)
}

// RunReader reads persisted runs. store.Store implements it.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Options tunes the router.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	runner Runner
	runs   RunReader
	opts   Options
}

// New creates a Server. runs may be nil, in which case the run routes are
// not mounted.
func New(runner Runner, runs RunReader, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	return &Server{runner: runner, runs: runs, opts: opts}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/addresses", s.handleAddressesGet)
		r.Post("/addresses", s.handleAddressesPost)
		r.Get("/addresses.geojson", s.handleAddressesGeoJSON)
		if s.runs != nil {
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
		}
	})
	return r
}

// addressRequest is the POST body for /api/v1/addresses.
type addressRequest struct {
	Query          string   `json:"query"`
	URLs           []string `json:"urls"`
	Pages          int      `json:"pages"`
	FollowWebsites bool     `json:"follow_websites"`
	Location       string   `json:"location"`
	Keywords       []string `json:"keywords"`
}

func (s *Server) handleAddressesGet(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.run(w, r, q, writeReport)
}

func (s *Server) handleAddressesPost(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.run(w, r, model.Query{
		Term:           strings.TrimSpace(req.Query),
		URLs:           req.URLs,
		Pages:          req.Pages,
		FollowWebsites: req.FollowWebsites,
		Location:       strings.TrimSpace(req.Location),
		Keywords:       req.Keywords,
	}, writeReport)
}

func (s *Server) handleAddressesGeoJSON(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.run(w, r, q, func(w http.ResponseWriter, report *model.PipelineReport) {
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteGeoJSON(w, report); err != nil {
			zap.L().Warn("server: write geojson", zap.Error(err))
		}
	})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, q model.Query, respond func(http.ResponseWriter, *model.PipelineReport)) {
	if q.Empty() {
		writeError(w, http.StatusBadRequest, "query or url is required")
		return
	}
	report, err := s.runner.Run(r.Context(), q)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("server: pipeline run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}
	respond(w, report)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = intParam(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("server: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// queryFromParams reads ?query=&url=&url=&pages=&follow=&location=&keyword=.
func queryFromParams(r *http.Request) (model.Query, error) {
	v := r.URL.Query()
	q := model.Query{
		Term:     strings.TrimSpace(v.Get("query")),
		URLs:     v["url"],
		Location: strings.TrimSpace(v.Get("location")),
		Keywords: v["keyword"],
	}
	pages, err := intParam(r, "pages")
	if err != nil {
		return q, err
	}
	q.Pages = pages
	if raw := v.Get("follow"); raw != "" {
		follow, err := strconv.ParseBool(raw)
		if err != nil {
			return q, errors.New("follow must be a boolean")
		}
		q.FollowWebsites = follow
	}
	return q, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func writeReport(w http.ResponseWriter, report *model.PipelineReport) {
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
