package web

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iudd/soradeno/internal/usecase"
)

// Server is the relay's HTTP front door: the task API, the SSE generation
// endpoints, metrics, and static assets for the dashboard. None of it is
// authenticated; the relay is meant to sit behind a private network edge.
type Server struct {
	uc         usecase.GenerationUseCase
	staticDir  string
	batchLimit int
	log        *zerolog.Logger
}

func NewServer(uc usecase.GenerationUseCase, staticDir string, batchLimit int, logger *zerolog.Logger) *Server {
	return &Server{uc: uc, staticDir: staticDir, batchLimit: batchLimit, log: logger}
}

// Router builds the chi routing tree with CORS, request-id and logging
// middleware applied to everything.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.cors, s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/records", s.handleRecords)
		r.Get("/tasks", s.handleTasks)
		r.Get("/tasks/{id}", s.handleTask)
		r.Get("/status", s.handleStatus)
		r.Post("/generate/batch", s.handleGenerateBatch)
		r.Post("/generate/{id}", s.handleGenerate)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.staticDir != "" {
		if _, err := os.Stat(s.staticDir); err == nil {
			fs := http.FileServer(http.Dir(filepath.Clean(s.staticDir)))
			r.Handle("/*", fs)
		}
	}
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}
