// Package api exposes the HTTP surface: asynchronous enqueue endpoints over
// the task queue, the synchronous matching search and task-status polling.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/matchboxhq/matchbox/config"
	"github.com/matchboxhq/matchbox/embedding"
	"github.com/matchboxhq/matchbox/log"
	"github.com/matchboxhq/matchbox/queue"
	"github.com/matchboxhq/matchbox/vectorstore"
)

// requestTimeout caps how long any single request may run, including the
// synchronous search path.
const requestTimeout = 60 * time.Second

// VectorStore is the slice of the vector database the API uses directly.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dimension int) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectorstore.ScoredPoint, error)
}

// Server wires the HTTP routes to the task queue and the vector search path.
type Server struct {
	cnf      *config.Config
	queue    *queue.Server
	encoder  embedding.Encoder
	store    VectorStore
	validate *validator.Validate
	router   chi.Router
}

// New returns a Server with its routes registered.
func New(cnf *config.Config, queueServer *queue.Server, encoder embedding.Encoder, store VectorStore) *Server {
	s := &Server{
		cnf:      cnf,
		queue:    queueServer,
		encoder:  encoder,
		store:    store,
		validate: validator.New(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the HTTP handler for mounting or serving.
func (s *Server) Router() http.Handler {
	return s.router
}

// Bootstrap ensures the configured vector collections exist. It runs on
// every startup; collections that already exist are left untouched.
func (s *Server) Bootstrap(ctx context.Context) error {
	for _, name := range s.cnf.Collections {
		if err := s.store.EnsureCollection(ctx, name, s.cnf.Embedding.Dim); err != nil {
			return err
		}
		log.INFO.Printf("Vector collection %s ready", name)
	}
	return nil
}

// Listen serves the API on the configured address, blocking until the
// listener fails.
func (s *Server) Listen() error {
	log.INFO.Printf("HTTP API listening on %s", s.cnf.HTTPAddr)
	return http.ListenAndServe(s.cnf.HTTPAddr, s.router)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/parsing/resume", s.parseResume)
		r.Post("/matching/search", s.search)
		r.Get("/tasks/{taskID}", s.taskStatus)
	})
	r.Post("/internal/sync", s.syncDocument)

	return r
}

// requestLogger writes one line per request through the shared logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.INFO.Printf("%s %s %d %dB in %s", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}
