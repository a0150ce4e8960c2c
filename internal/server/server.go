// Package server exposes the HTTP surface: CRUD routes over the portfolio
// store plus the operator monitoring endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"portfolio/internal/cache"
	"portfolio/internal/db"
	"portfolio/internal/logger"
	"portfolio/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	store   *store.Store
	cache   *cache.Tiered
	db      *db.DB
	log     *logger.Logger
	started time.Time
}

// New creates a Server. started feeds the dashboard's uptime report.
func New(st *store.Store, tiered *cache.Tiered, database *db.DB, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{store: st, cache: tiered, db: database, log: log, started: time.Now()}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Get("/{id}", s.handleGetProject)
			r.Put("/{id}", s.handleUpdateProject)
			r.Delete("/{id}", s.handleDeleteProject)
		})

		r.Get("/about", s.handleGetAbout)
		r.Put("/about", s.handleUpdateAbout)

		r.Route("/skills", func(r chi.Router) {
			r.Get("/", s.handleListSkills)
			r.Post("/", s.handleCreateSkill)
			r.Put("/{id}", s.handleUpdateSkill)
			r.Delete("/{id}", s.handleDeleteSkill)
		})

		r.Route("/interests", func(r chi.Router) {
			r.Get("/", s.handleListInterests)
			r.Post("/", s.handleCreateInterest)
			r.Delete("/{id}", s.handleDeleteInterest)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", s.handleListPosts)
			r.Post("/", s.handleCreatePost)
			// Reads address posts by slug, writes by numeric id; both
			// travel in the same path segment.
			r.Get("/{slug}", s.handleGetPost)
			r.Put("/{slug}", s.handleUpdatePost)
			r.Delete("/{slug}", s.handleDeletePost)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/metrics", s.handleMetrics)
			r.Post("/cache/clear", s.handleCacheClear)
		})
	})

	return r
}

// requestLogger records every request through the API log category.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.API("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
