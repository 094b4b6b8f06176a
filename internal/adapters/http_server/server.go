package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
)

type Options struct {
	RequestTimeout    time.Duration
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type Server struct{ mux *chi.Mux }

func New(o Options) *Server {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}

	m := chi.NewRouter()

	// outermost first: logging and metrics see the status written by Recover
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(Logger(log.Logger))
	m.Use(Metrics)
	m.Use(Recover)
	m.Use(cors.Handler(cors.Options{
		AllowedOrigins: o.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", "X-Request-Id"},
		ExposedHeaders: []string{"ETag", "X-Request-Id"},
		MaxAge:         300,
	}))
	if o.RateLimitRequests > 0 && o.RateLimitWindow > 0 {
		m.Use(httprate.Limit(o.RateLimitRequests, o.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "Too many requests", "")
			}),
		))
	}
	m.Use(Timeout(o.RequestTimeout))

	m.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "")
	})
	m.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
