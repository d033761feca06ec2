package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ServerOptions configures the shared HTTP server wrapper.
type ServerOptions struct {
	Addr           string
	Log            zerolog.Logger
	RateLimitRPS   float64
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	Health         http.HandlerFunc // optional /health handler
	Routes         func(r chi.Router)
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// NewServer builds a chi router with the standard middleware stack, mounts
// /metrics and /health, then hands the router to the service for its own
// routes.
func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	if opts.RateLimitRPS > 0 {
		r.Use(RateLimiter(opts.RateLimitRPS, opts.RateLimitBurst))
	}
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if opts.Health != nil {
		r.Get("/health", opts.Health)
	}

	if opts.Routes != nil {
		opts.Routes(r)
	}

	return &Server{
		http: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
		log: opts.Log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
