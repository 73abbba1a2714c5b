package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rikhii20/DoKaka/internal/auth"
	"github.com/rikhii20/DoKaka/internal/config"
)

type Server struct {
	cfg      config.Config
	auth     *auth.Service
	logger   *slog.Logger
	mux      *http.ServeMux
	registry *prometheus.Registry
	metrics  *metrics
}

func NewServer(cfg config.Config, svc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		cfg:      cfg,
		auth:     svc,
		logger:   logger,
		mux:      http.NewServeMux(),
		registry: reg,
		metrics:  newMetrics(reg),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.recoverMiddleware(h)
	h = cors.AllowAll().Handler(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

func (s *Server) registerRoutes() {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.mux.HandleFunc(prefix+"/register", s.handleRegister)
	s.mux.HandleFunc(prefix+"/login", s.handleLogin)

	s.mux.HandleFunc("/", s.handleNotFound)
}
