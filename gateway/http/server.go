package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/gateway"
	"github.com/c360/beancontainer/metric"
)

const (
	metricsOwner       = "http_gateway"
	requestsMetricName = "beancontainer_http_requests_total"
	readHeaderTimeout  = 10 * time.Second
)

// Server is the HTTP gateway
type Server struct {
	dispatcher gateway.Dispatcher
	cfg        config.HTTPConfig
	logger     *slog.Logger
	metrics    *metric.MetricsRegistry
	limiter    *rateLimiter
	requests   *prometheus.CounterVec
	router     chi.Router

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetricsRegistry exposes reg on /metrics and records request counts in it
func WithMetricsRegistry(reg *metric.MetricsRegistry) Option {
	return func(s *Server) { s.metrics = reg }
}

// New builds the gateway router. Nothing listens until Start.
func New(d gateway.Dispatcher, cfg config.HTTPConfig, opts ...Option) (*Server, error) {
	if d == nil {
		return nil, errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "dispatcher is required"),
			"HTTPGateway", "New", "validate dependencies")
	}
	s := &Server{
		dispatcher: d,
		cfg:        cfg,
		logger:     slog.Default(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: requestsMetricName,
			Help: "HTTP gateway requests by method, route and status code",
		}, []string{"method", "route", "code"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "http-gateway")

	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.Burst)
	}
	if s.metrics != nil {
		if err := s.metrics.RegisterCounterVec(metricsOwner, requestsMetricName, s.requests); err != nil {
			return nil, errors.WrapFatal(err, "HTTPGateway", "New", "register request metrics")
		}
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID, s.observe, s.rateLimit, s.limitBody)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/directory", s.handleDirectory)
		r.Post("/lookup", s.handleLookup)
		r.Route("/components/{component}", func(r chi.Router) {
			r.Post("/sessions", s.handleCreateSession)
			r.Post("/invoke/{operation}", s.handleInvoke)
		})
		r.Route("/sessions/{key}", func(r chi.Router) {
			r.Get("/", s.handleSessionStatus)
			r.Get("/state", s.handleSessionState)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusNotFound, gateway.Response{Error: &gateway.Error{
			Code: "route_not_found", Class: errors.ErrorInvalid.String(), Message: "no route for " + r.URL.Path,
		}})
	})
	return r
}

// Handler returns the router, for tests and for embedding in another server
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves until Stop
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.WrapInvalid(errors.New("already started"), "HTTPGateway", "Start", "check state")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return errors.WrapFatal(err, "HTTPGateway", "Start", "listen on "+s.cfg.Addr)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP gateway stopped unexpectedly", "error", err)
		}
	}()
	s.logger.Info("HTTP gateway listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address, or "" before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests until ctx expires
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Unregister(metricsOwner, requestsMetricName)
	}
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "HTTPGateway", "Stop", "shutdown server")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}
