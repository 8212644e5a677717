// Package nats serves the container over NATS request/reply.
//
// Requests are JSON gateway.Request envelopes published to
// "<subject_prefix>.rpc"; replies are JSON gateway.Response envelopes. All
// containers sharing a prefix join one queue group, so each request is
// answered once.
package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/gateway"
	"github.com/c360/beancontainer/natsclient"
)

// Subject returns the request subject for prefix
func Subject(prefix string) string {
	return prefix + ".rpc"
}

// Server answers gateway requests arriving on NATS
type Server struct {
	client     *natsclient.Client
	dispatcher gateway.Dispatcher
	subject    string
	queue      string
	logger     *slog.Logger

	stopped atomic.Bool
	served  atomic.Uint64
}

// New creates a NATS gateway on client
func New(client *natsclient.Client, d gateway.Dispatcher, cfg config.NATSConfig, logger *slog.Logger) (*Server, error) {
	if client == nil || d == nil {
		return nil, errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "client and dispatcher are required"),
			"NATSGateway", "New", "validate dependencies")
	}
	if cfg.SubjectPrefix == "" {
		return nil, errors.WrapInvalid(errors.Newf(errors.ErrInvalidConfig, "nats.subject_prefix is required"),
			"NATSGateway", "New", "validate config")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		client:     client,
		dispatcher: d,
		subject:    Subject(cfg.SubjectPrefix),
		queue:      cfg.QueueGroup,
		logger:     logger.With("component", "nats-gateway"),
	}, nil
}

// Start subscribes to the request subject. ctx bounds every request served
// and should live as long as the server.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Serve(ctx, s.subject, s.queue, s.handle); err != nil {
		return errors.Wrap(err, "NATSGateway", "Start", "serve "+s.subject)
	}
	s.logger.Info("NATS gateway serving", "subject", s.subject, "queue", s.queue)
	return nil
}

// Stop refuses further requests. The subscription ends when the client closes.
func (s *Server) Stop() {
	s.stopped.Store(true)
}

// Served returns how many requests were answered
func (s *Server) Served() uint64 {
	return s.served.Load()
}

func (s *Server) handle(ctx context.Context, data []byte) []byte {
	s.served.Add(1)
	resp := s.process(ctx, data)
	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("encode reply", "error", err)
		out, _ = json.Marshal(gateway.Failure(errors.WrapFatal(err, "NATSGateway", "handle", "encode reply")))
	}
	return out
}

func (s *Server) process(ctx context.Context, data []byte) gateway.Response {
	if s.stopped.Load() {
		return gateway.Failure(errors.ErrShuttingDown)
	}

	var req gateway.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return gateway.Failure(errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "malformed request: %v", err),
			"NATSGateway", "handle", "decode request"))
	}

	resp, err := gateway.Dispatch(ctx, s.dispatcher, req)
	if err != nil && !errors.IsInvalid(err) {
		s.logger.Warn("request failed", "action", req.Action, "component", req.Component, "error", err)
	}
	return resp
}
