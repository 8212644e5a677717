package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/gateway"
	"github.com/c360/beancontainer/session"
)

// invokeBody is the payload of the invoke and lookup routes
type invokeBody struct {
	Name       string         `json:"name,omitempty"`
	SessionKey session.Key    `json:"session_key,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Args       component.Args `json:"args,omitempty"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "body exceeds %d bytes", tooLarge.Limit),
				"HTTPGateway", "decodeBody", "read body")
		}
		return errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "malformed JSON: %v", err),
			"HTTPGateway", "decodeBody", "decode body")
	}
	return nil
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req gateway.Request, okStatus int) {
	resp, err := gateway.Dispatch(r.Context(), s.dispatcher, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, okStatus, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.dispatcher.Health(r.Context())
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, gateway.Request{Action: gateway.ActionList}, http.StatusOK)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, gateway.Request{
		Action:    gateway.ActionCreateSession,
		Component: chi.URLParam(r, "component"),
	}, http.StatusCreated)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var body invokeBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.dispatch(w, r, gateway.Request{
		Action:     gateway.ActionInvoke,
		Component:  chi.URLParam(r, "component"),
		Operation:  chi.URLParam(r, "operation"),
		SessionKey: body.SessionKey,
		Args:       body.Args,
	}, http.StatusOK)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, gateway.Request{
		Action:     gateway.ActionStatus,
		SessionKey: session.Key(chi.URLParam(r, "key")),
	}, http.StatusOK)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, gateway.Request{
		Action:     gateway.ActionState,
		SessionKey: session.Key(chi.URLParam(r, "key")),
	}, http.StatusOK)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var body invokeBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.dispatch(w, r, gateway.Request{
		Action:     gateway.ActionCall,
		Name:       body.Name,
		Operation:  body.Operation,
		SessionKey: body.SessionKey,
		Args:       body.Args,
	}, http.StatusOK)
}
