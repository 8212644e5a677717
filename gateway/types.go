package gateway

import (
	"context"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/container"
	"github.com/c360/beancontainer/directory"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/health"
	"github.com/c360/beancontainer/session"
)

// Dispatcher is the part of the container the gateways call into.
// *container.Container implements it.
type Dispatcher interface {
	Invoke(ctx context.Context, call container.Call) (any, error)
	CreateSession(ctx context.Context, name string) (session.Key, error)
	SessionState(ctx context.Context, key session.Key) (any, error)
	SessionStatus(key session.Key) session.Status
	Lookup(name string) (*directory.Reference, error)
	Names() []string
	Health(ctx context.Context) health.Status
}

// Action selects what a Request does
type Action string

// Supported actions
const (
	// ActionInvoke calls an operation by component name
	ActionInvoke Action = "invoke"
	// ActionCreateSession starts a session of a stateful component
	ActionCreateSession Action = "create_session"
	// ActionState reads the conversational state of a session
	ActionState Action = "state"
	// ActionStatus reports whether a session is active, removed or unknown
	ActionStatus Action = "status"
	// ActionCall resolves a directory name and calls through its view
	ActionCall Action = "call"
	// ActionList returns every directory name
	ActionList Action = "list"
)

// Request is the transport-independent client request
type Request struct {
	Action     Action         `json:"action"`
	Component  string         `json:"component,omitempty"`
	Name       string         `json:"name,omitempty"`
	SessionKey session.Key    `json:"session_key,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Args       component.Args `json:"args,omitempty"`
}

// Response is the reply to a Request. Exactly one of Result-bearing fields or
// Error is meaningful.
type Response struct {
	Result     any             `json:"result,omitempty"`
	SessionKey session.Key     `json:"session_key,omitempty"`
	Status     *session.Status `json:"status,omitempty"`
	Names      []string        `json:"names,omitempty"`
	Error      *Error          `json:"error,omitempty"`
}

// Error is the client-visible form of a failure
type Error struct {
	Code    string `json:"code"`
	Class   string `json:"class"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func missing(field string, action Action) error {
	return errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "%s is required for %s", field, action),
		"Gateway", "Dispatch", "validate request")
}

// Validate checks that the fields the action needs are present
func (r Request) Validate() error {
	switch r.Action {
	case ActionInvoke:
		if r.Component == "" {
			return missing("component", r.Action)
		}
		if r.Operation == "" {
			return missing("operation", r.Action)
		}
	case ActionCreateSession:
		if r.Component == "" {
			return missing("component", r.Action)
		}
	case ActionState, ActionStatus:
		if r.SessionKey == "" {
			return missing("session_key", r.Action)
		}
	case ActionCall:
		if r.Name == "" {
			return missing("name", r.Action)
		}
		if r.Operation == "" {
			return missing("operation", r.Action)
		}
	case ActionList:
	default:
		return errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "unknown action %q", r.Action),
			"Gateway", "Dispatch", "validate request")
	}
	return nil
}

// Dispatch executes req against d. The returned error is the unsanitized
// failure, for logging and status mapping; the Response already carries its
// client-safe form.
func Dispatch(ctx context.Context, d Dispatcher, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Failure(err), err
	}

	var (
		resp Response
		err  error
	)
	switch req.Action {
	case ActionInvoke:
		resp.Result, err = d.Invoke(ctx, container.Call{
			Component:  req.Component,
			SessionKey: req.SessionKey,
			Operation:  req.Operation,
			Args:       req.Args,
		})
		resp.SessionKey = req.SessionKey
	case ActionCreateSession:
		resp.SessionKey, err = d.CreateSession(ctx, req.Component)
	case ActionState:
		resp.Result, err = d.SessionState(ctx, req.SessionKey)
		resp.SessionKey = req.SessionKey
	case ActionStatus:
		st := d.SessionStatus(req.SessionKey)
		resp.Status = &st
	case ActionCall:
		resp, err = call(ctx, d, req)
	case ActionList:
		resp.Names = d.Names()
	}
	if err != nil {
		return Failure(err), err
	}
	return resp, nil
}

func call(ctx context.Context, d Dispatcher, req Request) (Response, error) {
	ref, err := d.Lookup(req.Name)
	if err != nil {
		return Response{}, err
	}
	if req.SessionKey != "" {
		if err := ref.Attach(req.SessionKey); err != nil {
			return Response{}, err
		}
	}
	result, err := ref.Invoke(ctx, req.Operation, req.Args)
	if err != nil {
		return Response{}, err
	}
	return Response{Result: result, SessionKey: ref.SessionKey()}, nil
}

// Failure builds the error response for err
func Failure(err error) Response {
	return Response{Error: ToError(err)}
}
