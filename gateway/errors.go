package gateway

import (
	"context"
	"net/http"

	"github.com/c360/beancontainer/errors"
)

type errorMapping struct {
	err    error
	code   string
	status int
}

// errorMappings is consulted in order; the first sentinel err wraps wins.
var errorMappings = []errorMapping{
	{errors.ErrNoSuchSession, "no_such_session", http.StatusNotFound},
	{errors.ErrConcurrentSessionAccess, "concurrent_session_access", http.StatusConflict},
	{errors.ErrConcurrentAccessTimeout, "concurrent_access_timeout", http.StatusServiceUnavailable},
	{errors.ErrNameNotFound, "name_not_found", http.StatusNotFound},
	{errors.ErrUnknownComponent, "unknown_component", http.StatusNotFound},
	{errors.ErrUnknownOperation, "unknown_operation", http.StatusBadRequest},
	{errors.ErrOperationNotInView, "operation_not_in_view", http.StatusForbidden},
	{errors.ErrWrongKind, "wrong_kind", http.StatusBadRequest},
	{errors.ErrInvalidArgument, "invalid_argument", http.StatusBadRequest},
	{errors.ErrNotFound, "not_found", http.StatusNotFound},
	{errors.ErrDataStore, "data_store", http.StatusServiceUnavailable},
	{errors.ErrRateLimited, "rate_limited", http.StatusTooManyRequests},
	{errors.ErrNotStarted, "not_started", http.StatusServiceUnavailable},
	{errors.ErrShuttingDown, "shutting_down", http.StatusServiceUnavailable},
	{errors.ErrNoConnection, "no_connection", http.StatusServiceUnavailable},
	{errors.ErrComponentPanic, "component_panic", http.StatusInternalServerError},
	{context.DeadlineExceeded, "timeout", http.StatusGatewayTimeout},
	{context.Canceled, "canceled", http.StatusServiceUnavailable},
}

func lookupMapping(err error) (errorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// ToError returns the client-safe form of err. Known sentinels keep their own
// message; anything else is reduced to its error class.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	class := errors.Classify(err)
	if m, ok := lookupMapping(err); ok {
		return &Error{Code: m.code, Class: class.String(), Message: m.err.Error()}
	}

	switch class {
	case errors.ErrorInvalid:
		return &Error{Code: "invalid", Class: class.String(), Message: "invalid request"}
	case errors.ErrorTransient:
		return &Error{Code: "unavailable", Class: class.String(), Message: "service temporarily unavailable"}
	default:
		return &Error{Code: "internal", Class: class.String(), Message: "internal server error"}
	}
}

// HTTPStatus maps err to an HTTP status code
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if m, ok := lookupMapping(err); ok {
		return m.status
	}
	switch errors.Classify(err) {
	case errors.ErrorInvalid:
		return http.StatusBadRequest
	case errors.ErrorTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
