package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind identifies a gateway failure category. Kinds are stable strings
// rendered to clients alongside the HTTP status.
type ErrorKind string

const (
	KindMalformedInput ErrorKind = "malformed_input"

	KindSignatureExpired ErrorKind = "signature_expired"
	KindSignatureInvalid ErrorKind = "signature_invalid"
	KindSignatureConfig  ErrorKind = "signature_config"

	KindTokenMissing     ErrorKind = "token_missing"
	KindTokenExpired     ErrorKind = "token_expired"
	KindTokenInvalid     ErrorKind = "token_invalid"
	KindTokenNotYetValid ErrorKind = "token_not_yet_valid"
	KindTokenMalformed   ErrorKind = "token_malformed"

	KindSessionNotFound ErrorKind = "session_not_found"
	KindSessionExpired  ErrorKind = "session_expired"
	KindSessionMismatch ErrorKind = "session_mismatch"
	KindSessionPersist  ErrorKind = "session_persist"

	KindInvalidDeviceClass ErrorKind = "invalid_device_class"
	KindRefreshDenied      ErrorKind = "refresh_denied"

	KindRouteNotRegistered ErrorKind = "route_not_registered"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindAccountDisabled    ErrorKind = "account_disabled"
	KindAccountLocked      ErrorKind = "account_locked"
	KindPermissionDenied   ErrorKind = "permission_denied"

	KindInvalidCredentials ErrorKind = "invalid_credentials"
)

// Error is the client-visible gateway failure. Every rejection produced by the
// pipeline carries a deterministic kind, message and HTTP status.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError constructs an Error with an explicit status.
func NewError(kind ErrorKind, status int, message string) *Error {
	return &Error{Kind: kind, Message: message, Status: status}
}

// MalformedInput reports a missing or unparsable request field.
func MalformedInput(format string, args ...any) *Error {
	return &Error{Kind: KindMalformedInput, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

// Unauthorized builds a 401 error of the given kind.
func Unauthorized(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Status: http.StatusUnauthorized}
}

// AsError unwraps err into a gateway Error when possible.
func AsError(err error) (*Error, bool) {
	var gw *Error
	if errors.As(err, &gw) {
		return gw, true
	}
	return nil, false
}

// IsKind reports whether err is a gateway Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	gw, ok := AsError(err)
	return ok && gw.Kind == kind
}
