package model

import "errors"

// Error taxonomy for session and store operations. Callers discriminate with
// errors.Is; wire error codes come from ErrorCode.
var (
	// ErrUnauthorized rejects a session before any event is processed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound rejects an operation on an unknown room or message. The
	// session stays open.
	ErrNotFound = errors.New("not found")

	// ErrNotMember rejects an event targeting a room the identity has not
	// joined on this connection.
	ErrNotMember = errors.New("not a member of room")

	// ErrValidation rejects malformed input (empty body with no attachment,
	// missing fields) with no partial state change.
	ErrValidation = errors.New("validation failed")

	// ErrStore marks a transient durable-store failure. The operation fails;
	// the connection is not torn down.
	ErrStore = errors.New("store unavailable")
)

// ErrorCode maps a taxonomy error to the code carried by an error event.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotMember):
		return "not_member"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrStore):
		return "store_unavailable"
	default:
		return "internal"
	}
}
