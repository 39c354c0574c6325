package export

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an export could not produce an archive.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindNotFound
	KindAccessDenied
	KindNoContentAvailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindNoContentAvailable:
		return "no_content_available"
	default:
		return "internal_failure"
	}
}

// Error is the typed outcome of a failed export. Expected conditions carry
// a user-facing Message; internal failures wrap the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("export: %s: %v", msg, e.Err)
	}
	return "export: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so callers can compare against
// the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAccessDenied       = &Error{Kind: KindAccessDenied}
	ErrNoContentAvailable = &Error{Kind: KindNoContentAvailable}
	ErrInternal           = &Error{Kind: KindInternal}

	// ErrSinkClosed marks a failed write to the destination, which in practice
	// means the client went away.
	ErrSinkClosed = errors.New("sink is no longer writable")
)

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the Kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps an export error to the HTTP status reported to the client.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound, KindNoContentAvailable:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe text for err. Internal causes are not exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case KindInvalidRequest:
		return "Please provide valid image IDs"
	case KindNotFound:
		return "No media found"
	case KindAccessDenied:
		return "Access denied to the requested images"
	case KindNoContentAvailable:
		return "No files found to download"
	default:
		return "Failed to create ZIP file"
	}
}
