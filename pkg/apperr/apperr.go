package apperr

import "errors"

type AppError struct {
	Code    string
	Message string
	Origin  error // underlying cause, if any
}

func (e *AppError) Error() string {
	if e.Origin != nil {
		return e.Message + ": " + e.Origin.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Origin
}

const (
	NotFound     = "NOT_FOUND"
	InvalidInput = "INVALID_INPUT"
	Unauthorized = "UNAUTHORIZED"
	Forbidden    = "FORBIDDEN"
	Duplicate    = "DUPLICATE"
	Database     = "DATABASE"
)

func New(code, message string, origin error) *AppError {
	return &AppError{Code: code, Message: message, Origin: origin}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: NotFound, Message: message}
}

func NewInvalid(message string) *AppError {
	return &AppError{Code: InvalidInput, Message: message}
}

func NewForbidden(message string) *AppError {
	return &AppError{Code: Forbidden, Message: message}
}

func NewDatabase(origin error) *AppError {
	return &AppError{Code: Database, Message: "Erro interno", Origin: origin}
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Status maps an error to the HTTP status the handlers respond with.
func Status(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return 500
	}
	switch appErr.Code {
	case NotFound:
		return 404
	case InvalidInput:
		return 400
	case Unauthorized:
		return 401
	case Forbidden:
		return 403
	case Duplicate:
		return 409
	default:
		return 500
	}
}

// Message returns the user-facing text for err. Internal causes are never
// exposed.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Erro interno"
}
