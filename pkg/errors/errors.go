// Package errors defines the sentinel errors shared by the lyric search
// services and maps them onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrArtifactMissing   = errors.New("index artifact missing")
	ErrArtifactCorrupt   = errors.New("index artifact corrupt")
	ErrArtifactVersion   = errors.New("index artifacts come from different builds")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrRowCountMismatch  = errors.New("matrix row count does not match catalog")
	ErrInvalidCatalog    = errors.New("invalid catalog")
	ErrIndexNotLoaded    = errors.New("index not loaded")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
	ErrUnavailable       = errors.New("dependency unavailable")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsLoadFailure reports whether err is one of the fatal index load errors.
func IsLoadFailure(err error) bool {
	for _, target := range []error{
		ErrArtifactMissing,
		ErrArtifactCorrupt,
		ErrArtifactVersion,
		ErrDimensionMismatch,
		ErrRowCountMismatch,
		ErrInvalidCatalog,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrIndexNotLoaded), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
