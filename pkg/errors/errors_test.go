package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad n"), http.StatusUnprocessableEntity},
		{"wrapped invalid input", fmt.Errorf("parsing n: %w", ErrInvalidInput), http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"not loaded", ErrIndexNotLoaded, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsLoadFailure(t *testing.T) {
	if !IsLoadFailure(fmt.Errorf("loading matrix: %w", ErrRowCountMismatch)) {
		t.Error("row count mismatch should be a load failure")
	}
	if !IsLoadFailure(Newf(ErrDimensionMismatch, http.StatusInternalServerError, "dim %d != %d", 3, 4)) {
		t.Error("dimension mismatch app error should be a load failure")
	}
	if IsLoadFailure(ErrInvalidInput) {
		t.Error("invalid input is not a load failure")
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrArtifactCorrupt, http.StatusInternalServerError, "checksum %x", 42)
	if !errors.Is(err, ErrArtifactCorrupt) {
		t.Fatal("AppError must unwrap to its sentinel")
	}
	if err.Error() != "index artifact corrupt: checksum 2a" {
		t.Errorf("Error() = %q", err.Error())
	}
}
