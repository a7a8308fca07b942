package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	parseErr := errors.New("query: unterminated phrase")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("delete 7: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"exists", ErrDocumentExists, http.StatusConflict},
		{"bad query", fmt.Errorf("%w: %w", ErrInvalidQuery, parseErr), http.StatusBadRequest},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"corrupt", ErrCorruptIndex, http.StatusInternalServerError},
		{"app error", Newf(ErrInvalidInput, http.StatusUnprocessableEntity, "column %d", 3), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := New(ErrInvalidQuery, http.StatusBadRequest, "empty")
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, "invalid query: empty", err.Error())
}
