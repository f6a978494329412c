package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubHealthChecker struct {
	err error
}

func (s stubHealthChecker) HealthCheck(ctx context.Context) error {
	return s.err
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		database string
	}{
		{"healthy", nil, http.StatusOK, "up"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Health(stubHealthChecker{err: tt.err})(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			var resp healthResponse
			AssertJSONResponse(t, w, tt.status, &resp)
			assert.Equal(t, tt.database, resp.Database)
		})
	}
}
