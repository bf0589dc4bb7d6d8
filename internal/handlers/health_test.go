package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   HealthResponse
	}{
		{"healthy", nil, http.StatusOK, HealthResponse{Status: "healthy", Database: "up"}},
		{"database down", errors.New("dial tcp: refused"), http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Database: "down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Health(healthFunc(func(ctx context.Context) error { return tt.err }))
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			var got HealthResponse
			AssertJSONResponse(t, w, tt.status, &got)
			assert.Equal(t, tt.want, got)
		})
	}
}
