package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		checks   map[string]func(context.Context) error
		wantCode int
		want     map[string]string
	}{
		{
			name:     "all healthy",
			checks:   map[string]func(context.Context) error{"postgres": ok, "redis": ok},
			wantCode: http.StatusOK,
			want:     map[string]string{"status": "ok", "postgres": "ok", "redis": "ok"},
		},
		{
			name:     "redis down",
			checks:   map[string]func(context.Context) error{"postgres": ok, "redis": down},
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]string{"status": "degraded", "postgres": "ok", "redis": "unavailable"},
		},
		{
			name:     "no checks",
			checks:   nil,
			wantCode: http.StatusOK,
			want:     map[string]string{"status": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			healthHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestHealthHandler_CheckGetsDeadline(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	check := func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}

	rec := httptest.NewRecorder()
	healthHandler(map[string]func(context.Context) error{"postgres": check})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, hasDeadline)
}

func TestAPIConfig(t *testing.T) {
	t.Parallel()

	c := apiConfig("Tally API")
	assert.Equal(t, "Tally API", c.Info.Title)
	require.Len(t, c.Servers, 1)
	assert.Equal(t, "/api/v1", c.Servers[0].URL)
}
