package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	cases := []struct {
		name   string
		checks map[string]ReadinessCheck
		status int
		failed string
	}{
		{"no checks", nil, http.StatusOK, ""},
		{"all serving", map[string]ReadinessCheck{"db": ok, "redis": ok}, http.StatusOK, ""},
		{"redis down", map[string]ReadinessCheck{"db": ok, "redis": down}, http.StatusServiceUnavailable, "redis"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/readyz", readiness(tc.checks))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, tc.status, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tc.failed != "" {
				require.Equal(t, tc.failed, body["failed"])
				require.NotContains(t, w.Body.String(), "connection refused")
			}
		})
	}
}
