package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthHandlerUnhealthyOnComponentFailure(t *testing.T) {
	c := NewChecker("registry")
	c.Set("registry", false, "backend open failed")

	w := httptest.NewRecorder()
	c.HealthHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyHandlerNotReadyUntilRequiredComponentsRegister(t *testing.T) {
	c := NewChecker("registry", "transport")

	w := httptest.NewRecorder()
	c.ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	c.Set("registry", true, "")
	c.Set("transport", true, "")

	w = httptest.NewRecorder()
	c.ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	c := NewChecker()
	w := httptest.NewRecorder()
	c.LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
