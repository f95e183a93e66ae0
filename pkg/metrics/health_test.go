package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetHealthChecker(t *testing.T) {
	t.Helper()
	healthChecker = &checker{
		components: make(map[Component]componentState),
		startTime:  time.Now(),
	}
}

func decodeHealthStatus(t *testing.T, body *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var hs HealthStatus
	require.NoError(t, json.NewDecoder(body.Body).Decode(&hs))
	return hs
}

func TestGetHealthAllComponentsHealthy(t *testing.T) {
	resetHealthChecker(t)
	healthChecker.version = "1.0.0"

	RegisterComponent(ComponentAPI, true, "")
	RegisterComponent(ComponentStorage, true, "")

	health := GetHealth()
	require.Equal(t, StatusHealthy, health.Status)
	require.Len(t, health.Components, 2)
	require.Equal(t, "1.0.0", health.Version)
}

func TestGetHealthReportsUnhealthyComponent(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent(ComponentAPI, true, "")
	RegisterComponent(ComponentStorage, false, "not connected")

	health := GetHealth()
	require.Equal(t, StatusUnhealthy, health.Status)
	require.Equal(t, "unhealthy: not connected", health.Components[string(ComponentStorage)])
}

func TestGetReadinessAllCriticalComponentsReady(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent(ComponentStorage, true, "")
	RegisterComponent(ComponentAPI, true, "")

	readiness := GetReadiness()
	require.Equal(t, StatusReady, readiness.Status)
}

func TestGetReadinessMissingCriticalComponent(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent(ComponentAPI, true, "")
	// storage never registered

	readiness := GetReadiness()
	require.Equal(t, StatusNotReady, readiness.Status)
	require.NotEmpty(t, readiness.Message)
}

func TestGetReadinessCriticalComponentUnhealthy(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent(ComponentStorage, false, "replaying log")
	RegisterComponent(ComponentAPI, true, "")

	readiness := GetReadiness()
	require.Equal(t, StatusNotReady, readiness.Status)
}

func TestHealthHandlerReportsHealthy(t *testing.T) {
	resetHealthChecker(t)
	healthChecker.version = "test"
	RegisterComponent(ComponentAPI, true, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	health := decodeHealthStatus(t, w)
	require.Equal(t, StatusHealthy, health.Status)
	require.Equal(t, "test", health.Version)
}

func TestHealthHandlerReportsUnhealthyAsServiceUnavailable(t *testing.T) {
	resetHealthChecker(t)
	RegisterComponent(ComponentAPI, false, "broken")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	health := decodeHealthStatus(t, w)
	require.Equal(t, StatusUnhealthy, health.Status)
}

func TestReadyHandlerReady(t *testing.T) {
	resetHealthChecker(t)
	RegisterComponent(ComponentStorage, true, "")
	RegisterComponent(ComponentAPI, true, "")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	readiness := decodeHealthStatus(t, w)
	require.Equal(t, StatusReady, readiness.Status)
}

func TestReadyHandlerNotReadyWithoutStorage(t *testing.T) {
	resetHealthChecker(t)
	RegisterComponent(ComponentAPI, true, "")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	readiness := decodeHealthStatus(t, w)
	require.Equal(t, StatusNotReady, readiness.Status)
}

func TestLivenessHandlerAlwaysReportsAlive(t *testing.T) {
	resetHealthChecker(t)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, string(StatusAlive), body["status"])
	require.NotEmpty(t, body["uptime"])
}

func TestUpdateComponentOverwritesPriorState(t *testing.T) {
	resetHealthChecker(t)

	RegisterComponent(ComponentStorage, true, "ok")
	UpdateComponent(ComponentStorage, false, "lost quorum")

	health := GetHealth()
	require.Equal(t, "unhealthy: lost quorum", health.Components[string(ComponentStorage)])
}
