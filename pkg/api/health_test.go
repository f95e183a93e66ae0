package api

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/storage"
)

func TestAdminServerHealthEndpointsRespond(t *testing.T) {
	facade, err := storage.Open(t.TempDir())
	require.NoError(t, err)

	as := NewAdminServer(facade)

	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		as.Handler().ServeHTTP(rec, req)
		require.NotEqual(t, 0, rec.Code, "path %s produced no response", path)
	}
}

func TestAdminServerReadyFlipsOnceStorageReplays(t *testing.T) {
	facade, err := storage.Open(t.TempDir())
	require.NoError(t, err)

	as := NewAdminServer(facade)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	as.WatchStorageReadiness(ctx)

	rec := httptest.NewRecorder()
	as.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))
	require.Equal(t, 200, rec.Code, "facade opened synchronously, readiness should already be true")
}
