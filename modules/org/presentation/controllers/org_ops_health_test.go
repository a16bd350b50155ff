package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func serveHealth(t *testing.T, probes HealthProbes) (int, orgHealthResponse) {
	t.Helper()
	r := mux.NewRouter()
	NewOrgOpsHealthController(probes).Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/org/api/ops/health", nil))
	var out orgHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestOrgOpsHealth_Healthy(t *testing.T) {
	code, out := serveHealth(t, HealthProbes{
		PingDB:            func(context.Context) error { return nil },
		PendingMigrations: func(context.Context) (int, error) { return 0, nil },
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, orgHealthStatusHealthy, out.Status)
	require.Equal(t, false, out.Checks["cache"].Details["enabled"])
}

func TestOrgOpsHealth_PendingMigrationsDegrade(t *testing.T) {
	code, out := serveHealth(t, HealthProbes{
		PingDB:            func(context.Context) error { return nil },
		PendingMigrations: func(context.Context) (int, error) { return 2, nil },
		PingCache:         func(context.Context) error { return errors.New("connection refused") },
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, orgHealthStatusDegraded, out.Status)
	require.Equal(t, orgHealthStatusDegraded, out.Checks["migrations"].Status)
	require.Equal(t, orgHealthStatusDegraded, out.Checks["cache"].Status)
}

func TestOrgOpsHealth_DatabaseDown(t *testing.T) {
	code, out := serveHealth(t, HealthProbes{
		PingDB: func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, orgHealthStatusDown, out.Status)
	require.Contains(t, out.Checks["database"].Error, "refused")
}
