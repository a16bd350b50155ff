package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
)

type orgHealthStatus string

const (
	orgHealthStatusHealthy  orgHealthStatus = "healthy"
	orgHealthStatusDegraded orgHealthStatus = "degraded"
	orgHealthStatusDown     orgHealthStatus = "down"
)

type orgHealthResponse struct {
	Status    orgHealthStatus               `json:"status"`
	Timestamp string                        `json:"timestamp"`
	Checks    map[string]orgComponentHealth `json:"checks"`
}

type orgComponentHealth struct {
	Status       orgHealthStatus `json:"status"`
	ResponseTime string          `json:"responseTime,omitempty"`
	Error        string          `json:"error,omitempty"`
	Details      map[string]any  `json:"details,omitempty"`
}

const (
	orgDBDegradedLatency    = 100 * time.Millisecond
	orgHealthCheckTimeout   = 5 * time.Second
	orgCacheDegradedLatency = 50 * time.Millisecond
)

// HealthProbes are the dependencies the ops health endpoint checks. A nil
// probe reports the component as disabled.
type HealthProbes struct {
	PingDB            func(ctx context.Context) error
	PendingMigrations func(ctx context.Context) (int, error)
	PingCache         func(ctx context.Context) error
}

type OrgOpsHealthController struct {
	probes HealthProbes
	path   string
}

func NewOrgOpsHealthController(probes HealthProbes) application.Controller {
	return &OrgOpsHealthController{probes: probes, path: "/org/api/ops/health"}
}

func (c *OrgOpsHealthController) Key() string {
	return c.path
}

func (c *OrgOpsHealthController) Register(r *mux.Router) {
	r.HandleFunc(c.path, instrumentAPI("org.ops.health", c.GetOpsHealth)).Methods(http.MethodGet)
}

func (c *OrgOpsHealthController) GetOpsHealth(w http.ResponseWriter, r *http.Request) {
	response := c.performOrgOpsHealthChecks(r.Context())

	status := http.StatusOK
	if response.Status == orgHealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (c *OrgOpsHealthController) performOrgOpsHealthChecks(ctx context.Context) orgHealthResponse {
	checks := make(map[string]orgComponentHealth)
	overall := orgHealthStatusHealthy

	dbHealth := c.checkDatabase(ctx)
	checks["database"] = dbHealth
	overall = mergeOrgHealthStatus(overall, dbHealth.Status)

	migrations := c.checkMigrations(ctx)
	checks["migrations"] = migrations
	overall = mergeOrgHealthStatus(overall, migrations.Status)

	cache := c.checkCache(ctx)
	checks["cache"] = cache
	overall = mergeOrgHealthStatus(overall, cache.Status)

	return orgHealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}

func mergeOrgHealthStatus(current, next orgHealthStatus) orgHealthStatus {
	if next == orgHealthStatusDown {
		return orgHealthStatusDown
	}
	if next == orgHealthStatusDegraded && current == orgHealthStatusHealthy {
		return orgHealthStatusDegraded
	}
	return current
}

func (c *OrgOpsHealthController) checkDatabase(ctx context.Context) orgComponentHealth {
	start := time.Now()
	if c.probes.PingDB == nil {
		return orgComponentHealth{
			Status: orgHealthStatusDown,
			Error:  "database connection pool not available",
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, orgHealthCheckTimeout)
	defer cancel()

	err := c.probes.PingDB(timeoutCtx)
	responseTime := time.Since(start)
	if err != nil {
		return orgComponentHealth{
			Status:       orgHealthStatusDown,
			ResponseTime: responseTime.String(),
			Error:        fmt.Sprintf("database query failed: %v", err),
		}
	}

	status := orgHealthStatusHealthy
	if responseTime > orgDBDegradedLatency {
		status = orgHealthStatusDegraded
	}
	return orgComponentHealth{
		Status:       status,
		ResponseTime: responseTime.String(),
	}
}

func (c *OrgOpsHealthController) checkMigrations(ctx context.Context) orgComponentHealth {
	start := time.Now()
	if c.probes.PendingMigrations == nil {
		return orgComponentHealth{Status: orgHealthStatusHealthy, Details: map[string]any{"enabled": false}}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, orgHealthCheckTimeout)
	defer cancel()

	pending, err := c.probes.PendingMigrations(timeoutCtx)
	if err != nil {
		return orgComponentHealth{
			Status:       orgHealthStatusDegraded,
			ResponseTime: time.Since(start).String(),
			Error:        fmt.Sprintf("migration status failed: %v", err),
		}
	}
	status := orgHealthStatusHealthy
	if pending > 0 {
		status = orgHealthStatusDegraded
	}
	return orgComponentHealth{
		Status:       status,
		ResponseTime: time.Since(start).String(),
		Details:      map[string]any{"pending": pending},
	}
}

// checkCache never reports down: reads fall back to the database.
func (c *OrgOpsHealthController) checkCache(ctx context.Context) orgComponentHealth {
	start := time.Now()
	if c.probes.PingCache == nil {
		return orgComponentHealth{Status: orgHealthStatusHealthy, Details: map[string]any{"enabled": false}}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, orgHealthCheckTimeout)
	defer cancel()

	err := c.probes.PingCache(timeoutCtx)
	responseTime := time.Since(start)
	if err != nil {
		return orgComponentHealth{
			Status:       orgHealthStatusDegraded,
			ResponseTime: responseTime.String(),
			Error:        fmt.Sprintf("cache ping failed: %v", err),
			Details:      map[string]any{"enabled": true},
		}
	}
	status := orgHealthStatusHealthy
	if responseTime > orgCacheDegradedLatency {
		status = orgHealthStatusDegraded
	}
	return orgComponentHealth{
		Status:       status,
		ResponseTime: responseTime.String(),
		Details:      map[string]any{"enabled": true},
	}
}
