package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/application"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/configuration"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/httpapi"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/metrics"
)

func TestDefault_ServesEnvelopesAndMetrics(t *testing.T) {
	logger, _ := test.NewNullLogger()
	app := application.New(&application.ApplicationOptions{Logger: logger})
	app.RegisterControllers(metrics.NewPrometheusController("/debug/prometheus"))

	srv, err := Default(&DefaultOptions{
		Logger:        logger,
		Configuration: &configuration.Configuration{RequestIDHeader: "X-Request-ID", ActorIDHeader: "X-Actor-ID"},
		Application:   app,
	})
	require.NoError(t, err)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "NotFound", env.Code)
	require.Equal(t, rec.Header().Get("X-Request-ID"), env.Meta["request_id"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDefault_RateLimitsWithMemoryStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	app := application.New(&application.ApplicationOptions{Logger: logger})
	app.RegisterControllers(metrics.NewPrometheusController("/debug/prometheus"))

	conf := &configuration.Configuration{RequestIDHeader: "X-Request-ID", ActorIDHeader: "X-Actor-ID"}
	conf.RateLimit = configuration.RateLimitOptions{Enabled: true, GlobalRPS: 1, Storage: "memory"}
	srv, err := Default(&DefaultOptions{Logger: logger, Configuration: conf, Application: app})
	require.NoError(t, err)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
