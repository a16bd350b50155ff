package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/httpapi"
)

func TestRateLimit_PerActor(t *testing.T) {
	limited := RateLimit(RateLimitConfig{RequestsPerPeriod: 2, Period: time.Minute, Store: NewMemoryStore()})
	h := WithActor("X-Actor-ID")(limited(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	call := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/org/api/positions/x/chain", nil)
		req.Header.Set("X-Actor-ID", actor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := uuid.NewString()
	require.Equal(t, http.StatusNoContent, call(first).Code)
	rec := call(first)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call(first)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "RateLimited", env.Code)

	require.Equal(t, http.StatusNoContent, call(uuid.NewString()).Code)
}

func TestCors_Preflight(t *testing.T) {
	h := Cors("X-Request-ID", "X-Actor-ID", "https://admin.example")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/org/api/assignments", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "x-actor-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://admin.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/org/api/hierarchy:validate", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
