package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/purchasing/internal/observability"
	"github.com/odyssey-erp/purchasing/internal/shared"
	"github.com/odyssey-erp/purchasing/jobs"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthzReportsDatabase(t *testing.T) {
	cfg := &Config{RateLimitPerMinute: 100}
	ok := NewRouter(RouterParams{Config: cfg, Database: stubPinger{}})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	down := NewRouter(RouterParams{Config: cfg, Database: stubPinger{err: errors.New("refused")}})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsAndJobsMounted(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 100}, Metrics: metrics, JobHandler: jobs.NewHandler(nil, nil)})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "purchasing_http_requests_total")
}

func TestActorMiddlewareAndRequireActor(t *testing.T) {
	var seen int64
	h := ActorMiddleware(RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(ActorHeader, "42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, int64(42), seen)

	for _, value := range []string{"", "abc", "-3"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(ActorHeader, value)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, value)
		require.Contains(t, rec.Body.String(), "ACTOR_REQUIRED")
	}
}

func TestLoadConfigDefaultsAndValidation(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, LockBackendRedis, cfg.LockBackend)
	require.Equal(t, int32(6), cfg.InventoryCostPrecision)
	require.False(t, cfg.IsProduction())

	t.Setenv("LOCK_BACKEND", "zookeeper")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("LOCK_BACKEND", LockBackendLocal)
	t.Setenv("INVENTORY_COST_PRECISION", "20")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestNewLockerFallsBackToLocal(t *testing.T) {
	_, isLocal := NewLocker(&Config{LockBackend: LockBackendRedis}, nil).(*shared.LocalLocker)
	require.True(t, isLocal)
	_, isLocal = NewLocker(&Config{LockBackend: LockBackendLocal}, nil).(*shared.LocalLocker)
	require.True(t, isLocal)
}

func TestJSONLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json"}, &buf).Info("hello")
	require.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestConfigDerivesConnectionSettings(t *testing.T) {
	t.Setenv("PG_MAX_CONNS", "25")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	pg := cfg.Postgres()
	require.Equal(t, cfg.PGDSN, pg.DSN)
	require.Equal(t, int32(25), pg.MaxConns)

	opt := cfg.Redis().AsynqOpt()
	require.Equal(t, "redis:6380", opt.Addr)
	require.Equal(t, 3, opt.DB)
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestLoggerLevelFollowsEnvironment(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf).Debug("hidden")
	require.Empty(t, buf.String())

	newLogger(&Config{AppEnv: "development", LogFormat: "json"}, &buf).Debug("shown")
	require.Contains(t, buf.String(), `"service":"purchasing"`)
	require.Contains(t, buf.String(), `"env":"development"`)
}
