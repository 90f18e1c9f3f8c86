package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/testing/memstore"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func testConfig() *Config {
	return &Config{
		PGDSN:              "postgres://localhost/test",
		ChartVersion:       "2024.1",
		AppRequestTimeout:  time.Second,
		RateLimitPerMinute: 1,
	}
}

func TestHealthzReportsDatabase(t *testing.T) {
	router := NewRouter(RouterParams{Config: testConfig(), Database: stubPinger{}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"ok"`)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	router = NewRouter(RouterParams{Config: testConfig(), Database: stubPinger{err: errors.New("down")}})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "degraded")
}

func TestRouterMountsCompanyRoutes(t *testing.T) {
	store := memstore.New()
	svc := periods.NewService(store.Periods(), nil, nil)
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Config:         testConfig(),
		PeriodsHandler: periods.NewHandler(nil, svc),
		Metrics:        metrics,
	})

	// the rate limit of one request per minute is lifted in test mode
	for i, want := range []int{http.StatusOK, http.StatusConflict} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/companies/1/periods/2024/1/close", nil))
		require.Equal(t, want, rr.Code, "request %d: %s", i, rr.Body.String())
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/companies/1/documents/1/post", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `route="/companies/{companyID}/periods/{year}/{month}/close"`)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	cfg.ChartVersion = "1999.1"
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.PGDSN = ""
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.LedgerLockTimeout = -time.Second
	require.Error(t, cfg.Validate())

	require.False(t, cfg.IsProduction())
	cfg.AppEnv = "production"
	require.True(t, cfg.IsProduction())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://ledger@db/ledger")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "2s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "postgres://ledger@db/ledger", cfg.PGDSN)
	require.Equal(t, 2*time.Second, cfg.LedgerLockTimeout)
	require.Equal(t, 30*time.Second, cfg.DocumentLockTTL)
	require.True(t, cfg.DocumentLockEnabled)
	require.Equal(t, "0 3 * * *", cfg.IntegrityScanCron)
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.Int64("company_id", 1))
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.True(t, strings.HasPrefix(out, "{"))
	require.Contains(t, out, `"company_id":1`)
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}
