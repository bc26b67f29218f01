package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: 8080, TimeoutSeconds: 5},
		Logging: config.LoggingConfig{Development: false},
		Site:    crawler.DefaultSiteProfile(),
		Timing:  crawler.DefaultTiming(),
		Session: config.SessionConfig{Name: "test"},
		Store:   config.StoreConfig{Backend: config.StoreLocal, Dir: t.TempDir()},
		Browser: config.BrowserConfig{Mode: config.BrowserStatic, NavTimeoutSeconds: 5},
		Export:  config.ExportConfig{Backend: config.ExportMemory},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildWiresStaticStack(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status store.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "test", status.Session)
	require.False(t, status.CrawlInProgress)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/exports", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestBuildExportDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Export.Backend = config.ExportNone
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/exports", nil))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestBuildLocalStoreFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Store.Dir = "/dev/null/state"
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}
