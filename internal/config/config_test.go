package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "FUNCTIONS_CUSTOMHANDLER_PORT", "DATABASE_URL", "RUN_KINDS", "UPSTREAM_TIMEOUT", "IMPORT_DAYS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "file:stravastats.db", cfg.DatabaseURL)
	assert.Equal(t, []string{"Run", "TrailRun", "VirtualRun"}, cfg.RunKinds)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, time.Minute, cfg.TokenRefreshMargin)
	assert.Equal(t, 365, cfg.ImportDays)
	assert.Equal(t, 200, cfg.ImportPageSize)
	assert.Equal(t, 90, cfg.ImportRatePerMinute)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FUNCTIONS_CUSTOMHANDLER_PORT", "7071")
	t.Setenv("RUN_KINDS", " Run , ,VirtualRun")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("IMPORT_DAYS", "30")
	t.Setenv("IMPORT_PAGE_SIZE", "lots")

	cfg := Load()
	assert.Equal(t, "7071", cfg.Port)
	assert.Equal(t, []string{"Run", "VirtualRun"}, cfg.RunKinds)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 30, cfg.ImportDays)
	assert.Equal(t, 200, cfg.ImportPageSize, "an invalid page size falls back to the default")

	t.Setenv("PORT", "9000")
	assert.Equal(t, "9000", Load().Port)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{StravaClientID: "1", StravaClientSecret: "s"}.Validate())
}
