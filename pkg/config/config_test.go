package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Backend.PageSize)
	assert.Equal(t, 10000, cfg.Backend.CountingLimit)
	assert.Equal(t, 10*time.Minute, cfg.Cache.VocabularyStaleTime())
	assert.Zero(t, cfg.Cache.ListStaleTime())
	assert.Equal(t, 300*time.Millisecond, cfg.Filters.Debounce())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONSOLE_BACKEND_BASEURL", "https://recs.example.com/api")
	t.Setenv("CONSOLE_BACKEND_PAGESIZE", "25")
	t.Setenv("CONSOLE_REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://recs.example.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, 25, cfg.Backend.PageSize)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		backend BackendConfig
		wantErr string
	}{
		{"ok", BackendConfig{BaseURL: "http://x", PageSize: 10, CountingLimit: 100}, ""},
		{"missing url", BackendConfig{PageSize: 10, CountingLimit: 100}, "backend.baseURL is required"},
		{"zero page size", BackendConfig{BaseURL: "http://x", CountingLimit: 100}, "backend.pageSize must be positive"},
		{"counting below page", BackendConfig{BaseURL: "http://x", PageSize: 10, CountingLimit: 5}, "must not be below"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Backend: tt.backend}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
