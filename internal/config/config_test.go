package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 300, cfg.Server.SyncTimeoutSeconds)
	require.Equal(t, 2, cfg.Crawler.Workers)
	require.Equal(t, 64, cfg.Crawler.QueueDepth)
	require.Equal(t, 30, cfg.Crawler.MaxCategories)
	require.Equal(t, 3, cfg.Crawler.MaxPaginationPages)
	require.True(t, cfg.Crawler.PersistResults)
	require.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
	require.False(t, cfg.Headless.Enabled)
	require.Equal(t, 2048, cfg.Headless.MinHTMLBytes)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.Equal(t, "crawl_results", cfg.Database.Table)
	require.False(t, cfg.PubSub.Enabled)
	require.True(t, cfg.Logging.Development)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func validConfig() Config {
	cfg, _ := Load("")
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Crawler.Workers = 0 },
			wantErr: "crawler.workers",
		},
		{
			name:    "zero max categories",
			mutate:  func(c *Config) { c.Crawler.MaxCategories = 0 },
			wantErr: "crawler.max_categories",
		},
		{
			name:    "zero http timeout",
			mutate:  func(c *Config) { c.HTTP.TimeoutSeconds = 0 },
			wantErr: "http.timeout_seconds",
		},
		{
			name: "headless enabled without parallelism",
			mutate: func(c *Config) {
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
			},
			wantErr: "headless.max_parallel",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "s3" },
			wantErr: "storage.backend",
		},
		{
			name:    "gcs without bucket",
			mutate:  func(c *Config) { c.Storage.Backend = "gcs" },
			wantErr: "storage.gcs_bucket",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Storage.Backend = "postgres" },
			wantErr: "database.dsn",
		},
		{
			name:    "pubsub enabled without topic",
			mutate:  func(c *Config) { c.PubSub.Enabled = true },
			wantErr: "pubsub.project_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server:   ServerConfig{SyncTimeoutSeconds: 300},
		HTTP:     HTTPConfig{TimeoutSeconds: 30},
		Headless: HeadlessConfig{NavTimeoutSec: 25},
	}
	require.Equal(t, 5*time.Minute, cfg.SyncTimeout())
	require.Equal(t, 30*time.Second, cfg.FetchTimeout())
	require.Equal(t, 25*time.Second, cfg.NavTimeout())
}
