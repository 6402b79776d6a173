package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
site:
  org: acme
  name: website
  ref: main
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, "https://admin.hlx.page", cfg.Admin.URL)
	require.Equal(t, 3, cfg.Pipeline.Concurrency)
	require.Equal(t, []string{"/*"}, cfg.Pipeline.Paths)
	require.Equal(t, 10, cfg.Delivery.BatchSize)
	require.Equal(t, "media-log-failures.json", cfg.Delivery.FailureFile)
	require.Equal(t, 30*time.Second, cfg.AdminTimeout())
	require.Equal(t, 2*time.Second, cfg.PollInterval())
	require.True(t, cfg.Logging.Development)
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
site:
  org: acme
  name: website
  ref: preview
pipeline:
  concurrency: 5
  fallback_user: importer@acme.com
delivery:
  batch_size: 4
  dry_run: true
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, "preview", cfg.Site.Ref)
	require.Equal(t, 5, cfg.Pipeline.Concurrency)
	require.Equal(t, "importer@acme.com", cfg.Pipeline.FallbackUser)
	require.Equal(t, 4, cfg.Delivery.BatchSize)
	require.True(t, cfg.Delivery.DryRun)
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing org",
			mutate:  func(c *Config) { c.Site.Org = "" },
			wantErr: "site.org",
		},
		{
			name:    "missing site name",
			mutate:  func(c *Config) { c.Site.Name = "" },
			wantErr: "site.name",
		},
		{
			name:    "missing ref",
			mutate:  func(c *Config) { c.Site.Ref = "" },
			wantErr: "site.ref",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Pipeline.Concurrency = 0 },
			wantErr: "pipeline.concurrency",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Delivery.BatchSize = 0 },
			wantErr: "delivery.batch_size",
		},
		{
			name:    "missing failure file",
			mutate:  func(c *Config) { c.Delivery.FailureFile = "" },
			wantErr: "delivery.failure_file",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Config{
				Site:     SiteConfig{Org: "acme", Name: "website", Ref: "main"},
				Admin:    AdminConfig{URL: "https://admin.hlx.page", TimeoutSeconds: 30, PollIntervalSeconds: 2},
				Pipeline: PipelineConfig{Concurrency: 3},
				Delivery: DeliveryConfig{BatchSize: 10, FailureFile: "failures.json"},
			}
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}
