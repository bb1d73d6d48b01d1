package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/config"
	"calgrid/internal/layout"
)

const sampleYAML = `
listen: "0.0.0.0:9090"
timezone: "Europe/Berlin"
week_start: sunday
horizon_days: 14
fetch:
  timeout: 5s
  max_body_size: "2 MiB"
layout:
  view: day
  parallel_threshold: 0.25
ics:
  - id: work
    url: https://example.com/work.ics
    name: Work
basic_auth:
  username: admin
  password: secret
`

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListen, cfg.Listen)
	assert.Equal(t, config.DefaultFetchTimeout, cfg.Fetch.Timeout)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Listen)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, 14, cfg.HorizonDays)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "work", cfg.ICS[0].ID)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)

	size, err := cfg.MaxBodyBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), size)

	lc := cfg.LayoutConfig()
	assert.Equal(t, layout.ViewDay, lc.View)
	assert.InDelta(t, 0.25, lc.ParallelThreshold, 1e-9)
	assert.InDelta(t, layout.DefaultNestedThreshold, lc.NestedThreshold, 1e-9)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	t.Setenv("CALGRID_LISTEN", "127.0.0.1:7000")
	t.Setenv("CALGRID_LAYOUT_VIEW", "week")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Listen)
	assert.Equal(t, "week", cfg.Layout.View)
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0o600))

	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrInvalidTimezone)

	_, err = config.Load("")
	require.ErrorIs(t, err, config.ErrEmptyPath)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"defaults", func(*config.Config) {}, nil},
		{"horizon", func(c *config.Config) { c.HorizonDays = 400 }, config.ErrInvalidHorizon},
		{"backfill", func(c *config.Config) { c.BackfillDays = -1 }, config.ErrInvalidBackfill},
		{"body size", func(c *config.Config) { c.Fetch.MaxBodySize = "lots" }, config.ErrInvalidBodySize},
		{"thresholds", func(c *config.Config) {
			c.Layout.ParallelThreshold = 1
			c.Layout.NestedThreshold = 0.5
		}, config.ErrInvalidThresholds},
		{"missing url", func(c *config.Config) {
			c.ICS = []config.ICSConfig{{ID: "a"}}
		}, config.ErrMissingSourceURL},
		{"duplicate source", func(c *config.Config) {
			c.ICS = []config.ICSConfig{{ID: "a", URL: "u"}, {ID: "a", URL: "v"}}
		}, config.ErrDuplicateSource},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.DefaultConfig()
	cfg.HorizonDays = 3
	cfg.ICS = []config.ICSConfig{{ID: "home", URL: "https://example.com/home.ics"}}
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.HorizonDays)
	assert.Equal(t, cfg.ICS, loaded.ICS)
	assert.Equal(t, cfg.Fetch.Timeout, loaded.Fetch.Timeout)

	require.ErrorIs(t, config.Save(path, nil), config.ErrNilConfig)
}

func TestNormalize_UnknownWeekStart(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{WeekStart: "friday"}
	cfg.Normalize()
	assert.Equal(t, config.DefaultWeekStart, cfg.WeekStart)
	assert.Equal(t, config.DefaultRefreshCron, cfg.RefreshCron)
	assert.NotNil(t, cfg.ICS)
}
