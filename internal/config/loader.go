package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envPrefix is the environment variable prefix, e.g. CALGRID_LISTEN or
// CALGRID_LAYOUT_VIEW.
const envPrefix = "CALGRID"

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and then read back.
//   - Values are layered as defaults < file < CALGRID_* environment.
//   - The result is normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		// First run: create default config file.
		if err := Save(path, DefaultConfig()); err != nil {
			return DefaultConfig(), fmt.Errorf("config: create default: %w", err)
		}
	}

	v := viper.New()
	applyDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("listen", d.Listen)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("week_start", d.WeekStart)
	v.SetDefault("refresh", d.RefreshCron)
	v.SetDefault("horizon_days", d.HorizonDays)
	v.SetDefault("backfill_days", d.BackfillDays)
	v.SetDefault("show_all_day", d.ShowAllDay)
	v.SetDefault("highlight_red", d.HighlightRed)
	v.SetDefault("cache_dir", d.CacheDir)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.max_body_size", d.Fetch.MaxBodySize)

	v.SetDefault("layout.parallel_threshold", d.Layout.ParallelThreshold)
	v.SetDefault("layout.nested_threshold", d.Layout.NestedThreshold)
	v.SetDefault("layout.edge_margin_percent", d.Layout.EdgeMarginPercent)
	v.SetDefault("layout.margin_between", d.Layout.MarginBetween)
	v.SetDefault("layout.min_width", d.Layout.MinWidth)
	v.SetDefault("layout.view", d.Layout.View)
	v.SetDefault("layout.container_width_px", d.Layout.ContainerWidthPx)
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return ErrNilConfig
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
