package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"calgrid/internal/layout"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url" mapstructure:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id" mapstructure:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name" mapstructure:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" mapstructure:"username"`
	Password string `yaml:"password" json:"password" mapstructure:"password"`
}

// LogConfig controls the process-wide logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" mapstructure:"level"`
	Format string `yaml:"format" json:"format" mapstructure:"format"`
}

// FetchConfig bounds ICS downloads.
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	// MaxBodySize is a human readable size such as "10 MiB".
	MaxBodySize string `yaml:"max_body_size" json:"max_body_size" mapstructure:"max_body_size"`
}

// LayoutSection is the user-tunable subset of layout.Config.
type LayoutSection struct {
	ParallelThreshold float64 `yaml:"parallel_threshold" json:"parallel_threshold" mapstructure:"parallel_threshold"`
	NestedThreshold   float64 `yaml:"nested_threshold" json:"nested_threshold" mapstructure:"nested_threshold"`
	EdgeMarginPercent float64 `yaml:"edge_margin_percent" json:"edge_margin_percent" mapstructure:"edge_margin_percent"`
	MarginBetween     float64 `yaml:"margin_between" json:"margin_between" mapstructure:"margin_between"`
	MinWidth          float64 `yaml:"min_width" json:"min_width" mapstructure:"min_width"`
	View              string  `yaml:"view" json:"view" mapstructure:"view"`
	ContainerWidthPx  float64 `yaml:"container_width_px" json:"container_width_px" mapstructure:"container_width_px"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen" mapstructure:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone" mapstructure:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in calendar views. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start" mapstructure:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh" mapstructure:"refresh"`

	// HorizonDays is the number of future days to display.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" mapstructure:"horizon_days"`

	// BackfillDays is the number of past days kept in the plan.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days" mapstructure:"backfill_days"`

	// ShowAllDay toggles the all-day section in the rendered view.
	ShowAllDay bool `yaml:"show_all_day" json:"show_all_day" mapstructure:"show_all_day"`

	// HighlightRed is a list of keywords that cause events to be rendered in red.
	HighlightRed []string `yaml:"highlight_red" json:"highlight_red" mapstructure:"highlight_red"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics" mapstructure:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" mapstructure:"basic_auth"`

	// CacheDir holds the conditional-GET cache of ICS bodies.
	CacheDir string `yaml:"cache_dir" json:"cache_dir" mapstructure:"cache_dir"`

	Log    LogConfig     `yaml:"log" json:"log" mapstructure:"log"`
	Fetch  FetchConfig   `yaml:"fetch" json:"fetch" mapstructure:"fetch"`
	Layout LayoutSection `yaml:"layout" json:"layout" mapstructure:"layout"`
}

// Defaults shared by DefaultConfig, Normalize and the viper loader.
const (
	DefaultListen       = "127.0.0.1:8080"
	DefaultTimezone     = "Asia/Seoul"
	DefaultWeekStart    = "monday"
	DefaultRefreshCron  = "*/15 * * * *"
	DefaultHorizonDays  = 7
	DefaultCacheDir     = "/var/cache/calgrid"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultFetchTimeout = 20 * time.Second
	DefaultMaxBodySize  = "10 MiB"
	maxHorizonDays      = 366
)

var defaultHighlights = []string{"휴일", "휴가", "중요"}

// Sentinel errors for configuration validation.
var (
	// ErrEmptyPath indicates Load or Save was called without a path.
	ErrEmptyPath = errors.New("config path is empty")
	// ErrNilConfig indicates Save was called with a nil config.
	ErrNilConfig = errors.New("config is nil")
	// ErrInvalidTimezone indicates timezone is not a known IANA zone.
	ErrInvalidTimezone = errors.New("timezone must be a valid IANA zone")
	// ErrInvalidHorizon indicates horizon_days is out of range.
	ErrInvalidHorizon = errors.New("horizon_days must be between 1 and 366")
	// ErrInvalidBackfill indicates backfill_days is negative.
	ErrInvalidBackfill = errors.New("backfill_days must be non-negative")
	// ErrInvalidBodySize indicates fetch.max_body_size cannot be parsed.
	ErrInvalidBodySize = errors.New("fetch.max_body_size must be a size like \"10 MiB\"")
	// ErrInvalidThresholds indicates nested_threshold is not above parallel_threshold.
	ErrInvalidThresholds = errors.New("layout.nested_threshold must be greater than layout.parallel_threshold")
	// ErrDuplicateSource indicates two ICS sources share an id.
	ErrDuplicateSource = errors.New("ics source ids must be unique")
	// ErrMissingSourceURL indicates an ICS source without a URL.
	ErrMissingSourceURL = errors.New("ics source url is required")
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       DefaultListen,
		Timezone:     DefaultTimezone,
		WeekStart:    DefaultWeekStart,
		RefreshCron:  DefaultRefreshCron,
		HorizonDays:  DefaultHorizonDays,
		ShowAllDay:   true,
		HighlightRed: append([]string(nil), defaultHighlights...),
		ICS:          []ICSConfig{},
		BasicAuth:    nil,
		CacheDir:     DefaultCacheDir,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Fetch: FetchConfig{
			Timeout:     DefaultFetchTimeout,
			MaxBodySize: DefaultMaxBodySize,
		},
		Layout: LayoutSection{
			ParallelThreshold: layout.DefaultParallelThreshold,
			NestedThreshold:   layout.DefaultNestedThreshold,
			EdgeMarginPercent: layout.DefaultEdgeMarginPercent,
			MarginBetween:     layout.DefaultMarginBetween,
			MinWidth:          layout.DefaultMinWidth,
			View:              string(layout.DefaultView),
			ContainerWidthPx:  layout.DefaultContainerWidthPx,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = DefaultWeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.HighlightRed == nil {
		c.HighlightRed = append([]string(nil), defaultHighlights...)
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Fetch.MaxBodySize == "" {
		c.Fetch.MaxBodySize = DefaultMaxBodySize
	}
	if c.Layout.View == "" {
		c.Layout.View = string(layout.DefaultView)
	}
}

// Validate reports the first invalid setting. It expects a normalized config.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	if c.HorizonDays < 1 || c.HorizonDays > maxHorizonDays {
		return ErrInvalidHorizon
	}
	if c.BackfillDays < 0 {
		return ErrInvalidBackfill
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		return err
	}
	l := c.Layout
	if l.ParallelThreshold > 0 && l.NestedThreshold > 0 && l.NestedThreshold <= l.ParallelThreshold {
		return ErrInvalidThresholds
	}

	seen := make(map[string]bool, len(c.ICS))
	for _, src := range c.ICS {
		if src.URL == "" {
			return fmt.Errorf("%w: %q", ErrMissingSourceURL, src.ID)
		}
		if seen[src.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateSource, src.ID)
		}
		seen[src.ID] = true
	}
	return nil
}

// MaxBodyBytes parses Fetch.MaxBodySize.
func (c *Config) MaxBodyBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Fetch.MaxBodySize)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBodySize, c.Fetch.MaxBodySize)
	}
	return int64(n), nil
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LayoutConfig converts the layout section into an engine config. Unset
// values take the engine defaults.
func (c *Config) LayoutConfig() layout.Config {
	cfg := layout.DefaultConfig()
	l := c.Layout
	if l.ParallelThreshold > 0 {
		cfg.ParallelThreshold = l.ParallelThreshold
	}
	if l.NestedThreshold > 0 {
		cfg.NestedThreshold = l.NestedThreshold
	}
	if l.EdgeMarginPercent > 0 {
		cfg.EdgeMarginPercent = l.EdgeMarginPercent
	}
	if l.MarginBetween > 0 {
		cfg.MarginBetween = l.MarginBetween
	}
	if l.MinWidth > 0 {
		cfg.MinWidth = l.MinWidth
	}
	if l.ContainerWidthPx > 0 {
		cfg.ContainerWidthPx = l.ContainerWidthPx
	}
	cfg.View = layout.ParseView(l.View)
	return cfg.Normalize()
}
