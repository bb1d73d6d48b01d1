package layout

import "math"

// ViewType selects the indent and gutter constants used by the geometry pass.
type ViewType string

const (
	ViewWeek ViewType = "week"
	ViewDay  ViewType = "day"
)

// Default layout parameters. Hours are fractional hours of the day.
const (
	DefaultParallelThreshold      = 0.5
	DefaultNestedThreshold        = 1.0
	DefaultEdgeMarginPercent      = 3.0
	DefaultMarginBetween          = 2.0
	DefaultMinWidth               = 25.0
	DefaultExtendedEventHours     = 1.25
	DefaultExtendedOverlapRatio   = 0.4
	DefaultMaxRebalanceIterations = 5
	DefaultImportanceHours        = 4.0
	DefaultContainerWidthPx       = 320.0
	DefaultView                   = ViewWeek
)

const (
	minImportance = 0.1
	maxImportance = 1.0

	// thresholdEpsilon absorbs float noise from minute-derived hours (e.g. 10/60).
	thresholdEpsilon = 1e-9

	// rebalanceMinSpread is the load difference at which branches are rebalanced.
	rebalanceMinSpread = 2
)

// Config carries every tunable used by the layout pipeline. Normalize fills
// unset thresholds with the defaults above; margins may legitimately be zero.
type Config struct {
	// ParallelThreshold is the start-hour tolerance within which two events are
	// considered to start "together".
	ParallelThreshold float64

	// NestedThreshold is the minimum start-hour gap for a parent/child relation.
	// Must be larger than ParallelThreshold.
	NestedThreshold float64

	// EdgeMarginPercent is kept free at the right edge of the day column.
	EdgeMarginPercent float64

	// MarginBetween is the gutter between side-by-side boxes, in percent.
	MarginBetween float64

	// MinWidth is the narrowest box an indent may produce, in percent.
	MinWidth float64

	// ExtendedEventHours and ExtendedOverlapRatio define "extended" events: an
	// event at least this long is parallel to anything starting after the given
	// fraction of its span while still overlapping it.
	ExtendedEventHours   float64
	ExtendedOverlapRatio float64

	// MaxRebalanceIterations caps leaf transfers per rebalanced depth level.
	MaxRebalanceIterations int

	// ImportanceHours is the duration that maps to importance 1.0.
	ImportanceHours float64

	View             ViewType
	ContainerWidthPx float64
}

// DefaultConfig returns the documented defaults for a week view.
func DefaultConfig() Config {
	return Config{
		ParallelThreshold:      DefaultParallelThreshold,
		NestedThreshold:        DefaultNestedThreshold,
		EdgeMarginPercent:      DefaultEdgeMarginPercent,
		MarginBetween:          DefaultMarginBetween,
		MinWidth:               DefaultMinWidth,
		ExtendedEventHours:     DefaultExtendedEventHours,
		ExtendedOverlapRatio:   DefaultExtendedOverlapRatio,
		MaxRebalanceIterations: DefaultMaxRebalanceIterations,
		ImportanceHours:        DefaultImportanceHours,
		View:                   DefaultView,
		ContainerWidthPx:       DefaultContainerWidthPx,
	}
}

// Normalize returns a copy with unset or out-of-range values replaced by
// defaults, so the engine stays total for any Config.
func (c Config) Normalize() Config {
	if !positive(c.ParallelThreshold) {
		c.ParallelThreshold = DefaultParallelThreshold
	}
	if !positive(c.NestedThreshold) || c.NestedThreshold <= c.ParallelThreshold {
		c.NestedThreshold = math.Max(DefaultNestedThreshold, c.ParallelThreshold*2)
	}
	if !nonNegative(c.EdgeMarginPercent) || c.EdgeMarginPercent >= 100 {
		c.EdgeMarginPercent = DefaultEdgeMarginPercent
	}
	if !nonNegative(c.MarginBetween) {
		c.MarginBetween = DefaultMarginBetween
	}
	if !nonNegative(c.MinWidth) || c.MinWidth > 100 {
		c.MinWidth = DefaultMinWidth
	}
	if !positive(c.ExtendedEventHours) {
		c.ExtendedEventHours = DefaultExtendedEventHours
	}
	if !positive(c.ExtendedOverlapRatio) || c.ExtendedOverlapRatio > 1 {
		c.ExtendedOverlapRatio = DefaultExtendedOverlapRatio
	}
	if c.MaxRebalanceIterations <= 0 {
		c.MaxRebalanceIterations = DefaultMaxRebalanceIterations
	}
	if !positive(c.ImportanceHours) {
		c.ImportanceHours = DefaultImportanceHours
	}
	if c.View != ViewDay {
		c.View = ViewWeek
	}
	if !positive(c.ContainerWidthPx) {
		c.ContainerWidthPx = DefaultContainerWidthPx
	}
	return c
}

// ParseView maps a user supplied view name; anything unknown is a week view.
func ParseView(s string) ViewType {
	if ViewType(s) == ViewDay {
		return ViewDay
	}
	return ViewWeek
}

// indentStep is the per-depth indent in percent of the column.
func (c Config) indentStep() float64 {
	if c.View == ViewDay {
		return 0.5
	}
	return 2.5
}

// leftAdjustment nudges nesting levels so compounded indents stay even.
//
//	depth   day    week
//	1       0.5    1.5
//	2      -0.01  -1.0
//	3+      0.55  -3.5
func (c Config) leftAdjustment(depth int) float64 {
	day := c.View == ViewDay
	switch {
	case depth <= 0:
		return 0
	case depth == 1:
		if day {
			return 0.5
		}
		return 1.5
	case depth == 2:
		if day {
			return -0.01
		}
		return -1.0
	default:
		if day {
			return 0.55
		}
		return -3.5
	}
}

// gutterScale shrinks MarginBetween at deeper levels and in the day view.
func (c Config) gutterScale(depth int) float64 {
	scale := 0.5
	switch {
	case depth <= 0:
		scale = 1.0
	case depth == 1:
		scale = 0.75
	}
	if c.View == ViewDay {
		scale /= 2
	}
	return scale
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
