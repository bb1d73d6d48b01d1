package layout_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/layout"
)

const (
	epsilon        = 1e-6
	fullWidth      = 100 - layout.DefaultEdgeMarginPercent
	halfWidth      = (fullWidth - layout.DefaultMarginBetween) / 2
	weekChildLeft  = 2.5 + 1.5
	dayChildLeft   = 0.5 + 0.5
	defaultPxWidth = layout.DefaultContainerWidthPx
)

func ev(id string, start, end float64) layout.Event {
	return layout.Event{ID: id, StartHour: start, EndHour: end}
}

func TestCompute_Empty(t *testing.T) {
	t.Parallel()

	res := layout.Compute(nil, layout.DefaultConfig())
	assert.Empty(t, res.Layouts)

	res = layout.Compute([]layout.Event{
		{ID: "holiday", AllDay: true},
		{ID: "trip", Day: 1, AllDay: true},
	}, layout.DefaultConfig())
	assert.Empty(t, res.Layouts)
	assert.Zero(t, res.Stats.Events)
}

func TestCompute_SingleEvent(t *testing.T) {
	t.Parallel()

	got := layout.Layouts([]layout.Event{ev("a", 9, 10)}, layout.DefaultConfig())
	require.Len(t, got, 1)

	a := got["a"]
	assert.InDelta(t, 0, a.Left, epsilon)
	assert.InDelta(t, fullWidth, a.Width, epsilon)
	assert.Equal(t, 0, a.ZIndex)
	assert.True(t, a.IsPrimary)
	assert.InDelta(t, 0.25, a.Importance, epsilon)
	assert.Empty(t, a.ParentID)
}

func TestCompute_ParallelPair(t *testing.T) {
	t.Parallel()

	got := layout.Layouts([]layout.Event{ev("a", 9, 10), ev("b", 9, 10)}, layout.DefaultConfig())
	require.Len(t, got, 2)

	a, b := got["a"], got["b"]
	assert.True(t, a.IsPrimary)
	assert.True(t, b.IsPrimary)
	assert.InDelta(t, halfWidth, a.Width, epsilon)
	assert.InDelta(t, halfWidth, b.Width, epsilon)
	assert.InDelta(t, 0, a.Left, epsilon)
	assert.InDelta(t, halfWidth+layout.DefaultMarginBetween, b.Left, epsilon)
}

func TestCompute_StrictContainment(t *testing.T) {
	t.Parallel()

	events := []layout.Event{ev("a", 9, 12), ev("b", 10, 10.5)}

	got := layout.Layouts(events, layout.DefaultConfig())
	a, b := got["a"], got["b"]

	assert.Equal(t, 0, a.ZIndex)
	assert.Equal(t, 1, b.ZIndex)
	assert.Equal(t, 1, b.Level)
	assert.False(t, b.IsPrimary)
	assert.Equal(t, "a", b.ParentID)
	assert.InDelta(t, weekChildLeft, b.Left, epsilon)
	assert.InDelta(t, fullWidth-weekChildLeft, b.Width, epsilon)
	assert.Less(t, b.Width, a.Width)
	assert.InDelta(t, 2.5/100*defaultPxWidth, b.IndentOffset, epsilon)
	assert.InDelta(t, 0.125, b.Importance, epsilon)
}

func TestCompute_DayViewIndent(t *testing.T) {
	t.Parallel()

	cfg := layout.DefaultConfig()
	cfg.View = layout.ViewDay
	cfg.ContainerWidthPx = 800

	b := layout.Layouts([]layout.Event{ev("a", 9, 12), ev("b", 10, 10.5)}, cfg)["b"]
	assert.InDelta(t, dayChildLeft, b.Left, epsilon)
	assert.InDelta(t, 0.5/100*800, b.IndentOffset, epsilon)
}

func TestCompute_DaysAreIndependent(t *testing.T) {
	t.Parallel()

	events := []layout.Event{
		{ID: "mon", Day: 0, StartHour: 9, EndHour: 11},
		{ID: "tue", Day: 1, StartHour: 9, EndHour: 11},
	}

	res := layout.Compute(events, layout.DefaultConfig())
	assert.Equal(t, 2, res.Stats.Days)
	for _, id := range []string{"mon", "tue"} {
		assert.InDelta(t, fullWidth, res.Layouts[id].Width, epsilon, id)
		assert.True(t, res.Layouts[id].IsPrimary, id)
	}
}

func TestCompute_TouchingEventsDoNotOverlap(t *testing.T) {
	t.Parallel()

	res := layout.Compute([]layout.Event{ev("a", 9, 10), ev("b", 10, 11)}, layout.DefaultConfig())
	assert.Equal(t, 2, res.Stats.Groups)
	assert.InDelta(t, fullWidth, res.Layouts["a"].Width, epsilon)
	assert.InDelta(t, fullWidth, res.Layouts["b"].Width, epsilon)
}

func TestCompute_SequentialChildrenShareBand(t *testing.T) {
	t.Parallel()

	got := layout.Layouts([]layout.Event{
		ev("day", 8, 18),
		ev("standup", 9, 10),
		ev("lunch", 12, 13),
	}, layout.DefaultConfig())

	standup, lunch := got["standup"], got["lunch"]
	assert.Equal(t, "day", standup.ParentID)
	assert.Equal(t, "day", lunch.ParentID)
	assert.InDelta(t, standup.Left, lunch.Left, epsilon)
	assert.InDelta(t, standup.Width, lunch.Width, epsilon)
}

func TestCompute_CloseStartVetoesNesting(t *testing.T) {
	t.Parallel()

	// p2 starts half an hour before c and overlaps it, so the whole parent
	// group is rejected and c becomes a third root.
	res := layout.Compute([]layout.Event{
		ev("p1", 9, 12),
		ev("p2", 9.5, 12),
		ev("c", 10, 11),
	}, layout.DefaultConfig())

	assert.Equal(t, 3, res.Stats.Roots)
	c := res.Layouts["c"]
	assert.Empty(t, c.ParentID)
	assert.True(t, c.IsPrimary)
}

func TestCompute_RebalancesLopsidedBranches(t *testing.T) {
	t.Parallel()

	events := []layout.Event{
		ev("a", 8, 18),
		ev("b", 8, 18),
		ev("c1", 9, 17),
		ev("c2", 10, 16),
		ev("c3", 11, 15),
		ev("c4", 12, 14),
		ev("c5", 13, 13.5),
	}

	res := layout.Compute(events, layout.DefaultConfig())
	require.Len(t, res.Layouts, len(events))
	assert.Positive(t, res.Stats.Transfers)
	assert.LessOrEqual(t, res.Stats.Transfers, layout.DefaultMaxRebalanceIterations)

	under := func(root string) int {
		n := 0
		for id := range res.Layouts {
			for p := res.Layouts[id].ParentID; p != ""; p = res.Layouts[p].ParentID {
				if p == root {
					n++
					break
				}
			}
		}
		return n
	}
	diff := under("a") - under("b")
	if diff < 0 {
		diff = -diff
	}
	assert.Less(t, diff, 2)
	assert.Equal(t, "b", res.Layouts["c5"].ParentID)

	// Moved leaves keep the indent of the branch they were moved to.
	assert.InDelta(t, 0, res.Layouts["c5"].IndentOffset, epsilon)
}

func TestCompute_ImportanceBounds(t *testing.T) {
	t.Parallel()

	got := layout.Layouts([]layout.Event{
		{ID: "short", Day: 0, StartHour: 9, EndHour: 9 + 10.0/60},
		{ID: "zero", Day: 1, StartHour: 9, EndHour: 9},
		{ID: "long", Day: 2, StartHour: 8, EndHour: 16},
		{ID: "inverted", Day: 3, StartHour: 10, EndHour: 9},
	}, layout.DefaultConfig())

	require.Len(t, got, 4)
	assert.InDelta(t, 0.1, got["short"].Importance, epsilon)
	assert.InDelta(t, 0.1, got["zero"].Importance, epsilon)
	assert.InDelta(t, 1.0, got["long"].Importance, epsilon)
	assert.InDelta(t, 0.1, got["inverted"].Importance, epsilon)
}

func TestCompute_ZeroDurationInsideEvent(t *testing.T) {
	t.Parallel()

	got := layout.Layouts([]layout.Event{ev("a", 9, 11), ev("ping", 10, 10)}, layout.DefaultConfig())
	assert.Equal(t, "a", got["ping"].ParentID)
}

func TestCompute_Idempotent(t *testing.T) {
	t.Parallel()

	events := randomDay(rand.New(rand.NewSource(7)), 30)
	first := layout.Compute(events, layout.DefaultConfig())
	second := layout.Compute(events, layout.DefaultConfig())
	assert.Equal(t, first, second)
}

func TestCompute_CoverageAndContainment(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for _, view := range []layout.ViewType{layout.ViewWeek, layout.ViewDay} {
		cfg := layout.DefaultConfig()
		cfg.View = view

		for round := 0; round < 25; round++ {
			events := randomDay(rng, 5+rng.Intn(40))
			got := layout.Layouts(events, cfg)
			require.Len(t, got, len(events))

			for id, l := range got {
				assert.GreaterOrEqual(t, l.Left, 0.0, id)
				assert.GreaterOrEqual(t, l.Width, 0.0, id)
				assert.LessOrEqual(t, l.Left+l.Width, 100+epsilon, id)
				assert.Equal(t, l.ZIndex == 0, l.IsPrimary, id)
				assert.GreaterOrEqual(t, l.Importance, 0.1, id)
				assert.LessOrEqual(t, l.Importance, 1.0, id)
				if l.ParentID != "" {
					assert.Equal(t, got[l.ParentID].Level+1, l.Level, id)
				}
			}
		}
	}
}

func TestLayoutFor(t *testing.T) {
	t.Parallel()

	events := []layout.Event{ev("a", 9, 12), ev("dragged", 10, 10.5)}

	l, ok := layout.LayoutFor(events, "dragged", layout.DefaultConfig())
	require.True(t, ok)
	assert.Equal(t, "a", l.ParentID)

	_, ok = layout.LayoutFor(events, "missing", layout.DefaultConfig())
	assert.False(t, ok)
}

func TestConfig_Normalize(t *testing.T) {
	t.Parallel()

	zero := layout.Config{}.Normalize()
	assert.InDelta(t, layout.DefaultParallelThreshold, zero.ParallelThreshold, epsilon)
	assert.InDelta(t, layout.DefaultNestedThreshold, zero.NestedThreshold, epsilon)
	assert.Equal(t, layout.DefaultMaxRebalanceIterations, zero.MaxRebalanceIterations)
	assert.InDelta(t, layout.DefaultContainerWidthPx, zero.ContainerWidthPx, epsilon)
	assert.Equal(t, layout.ViewWeek, zero.View)
	assert.Zero(t, zero.MarginBetween)

	assert.Equal(t, layout.DefaultConfig(), layout.DefaultConfig().Normalize())

	cfg := layout.Config{ParallelThreshold: 1, NestedThreshold: 0.5, View: "month"}.Normalize()
	assert.Greater(t, cfg.NestedThreshold, cfg.ParallelThreshold)
	assert.Equal(t, layout.ViewWeek, cfg.View)

	assert.Equal(t, layout.ViewDay, layout.ParseView("day"))
	assert.Equal(t, layout.ViewWeek, layout.ParseView(""))
}

// randomDay builds n timed events in quarter-hour steps on two day buckets.
func randomDay(rng *rand.Rand, n int) []layout.Event {
	events := make([]layout.Event, 0, n)
	for i := 0; i < n; i++ {
		start := float64(rng.Intn(14*4))/4 + 7
		dur := float64(1+rng.Intn(12)) / 4
		events = append(events, layout.Event{
			ID:        string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Day:       rng.Intn(2),
			StartHour: start,
			EndHour:   start + dur,
		})
	}
	return events
}
