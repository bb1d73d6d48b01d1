// Package refresh keeps the latest planned calendar in memory, rebuilding it
// from the ICS sources on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/metrics"
	"calgrid/internal/model"
	"calgrid/internal/plan"
)

// ErrAllSourcesFailed is returned when no configured source produced a body.
var ErrAllSourcesFailed = errors.New("refresh: all sources failed")

// Fetcher is the part of ics.Fetcher the refresher needs.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Options describes what is fetched and how it is planned.
type Options struct {
	Sources      []ics.Source
	Location     *time.Location
	WeekStart    string
	BackfillDays int
	HorizonDays  int
	Layout       layout.Config
	Highlight    []string

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Snapshot is an immutable result of one refresh run.
type Snapshot struct {
	UpdatedAt   time.Time          `json:"updated_at"`
	RangeStart  time.Time          `json:"range_start"`
	RangeEnd    time.Time          `json:"range_end"`
	Occurrences []model.Occurrence `json:"occurrences"`
	Plan        plan.Plan          `json:"plan"`
	Errors      []string           `json:"errors,omitempty"`
}

// Refresher runs fetch, parse, expand and plan, and publishes snapshots.
type Refresher struct {
	fetcher Fetcher
	opts    Options
	metrics *metrics.Metrics

	runMu sync.Mutex // serializes runs

	mu   sync.RWMutex
	snap *Snapshot

	cron *cron.Cron
}

// New builds a Refresher. m may be nil.
func New(f Fetcher, opts Options, m *metrics.Metrics) *Refresher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 7
	}
	if opts.BackfillDays < 0 {
		opts.BackfillDays = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Refresher{fetcher: f, opts: opts, metrics: m}
}

// Snapshot returns the latest snapshot, if any run has completed.
func (r *Refresher) Snapshot() (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap, r.snap != nil
}

// Window returns the range a run at now would plan: from the start of the
// current week minus BackfillDays to HorizonDays after today.
func (r *Refresher) Window(now time.Time) (time.Time, int) {
	start := plan.StartOfWeek(now, r.opts.Location, r.opts.WeekStart).AddDate(0, 0, -r.opts.BackfillDays)
	today := plan.NewResolver(r.opts.Location, start).Day(now)
	return start, today + r.opts.HorizonDays
}

// RunOnce runs the pipeline synchronously and publishes the result. Per
// source failures are logged and recorded in the snapshot; only a run in
// which every source failed returns an error, and then the previous
// snapshot is kept.
func (r *Refresher) RunOnce(ctx context.Context) (*Snapshot, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	now := r.opts.Now()
	start, days := r.Window(now)
	end := start.AddDate(0, 0, days)

	results, fetchErrs := r.fetcher.FetchAll(ctx, r.opts.Sources)
	snap := &Snapshot{
		UpdatedAt:  now,
		RangeStart: start,
		RangeEnd:   end,
	}
	for _, err := range fetchErrs {
		snap.Errors = append(snap.Errors, err.Error())
	}

	if len(r.opts.Sources) > 0 && len(results) == 0 {
		r.metrics.ObserveRefresh(metrics.RefreshFailed)
		return nil, fmt.Errorf("%w: %d errors", ErrAllSourcesFailed, len(fetchErrs))
	}

	var parsed []ics.ParsedEvent
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %v", res.Source.ID, err))
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: r.opts.Location,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		r.metrics.ObserveRefresh(metrics.RefreshFailed)
		return nil, fmt.Errorf("refresh: expand: %w", err)
	}
	snap.Occurrences = expanded.Occurrences

	began := time.Now()
	snap.Plan = plan.Build(expanded.Occurrences, plan.Options{
		Start:     start,
		Days:      days,
		Location:  r.opts.Location,
		Layout:    r.opts.Layout,
		Highlight: r.opts.Highlight,
	})
	r.metrics.ObserveLayout(snap.Plan.Stats, time.Since(began))

	status := metrics.RefreshOK
	if len(snap.Errors) > 0 {
		status = metrics.RefreshPartial
	}
	r.metrics.ObserveRefresh(status)

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	appLog.Info("refresh completed",
		"status", status,
		"sources", len(r.opts.Sources),
		"occurrences", len(snap.Occurrences),
		"days", days,
		"transfers", snap.Plan.Stats.Transfers,
		"errors", len(snap.Errors),
	)
	return snap, nil
}

// Start schedules RunOnce on spec (standard 5-field cron) until ctx is done.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(r.opts.Location))
	_, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	c.Start()
	appLog.Info("refresh scheduled", "spec", spec)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
