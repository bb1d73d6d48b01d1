package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"calgrid/internal/config"
	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/plan"
	"calgrid/internal/report"
)

const dateLayout = "2006-01-02"

func icsCmd(gf *globalFlags) *cobra.Command {
	var (
		from string
		days int
		view string
	)

	cmd := &cobra.Command{
		Use:   "ics <file.ics>",
		Short: "Expand a local ICS file and print the planned layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptionalConfig(gf.configPath)
			if err != nil {
				return err
			}
			applyLogConfig(cfg, gf)

			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			appLog.Debug("read ics file", "path", args[0], "size", humanize.Bytes(uint64(len(body))))

			loc := cfg.Location()
			start, err := rangeStart(from, cfg, loc, time.Now())
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.HorizonDays
			}

			p, occ, err := planFile(body, sourceID(args[0]), cfg, start, days, view)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d occurrences from %s for %d days (%s)\n",
				len(occ), p.Start.Format(dateLayout), len(p.Days), loc)
			for _, e := range p.AllDay {
				fmt.Fprintf(out, "all-day row %d: %s (day %d-%d)\n", e.Row, e.Occurrence.Summary, e.StartDay, e.EndDay-1)
			}
			if err := report.Write(out, report.FromPlan(p), report.Options{NoColor: gf.noColor}); err != nil {
				return err
			}
			fmt.Fprintln(out, report.Summary(p.Stats))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD); default is the start of the current week")
	cmd.Flags().IntVar(&days, "days", 0, "Number of days to plan (default horizon_days from config)")
	cmd.Flags().StringVar(&view, "view", "", "View type: week or day (default from config)")

	return cmd
}

// rangeStart resolves --from, or the configured week start around now.
func rangeStart(from string, cfg *config.Config, loc *time.Location, now time.Time) (time.Time, error) {
	if from == "" {
		return plan.StartOfWeek(now, loc, cfg.WeekStart), nil
	}
	t, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --from %q: %w", from, err)
	}
	return t, nil
}

// planFile parses, expands and plans one ICS body.
func planFile(body []byte, id string, cfg *config.Config, start time.Time, days int, view string) (plan.Plan, []model.Occurrence, error) {
	parsed, err := ics.ParseICS(ics.Source{ID: id}, body)
	if err != nil {
		return plan.Plan{}, nil, err
	}

	loc := cfg.Location()
	res, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        start.AddDate(0, 0, days),
	})
	if err != nil {
		return plan.Plan{}, nil, err
	}
	for _, uid := range res.TruncatedEvents {
		appLog.Warn("recurrence truncated", "uid", uid)
	}

	lc := cfg.LayoutConfig()
	if view != "" {
		lc.View = layout.ParseView(view)
	}
	p := plan.Build(res.Occurrences, plan.Options{
		Start:     start,
		Days:      days,
		Location:  loc,
		Layout:    lc,
		Highlight: cfg.HighlightRed,
	})
	return p, res.Occurrences, nil
}

func sourceID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
