// Package report renders computed layouts as terminal tables.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"calgrid/internal/layout"
	"calgrid/internal/plan"
)

// Row is one laid out event.
type Row struct {
	Day       int
	ID        string
	Summary   string
	StartHour float64
	EndHour   float64
	Layout    layout.EventLayout
	Highlight bool
}

// Options controls table rendering.
type Options struct {
	NoColor bool
	Title   string
}

// FromPlan flattens the timed events of every day of p.
func FromPlan(p plan.Plan) []Row {
	var rows []Row
	for _, d := range p.Days {
		for _, ev := range d.Events {
			rows = append(rows, Row{
				Day:       d.Index,
				ID:        ev.ID,
				Summary:   ev.Occurrence.Summary,
				StartHour: ev.StartHour,
				EndHour:   ev.EndHour,
				Layout:    ev.Layout,
				Highlight: ev.Highlight,
			})
		}
	}
	return rows
}

// FromLayouts pairs raw engine input with its result. Events without a
// layout (all-day ones) are skipped. Rows are ordered by day, start and id.
func FromLayouts(events []layout.Event, layouts map[string]layout.EventLayout) []Row {
	rows := make([]Row, 0, len(events))
	for _, ev := range events {
		l, ok := layouts[ev.ID]
		if !ok || ev.AllDay {
			continue
		}
		rows = append(rows, Row{Day: ev.Day, ID: ev.ID, StartHour: ev.StartHour, EndHour: ev.EndHour, Layout: l})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		if rows[i].StartHour != rows[j].StartHour {
			return rows[i].StartHour < rows[j].StartHour
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

// Write renders rows as a table. Primary events are printed in bold, nested
// ones are indented by level and highlighted events are red.
func Write(w io.Writer, rows []Row, opts Options) error {
	primary := color.New(color.Bold)
	red := color.New(color.FgRed)
	if opts.NoColor {
		primary.DisableColor()
		red.DisableColor()
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	if opts.Title != "" {
		tbl.SetTitle(opts.Title)
	}
	tbl.AppendHeader(table.Row{"Day", "Event", "Time", "Left", "Width", "Z", "Indent", "Importance", "Parent"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})

	for _, r := range rows {
		name := r.ID
		if r.Summary != "" {
			name = r.Summary
		}
		for i := 0; i < r.Layout.Level; i++ {
			name = "  " + name
		}
		switch {
		case r.Highlight:
			name = red.Sprint(name)
		case r.Layout.IsPrimary:
			name = primary.Sprint(name)
		}
		tbl.AppendRow(table.Row{
			r.Day,
			name,
			ClockRange(r.StartHour, r.EndHour),
			fmt.Sprintf("%.2f%%", r.Layout.Left),
			fmt.Sprintf("%.2f%%", r.Layout.Width),
			r.Layout.ZIndex,
			fmt.Sprintf("%.1fpx", r.Layout.IndentOffset),
			fmt.Sprintf("%.2f", r.Layout.Importance),
			r.Layout.ParentID,
		})
	}
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d events", len(rows))})
	tbl.Render()
	return nil
}

// Summary is a one line description of the engine counters.
func Summary(s layout.Stats) string {
	return fmt.Sprintf("%d events, %d days, %d overlap groups, %d parallel groups, %d roots, %d rebalance transfers",
		s.Events, s.Days, s.Groups, s.ParallelGroups, s.Roots, s.Transfers)
}

// Clock formats fractional hours as HH:MM. 24 stays 24:00.
func Clock(hour float64) string {
	mins := int(math.Round(hour * 60))
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// ClockRange formats a start/end pair.
func ClockRange(start, end float64) string {
	return Clock(start) + "-" + Clock(end)
}
