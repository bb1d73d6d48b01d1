package web

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/plan"
)

const (
	hourHeightPx   = 40
	allDayRowPx    = 18
	calendarLayout = "Mon 01/02"
)

//go:embed templates/calendar.html
var calendarHTML string

var calendarTmpl = template.Must(template.New("calendar").Funcs(template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.3f%%", v) },
}).Parse(calendarHTML))

type calendarPage struct {
	View         layout.ViewType
	HourHeight   int
	DayHeight    int
	Hours        []int
	ShowAllDay   bool
	AllDayHeight int
	AllDay       []allDayBar
	Days         []dayColumn
}

type dayColumn struct {
	Label string
	Boxes []eventBox
}

type eventBox struct {
	ID        string
	Summary   string
	Time      string
	Top       float64
	Height    float64
	Left      float64
	Width     float64
	Z         int
	Indent    float64
	Nested    bool
	Highlight bool
}

type allDayBar struct {
	Summary   string
	Left      float64
	Width     float64
	Top       int
	Highlight bool
}

// handleCalendar renders the planned range as a static HTML grid. The root
// element carries data-ready="true" so headless capture can wait for it.
//
// GET /calendar?view=week|day&day=N
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	view := layout.ParseView(q.Get("view"))
	p := s.planFor(snap, view)

	days := p.Days
	if view == layout.ViewDay && len(days) > 0 {
		idx := parseIntDefault(q.Get("day"), 0)
		if idx < 0 || idx >= len(days) {
			idx = 0
		}
		days = days[idx : idx+1]
	}

	page := buildCalendarPage(p, days, view, s.cfg.ShowAllDay)

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, page); err != nil {
		appLog.Error("calendar render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func buildCalendarPage(p plan.Plan, days []plan.DayPlan, view layout.ViewType, showAllDay bool) calendarPage {
	page := calendarPage{
		View:       view,
		HourHeight: hourHeightPx,
		DayHeight:  24 * hourHeightPx,
		ShowAllDay: showAllDay,
	}
	for h := 0; h < 24; h++ {
		page.Hours = append(page.Hours, h)
	}

	first, n := 0, len(days)
	if n > 0 {
		first = days[0].Index
	}
	if showAllDay && n > 0 {
		rows := 0
		for _, e := range p.AllDay {
			start, end := max(e.StartDay, first), min(e.EndDay, first+n)
			if start >= end {
				continue
			}
			rows = max(rows, e.Row+1)
			page.AllDay = append(page.AllDay, allDayBar{
				Summary:   e.Occurrence.Summary,
				Left:      float64(start-first) / float64(n) * 100,
				Width:     float64(end-start) / float64(n) * 100,
				Top:       e.Row * allDayRowPx,
				Highlight: e.Highlight,
			})
		}
		page.AllDayHeight = rows * allDayRowPx
	}

	for _, d := range days {
		col := dayColumn{Label: d.Date.Format(calendarLayout)}
		for _, ev := range d.Events {
			col.Boxes = append(col.Boxes, eventBox{
				ID:        ev.ID,
				Summary:   ev.Occurrence.Summary,
				Time:      fmt.Sprintf("%s-%s", ev.Occurrence.Start.Format("15:04"), ev.Occurrence.End.Format("15:04")),
				Top:       ev.StartHour / 24 * 100,
				Height:    (ev.EndHour - ev.StartHour) / 24 * 100,
				Left:      ev.Layout.Left,
				Width:     ev.Layout.Width,
				Z:         ev.Layout.ZIndex,
				Indent:    ev.Layout.IndentOffset,
				Nested:    !ev.Layout.IsPrimary,
				Highlight: ev.Highlight,
			})
		}
		page.Days = append(page.Days, col)
	}
	return page
}
