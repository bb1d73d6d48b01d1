package web

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/plan"
	"calgrid/internal/refresh"
)

const maxPreviewBody = 1 << 20

//go:embed schema/preview.json
var previewSchemaJSON []byte

var previewSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(previewSchemaJSON))
})

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Occurrences     []model.Occurrence `json:"occurrences"`
	RangeStart      time.Time          `json:"range_start"`
	RangeEnd        time.Time          `json:"range_end"`
	UpdatedAt       time.Time          `json:"updated_at"`
	DisplayTimeZone string             `json:"display_timezone"`
	WeekStart       string             `json:"week_start"`
	Errors          []string           `json:"errors,omitempty"`
}

// handleEvents returns the expanded occurrences of the latest refresh.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	occ := snap.Occurrences
	if occ == nil {
		occ = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Occurrences:     occ,
		RangeStart:      snap.RangeStart,
		RangeEnd:        snap.RangeEnd,
		UpdatedAt:       snap.UpdatedAt,
		DisplayTimeZone: s.cfg.Location().String(),
		WeekStart:       s.cfg.WeekStart,
		Errors:          snap.Errors,
	})
}

// layoutResponse is the JSON response shape for /api/layout.
type layoutResponse struct {
	View       layout.ViewType    `json:"view"`
	Start      time.Time          `json:"start"`
	Days       []plan.DayPlan     `json:"days"`
	AllDay     []plan.AllDayEvent `json:"allDay"`
	AllDayRows int                `json:"allDayRows"`
	Stats      layout.Stats       `json:"stats"`
}

// handleLayout returns the planned days.
//
// GET /api/layout?view=week|day&day=N
//   - view: week (default) lays out every day; day uses the day view indent
//     and returns only one day
//   - day:  day index for the day view (default: today, else 0)
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	view := layout.ParseView(q.Get("view"))
	p := s.planFor(snap, view)

	resp := layoutResponse{
		View:       view,
		Start:      p.Start,
		Days:       p.Days,
		AllDay:     p.AllDay,
		AllDayRows: p.AllDayRows,
		Stats:      p.Stats,
	}

	if view == layout.ViewDay {
		today := plan.NewResolver(s.cfg.Location(), p.Start).Day(time.Now())
		if today < 0 || today >= len(p.Days) {
			today = 0
		}
		idx := parseIntDefault(q.Get("day"), today)
		if idx < 0 || idx >= len(p.Days) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("day must be between 0 and %d", len(p.Days)-1))
			return
		}
		resp.Days = p.Days[idx : idx+1]
		resp.AllDay = allDayOn(p.AllDay, idx)
	}

	writeJSON(w, http.StatusOK, resp)
}

// planFor reuses the snapshot plan when the view matches the configured one
// and lays the snapshot out again otherwise.
func (s *Server) planFor(snap *refresh.Snapshot, view layout.ViewType) plan.Plan {
	lc := s.cfg.LayoutConfig()
	if lc.View == view {
		return snap.Plan
	}
	lc.View = view
	return plan.Build(snap.Occurrences, plan.Options{
		Start:     snap.Plan.Start,
		Days:      len(snap.Plan.Days),
		Location:  s.cfg.Location(),
		Layout:    lc,
		Highlight: s.cfg.HighlightRed,
	})
}

func allDayOn(events []plan.AllDayEvent, day int) []plan.AllDayEvent {
	var out []plan.AllDayEvent
	for _, e := range events {
		if e.StartDay <= day && day < e.EndDay {
			out = append(out, e)
		}
	}
	return out
}

// previewEvent mirrors schema/preview.json.
type previewEvent struct {
	ID     string  `json:"id"`
	Day    int     `json:"day"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	AllDay bool    `json:"allDay"`
}

type previewRequest struct {
	Events         []previewEvent `json:"events"`
	Target         string         `json:"target"`
	View           string         `json:"view"`
	ContainerWidth float64        `json:"containerWidth"`
}

// handlePreview computes a hypothetical layout for one event, typically
// while it is being dragged. Nothing is stored.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPreviewBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxPreviewBody {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	schema, err := previewSchema()
	if err != nil {
		appLog.Error("preview schema invalid", err)
		writeError(w, http.StatusInternalServerError, "schema unavailable")
		return
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		writeError(w, http.StatusBadRequest, strings.Join(msgs, "; "))
		return
	}

	var req previewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.cfg.LayoutConfig()
	if req.View != "" {
		cfg.View = layout.ParseView(req.View)
	}
	if req.ContainerWidth > 0 {
		cfg.ContainerWidthPx = req.ContainerWidth
	}

	events := make([]layout.Event, len(req.Events))
	for i, e := range req.Events {
		events[i] = layout.Event{ID: e.ID, Day: e.Day, StartHour: e.Start, EndHour: e.End, AllDay: e.AllDay}
	}

	l, ok := layout.LayoutFor(events, req.Target, cfg)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no layout for %q", req.Target))
		return
	}
	writeJSON(w, http.StatusOK, l)
}
