package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/report"
)

var (
	errNoEvents   = errors.New("layout: input has no events")
	errBadHour    = errors.New("layout: hour must be a number or HH:MM")
	errMissingID  = errors.New("layout: event without id")
	errDuplicated = errors.New("layout: duplicate event id")
)

// hourValue accepts fractional hours (9.5) or a clock string ("09:30").
type hourValue float64

func (h *hourValue) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return errBadHour
	}
	v, err := parseHour(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*h = hourValue(v)
	return nil
}

func parseHour(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", errBadHour, s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", errBadHour, s)
	}
	return float64(h) + float64(m)/60, nil
}

// inputEvent is one entry of a layout input file.
type inputEvent struct {
	ID     string    `yaml:"id"`
	Day    int       `yaml:"day"`
	Start  hourValue `yaml:"start"`
	End    hourValue `yaml:"end"`
	AllDay bool      `yaml:"all_day"`
}

// parseEvents reads a YAML or JSON document holding either a list of events
// or an object with an "events" list.
func parseEvents(data []byte) ([]layout.Event, error) {
	var list []inputEvent
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc struct {
			Events []inputEvent `yaml:"events"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("layout: parse input: %w", err)
		}
		list = doc.Events
	}
	if len(list) == 0 {
		return nil, errNoEvents
	}

	seen := make(map[string]bool, len(list))
	events := make([]layout.Event, 0, len(list))
	for i, in := range list {
		if in.ID == "" {
			return nil, fmt.Errorf("%w (entry %d)", errMissingID, i)
		}
		if seen[in.ID] {
			return nil, fmt.Errorf("%w: %s", errDuplicated, in.ID)
		}
		seen[in.ID] = true
		events = append(events, layout.Event{
			ID:        in.ID,
			Day:       in.Day,
			StartHour: float64(in.Start),
			EndHour:   float64(in.End),
			AllDay:    in.AllDay,
		})
	}
	return events, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func layoutCmd(gf *globalFlags) *cobra.Command {
	var (
		view    string
		target  string
		asJSON  bool
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "layout <events.yaml|->",
		Short: "Lay out events from a YAML or JSON file and print the boxes",
		Long: `Reads a list of {id, day, start, end, all_day} events, where start and end
are fractional hours (9.5) or clock strings ("09:30"), and prints the computed layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptionalConfig(gf.configPath)
			if err != nil {
				return err
			}
			applyLogConfig(cfg, gf)

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			events, err := parseEvents(data)
			if err != nil {
				return err
			}

			lc := cfg.LayoutConfig()
			if view != "" {
				lc.View = layout.ParseView(view)
			}

			out := cmd.OutOrStdout()
			if target != "" {
				l, ok := layout.LayoutFor(events, target, lc)
				if !ok {
					return fmt.Errorf("layout: no layout for %q", target)
				}
				return writeJSONTo(out, l)
			}

			began := time.Now()
			res := layout.Compute(events, lc)
			appLog.Debug("layout computed", "events", res.Stats.Events, "elapsed", time.Since(began))

			if asJSON {
				return writeJSONTo(out, res.Layouts)
			}
			if err := report.Write(out, report.FromLayouts(events, res.Layouts), report.Options{NoColor: gf.noColor}); err != nil {
				return err
			}
			if summary {
				fmt.Fprintln(out, report.Summary(res.Stats))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&view, "view", "", "View type: week or day (default from config)")
	cmd.Flags().StringVar(&target, "target", "", "Print only the layout of this event id as JSON")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print layouts as JSON instead of a table")
	cmd.Flags().BoolVar(&summary, "stats", false, "Print engine counters after the table")

	return cmd
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
