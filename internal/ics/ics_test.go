package ics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/ics"
	"calgrid/internal/model"
)

var testSource = ics.Source{ID: "team", URL: "https://example.com/team.ics"}

// crlf converts a readable fixture into RFC 5545 line endings.
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

var weekFixture = crlf(`
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calgrid//test//EN
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20250101T000000Z
DTSTART:20250106T090000Z
DTEND:20250106T093000Z
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20250108T090000Z
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250107T090000Z
DTSTART:20250107T100000Z
DTEND:20250107T103000Z
SUMMARY:Standup (moved)
END:VEVENT
BEGIN:VEVENT
UID:offsite@test
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250109
DTEND;VALUE=DATE:20250111
SUMMARY:Offsite
END:VEVENT
BEGIN:VEVENT
UID:noend@test
DTSTAMP:20250101T000000Z
DTSTART:20250106T130000Z
SUMMARY:Open end
LOCATION:Room 1
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250101T000000Z
DTSTART:20250106T130000Z
SUMMARY:No uid
END:VEVENT
END:VCALENDAR
`)

func byUID(events []ics.ParsedEvent) map[string][]ics.ParsedEvent {
	out := make(map[string][]ics.ParsedEvent)
	for _, ev := range events {
		out[ev.UID] = append(out[ev.UID], ev)
	}
	return out
}

func TestParseICS(t *testing.T) {
	t.Parallel()

	events, err := ics.ParseICS(testSource, weekFixture)
	require.NoError(t, err)
	require.Len(t, events, 4, "event without UID is skipped")

	got := byUID(events)
	require.Len(t, got["standup@test"], 2)

	var base, override ics.ParsedEvent
	for _, ev := range got["standup@test"] {
		if ev.IsOverride {
			override = ev
		} else {
			base = ev
		}
	}
	assert.Equal(t, "FREQ=DAILY;COUNT=5", base.RawRRule)
	require.Len(t, base.ExDates, 1)
	assert.True(t, base.ExDates[0].Equal(time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)))
	require.NotNil(t, override.Recurrence)
	assert.True(t, override.Recurrence.Equal(time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC)))

	offsite := got["offsite@test"][0]
	assert.True(t, offsite.AllDay)
	assert.Equal(t, 48*time.Hour, offsite.End.Sub(offsite.Start))

	noEnd := got["noend@test"][0]
	assert.False(t, noEnd.AllDay)
	assert.Equal(t, time.Hour, noEnd.End.Sub(noEnd.Start))
	assert.Equal(t, "Room 1", noEnd.Location)
	assert.Equal(t, testSource, noEnd.Source)
}

func TestParseICS_Empty(t *testing.T) {
	t.Parallel()

	_, err := ics.ParseICS(testSource, nil)
	require.ErrorIs(t, err, ics.ErrEmptyBody)
}

func TestExpandOccurrences(t *testing.T) {
	t.Parallel()

	events, err := ics.ParseICS(testSource, weekFixture)
	require.NoError(t, err)

	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedEvents)

	var standups []model.Occurrence
	for _, occ := range res.Occurrences {
		if occ.UID == "standup@test" {
			standups = append(standups, occ)
		}
	}
	require.Len(t, standups, 4, "five instances minus one EXDATE")

	moved := standups[1]
	assert.Equal(t, "Standup (moved)", moved.Summary)
	assert.Equal(t, 10, moved.Start.Hour())
	for _, occ := range standups {
		assert.NotEqual(t, 8, occ.Start.Day())
		assert.Equal(t, 30*time.Minute, occ.Duration())
		assert.Equal(t, "team", occ.SourceID)
	}

	assert.Len(t, res.Occurrences, 6)
	for i := 1; i < len(res.Occurrences); i++ {
		assert.False(t, res.Occurrences[i].Start.Before(res.Occurrences[i-1].Start), "sorted by start")
	}

	keys := make(map[string]bool)
	for _, occ := range res.Occurrences {
		assert.False(t, keys[occ.Key()], "duplicate key %s", occ.Key())
		keys[occ.Key()] = true
	}
}

func TestExpandOccurrences_Window(t *testing.T) {
	t.Parallel()

	events, err := ics.ParseICS(testSource, weekFixture)
	require.NoError(t, err)

	// Only the standup of the 10th remains; the offsite spans into the window.
	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	uids := make(map[string]int)
	for _, occ := range res.Occurrences {
		uids[occ.UID]++
	}
	assert.Equal(t, 1, uids["standup@test"])
	assert.Equal(t, 1, uids["offsite@test"])
	assert.Zero(t, uids["noend@test"])
}

func TestExpandOccurrences_Cap(t *testing.T) {
	t.Parallel()

	body := crlf(`
BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calgrid//test//EN
BEGIN:VEVENT
UID:forever@test
DTSTAMP:20250101T000000Z
DTSTART:20250101T080000Z
DTEND:20250101T090000Z
RRULE:FREQ=DAILY
SUMMARY:Forever
END:VEVENT
END:VCALENDAR
`)
	events, err := ics.ParseICS(testSource, body)
	require.NoError(t, err)

	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation:        time.UTC,
		RangeStart:             time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 3,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 3)
	assert.Equal(t, []string{"forever@test"}, res.TruncatedEvents)
}

func TestExpandOccurrences_InvalidRange(t *testing.T) {
	t.Parallel()

	now := time.Now()
	_, err := ics.ExpandOccurrences(nil, ics.ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	require.ErrorIs(t, err, ics.ErrInvalidRange)
}
