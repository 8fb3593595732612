package calendar

import (
	"sort"
	"time"

	"github.com/wolfman30/cardio-intake/internal/severity"
)

// SlotQuery describes the candidate slots a caller wants.
type SlotQuery struct {
	DurationMinutes int
	StepMinutes     int
	Limit           int
}

func (q SlotQuery) withDefaults() SlotQuery {
	if q.DurationMinutes <= 0 {
		q.DurationMinutes = 30
	}
	if q.StepMinutes <= 0 {
		q.StepMinutes = 15
	}
	if q.Limit <= 0 {
		q.Limit = 1
	}
	return q
}

// BusinessHours bounds bookable time. A slot must start at or after Start
// o'clock and end no later than End o'clock, in Location.
type BusinessHours struct {
	Start    int
	End      int
	Location *time.Location
	Weekdays bool
}

// DefaultBusinessHours is 09:00-17:00 UTC, every day.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{Start: 9, End: 17, Location: time.UTC}
}

func (h BusinessHours) loc() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Contains reports whether [start, start+d) fits inside business hours.
func (h BusinessHours) Contains(start time.Time, d time.Duration) bool {
	local := start.In(h.loc())
	if h.Weekdays && (local.Weekday() == time.Saturday || local.Weekday() == time.Sunday) {
		return false
	}
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), h.Start, 0, 0, 0, h.loc())
	dayEnd := time.Date(local.Year(), local.Month(), local.Day(), h.End, 0, 0, 0, h.loc())
	end := local.Add(d)
	return !local.Before(dayStart) && !end.After(dayEnd)
}

// Interval is a busy period on the provider calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

// LeadTime is how far ahead of now the first slot may start for a tier.
func LeadTime(tier severity.Level) time.Duration {
	switch tier {
	case severity.Critical:
		return time.Hour
	case severity.Medium:
		return 2 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// AlignToGrid rounds t up to the next multiple of step minutes past the hour,
// dropping seconds.
func AlignToGrid(t time.Time, stepMinutes int) time.Time {
	if stepMinutes <= 0 {
		stepMinutes = 15
	}
	t = t.Truncate(time.Minute)
	if rem := t.Minute() % stepMinutes; rem != 0 {
		t = t.Add(time.Duration(stepMinutes-rem) * time.Minute)
	}
	return t
}

// GenerateSlots walks the step grid from `from` until `until` and returns up
// to q.Limit ascending slot starts that fit business hours and do not overlap
// any busy interval.
func GenerateSlots(from, until time.Time, q SlotQuery, hours BusinessHours, busy []Interval) []time.Time {
	q = q.withDefaults()
	duration := time.Duration(q.DurationMinutes) * time.Minute
	step := time.Duration(q.StepMinutes) * time.Minute

	sorted := append([]Interval(nil), busy...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var out []time.Time
	for cur := AlignToGrid(from, q.StepMinutes); !cur.Add(duration).After(until) && len(out) < q.Limit; cur = cur.Add(step) {
		if !hours.Contains(cur, duration) {
			continue
		}
		end := cur.Add(duration)
		free := true
		for _, b := range sorted {
			if b.Start.After(end) {
				break
			}
			if b.overlaps(cur, end) {
				free = false
				break
			}
		}
		if free {
			out = append(out, cur)
		}
	}
	return out
}
