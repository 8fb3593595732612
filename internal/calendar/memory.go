package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/cardio-intake/internal/severity"
)

// MemoryCalendar is an in-process provider calendar for local development
// and tests.
type MemoryCalendar struct {
	mu      sync.Mutex
	hours   BusinessHours
	horizon time.Duration
	now     func() time.Time
	events  map[string]Interval
	seq     int

	// FailBooking makes every Book call fail.
	FailBooking bool
}

func NewMemoryCalendar(hours BusinessHours) *MemoryCalendar {
	if hours.End <= hours.Start {
		hours = DefaultBusinessHours()
	}
	return &MemoryCalendar{
		hours:   hours,
		horizon: 5 * 24 * time.Hour,
		now:     time.Now,
		events:  make(map[string]Interval),
	}
}

// SetClock overrides the time source.
func (m *MemoryCalendar) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Block marks an interval busy without creating a bookable event.
func (m *MemoryCalendar) Block(start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.events[fmt.Sprintf("block-%d", m.seq)] = Interval{Start: start, End: end}
}

func (m *MemoryCalendar) NextAvailableSlots(_ context.Context, tier severity.Level, q SlotQuery) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.now().UTC().Add(LeadTime(tier))
	return GenerateSlots(from, from.Add(m.horizon), q, m.hours, m.busyLocked()), nil
}

func (m *MemoryCalendar) Book(_ context.Context, req EventRequest) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailBooking {
		return nil, fmt.Errorf("calendar: booking disabled")
	}
	if req.Duration <= 0 {
		req.Duration = 30 * time.Minute
	}
	start := req.Start.UTC()
	end := start.Add(req.Duration)
	for _, b := range m.events {
		if b.overlaps(start, end) {
			return nil, ErrSlotTaken
		}
	}
	m.seq++
	id := fmt.Sprintf("evt-%d", m.seq)
	m.events[id] = Interval{Start: start, End: end}
	return &Booking{EventID: id, Start: start}, nil
}

func (m *MemoryCalendar) BookNextAvailable(ctx context.Context, req EventRequest) (*Booking, error) {
	m.mu.Lock()
	base := AlignToGrid(m.now().UTC().Add(time.Hour), 15)
	slots := GenerateSlots(base, base.Add(m.horizon), SlotQuery{Limit: 1}, m.hours, m.busyLocked())
	m.mu.Unlock()
	if len(slots) == 0 {
		return nil, fmt.Errorf("calendar: book next available after %s: %w", base.Format(time.RFC3339), ErrNoSlots)
	}
	req.Start = slots[0]
	return m.Book(ctx, req)
}

func (m *MemoryCalendar) CancelEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("calendar: cancel %s: %w", eventID, ErrEventNotFound)
	}
	delete(m.events, eventID)
	return nil
}

// Events returns the number of stored events and blocks.
func (m *MemoryCalendar) Events() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *MemoryCalendar) busyLocked() []Interval {
	out := make([]Interval, 0, len(m.events))
	for _, b := range m.events {
		out = append(out, b)
	}
	return out
}
