package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cardio-intake/internal/severity"
)

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, raw)
	require.NoError(t, err)
	return ts
}

func TestAlignToGrid(t *testing.T) {
	base := mustTime(t, "2025-06-01T09:07:42Z")
	assert.Equal(t, mustTime(t, "2025-06-01T09:15:00Z"), AlignToGrid(base, 15))
	assert.Equal(t, mustTime(t, "2025-06-01T09:30:00Z"), AlignToGrid(mustTime(t, "2025-06-01T09:30:00Z"), 15))
	assert.Equal(t, mustTime(t, "2025-06-01T10:00:00Z"), AlignToGrid(mustTime(t, "2025-06-01T09:31:00Z"), 30))
}

func TestBusinessHoursContains(t *testing.T) {
	hours := DefaultBusinessHours()
	assert.True(t, hours.Contains(mustTime(t, "2025-06-01T09:00:00Z"), 30*time.Minute))
	assert.True(t, hours.Contains(mustTime(t, "2025-06-01T16:30:00Z"), 30*time.Minute))
	assert.False(t, hours.Contains(mustTime(t, "2025-06-01T16:45:00Z"), 30*time.Minute))
	assert.False(t, hours.Contains(mustTime(t, "2025-06-01T08:45:00Z"), 30*time.Minute))

	weekdays := BusinessHours{Start: 9, End: 17, Weekdays: true}
	// 2025-06-01 is a Sunday.
	assert.False(t, weekdays.Contains(mustTime(t, "2025-06-01T10:00:00Z"), 30*time.Minute))
	assert.True(t, weekdays.Contains(mustTime(t, "2025-06-02T10:00:00Z"), 30*time.Minute))
}

func TestGenerateSlotsSkipsBusyAndClosedHours(t *testing.T) {
	from := mustTime(t, "2025-06-01T15:50:00Z")
	until := from.Add(24 * time.Hour)
	busy := []Interval{
		{Start: mustTime(t, "2025-06-01T16:00:00Z"), End: mustTime(t, "2025-06-01T16:30:00Z")},
	}

	slots := GenerateSlots(from, until, SlotQuery{Limit: 8}, DefaultBusinessHours(), busy)
	require.Len(t, slots, 8)
	assert.Equal(t, mustTime(t, "2025-06-01T16:30:00Z"), slots[0])
	assert.Equal(t, mustTime(t, "2025-06-02T09:00:00Z"), slots[1])
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].After(slots[i-1]), "slots must be ascending")
	}
}

func TestGenerateSlotsRespectsLimitAndHorizon(t *testing.T) {
	from := mustTime(t, "2025-06-01T09:00:00Z")
	slots := GenerateSlots(from, from.Add(45*time.Minute), SlotQuery{Limit: 8}, DefaultBusinessHours(), nil)
	assert.Equal(t, []time.Time{
		mustTime(t, "2025-06-01T09:00:00Z"),
		mustTime(t, "2025-06-01T09:15:00Z"),
	}, slots)

	one := GenerateSlots(from, from.Add(8*time.Hour), SlotQuery{}, DefaultBusinessHours(), nil)
	assert.Len(t, one, 1)
}

func TestLeadTimeByTier(t *testing.T) {
	assert.Equal(t, time.Hour, LeadTime(severity.Critical))
	assert.Equal(t, 2*time.Hour, LeadTime(severity.Medium))
	assert.Equal(t, 24*time.Hour, LeadTime(severity.Low))
}

func TestMemoryCalendarBookAndCancel(t *testing.T) {
	now := mustTime(t, "2025-06-01T07:00:00Z")
	cal := NewMemoryCalendar(DefaultBusinessHours())
	cal.SetClock(func() time.Time { return now })

	slots, err := cal.NextAvailableSlots(context.Background(), severity.Critical, SlotQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, mustTime(t, "2025-06-01T09:00:00Z"), slots[0])

	booking, err := cal.Book(context.Background(), EventRequest{Start: slots[0]})
	require.NoError(t, err)
	assert.Equal(t, slots[0], booking.Start)

	_, err = cal.Book(context.Background(), EventRequest{Start: slots[0]})
	assert.ErrorIs(t, err, ErrSlotTaken)

	next, err := cal.NextAvailableSlots(context.Background(), severity.Critical, SlotQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, mustTime(t, "2025-06-01T09:30:00Z"), next[0])

	require.NoError(t, cal.CancelEvent(context.Background(), booking.EventID))
	assert.Equal(t, 0, cal.Events())
}

func TestMemoryCalendarBookNextAvailableWithoutFreeSlot(t *testing.T) {
	now := mustTime(t, "2025-06-01T07:00:00Z")
	cal := NewMemoryCalendar(DefaultBusinessHours())
	cal.SetClock(func() time.Time { return now })
	cal.Block(now, now.Add(7*24*time.Hour))

	_, err := cal.BookNextAvailable(context.Background(), EventRequest{})
	assert.ErrorIs(t, err, ErrNoSlots)
	assert.Equal(t, 1, cal.Events())
}
