// Package calendar finds free consultation slots on the provider's calendar
// and books them.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/cardio-intake/internal/patients"
)

var (
	ErrNoSlots       = errors.New("calendar: no free slots")
	ErrNotConfigured = errors.New("calendar: provider calendar not configured")
	ErrEventNotFound = errors.New("calendar: event not found")
	ErrSlotTaken     = errors.New("calendar: slot no longer available")
)

// EventRequest is everything needed to put a consultation on the calendar.
type EventRequest struct {
	Patient  patients.Patient
	Case     patients.CaseSnapshot
	Start    time.Time
	Duration time.Duration
}

// Booking is a created calendar event.
type Booking struct {
	EventID string
	Start   time.Time
	Link    string
}

// Summary is the event title.
func (r EventRequest) Summary() string {
	name := strings.TrimSpace(r.Patient.Name)
	if name == "" {
		name = "New Patient"
	}
	return fmt.Sprintf("Cardiology Consultation - %s", name)
}

// Description renders the case for the provider's calendar entry.
func (r EventRequest) Description(requestedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cardiology Consultation for %s\n\n", displayOr(r.Patient.Name, "patient"))
	fmt.Fprintf(&b, "📧 Patient Email: %s\n", displayOr(r.Patient.Email, "not provided"))
	fmt.Fprintf(&b, "🩺 Primary Symptom: %s\n\n", r.Case.Symptom)
	if r.Case.Severity.Valid() {
		fmt.Fprintf(&b, "🚦 Severity: %s (%s)\n\n", r.Case.Severity.Decorated(), r.Case.Severity)
	}
	b.WriteString("📝 Patient Assessment:\n")
	for _, group := range r.Case.Responses {
		fmt.Fprintf(&b, "\n%s:\n", patients.CategoryTitle(group.Category))
		for i, answer := range group.Answers {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, answer)
		}
	}
	fmt.Fprintf(&b, "\n---\nGenerated by the cardiology intake assistant\nConsultation requested: %s", requestedAt.UTC().Format(time.RFC1123))
	return b.String()
}

func displayOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
