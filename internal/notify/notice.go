package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/internal/severity"
)

// Notice tells the provider about a finished consultation.
type Notice struct {
	Patient       patients.Patient      `json:"patient"`
	Case          patients.CaseSnapshot `json:"case"`
	ScheduledTime *time.Time            `json:"scheduled_time,omitempty"`
	RequestedAt   time.Time             `json:"requested_at"`
}

// Receipt identifies a delivered notification.
type Receipt struct {
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
}

// Notifier delivers provider notifications.
type Notifier interface {
	NotifyProvider(ctx context.Context, n Notice) (Receipt, error)
}

const displayLayout = "Mon, Jan 2 2006 at 3:04 PM MST"

func severityParts(level severity.Level) (string, string) {
	if !level.Valid() {
		level = severity.Low
	}
	return level.Decorated(), string(level)
}

func scheduledText(n Notice, loc *time.Location) string {
	if n.ScheduledTime == nil {
		return "Not scheduled - staff follow-up required"
	}
	return n.ScheduledTime.In(loc).Format(displayLayout)
}

// FormatTelegramHTML renders the provider notification with Telegram's HTML
// parse mode. User-supplied text is escaped.
func FormatTelegramHTML(n Notice, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	decorated, level := severityParts(n.Case.Severity)

	var responses strings.Builder
	for _, group := range n.Case.Responses {
		fmt.Fprintf(&responses, "\n<b>%s:</b>\n", html.EscapeString(patients.CategoryTitle(group.Category)))
		for i, answer := range group.Answers {
			fmt.Fprintf(&responses, "%d. %s\n", i+1, html.EscapeString(answer))
		}
	}

	var b strings.Builder
	b.WriteString("🏥 <b>NEW PATIENT CONSULTATION</b>\n\n")
	b.WriteString("👤 <b>Patient Details:</b>\n")
	fmt.Fprintf(&b, "• Name: %s\n", html.EscapeString(n.Patient.Name))
	fmt.Fprintf(&b, "• Email: %s\n", html.EscapeString(n.Patient.Email))
	fmt.Fprintf(&b, "• Consultation Time: %s\n\n", n.RequestedAt.In(loc).Format(displayLayout))
	fmt.Fprintf(&b, "🩺 <b>Primary Symptom:</b>\n%s\n\n", html.EscapeString(n.Case.Symptom))
	fmt.Fprintf(&b, "🚦 <b>Severity:</b> %s <i>(%s)</i>\n\n", decorated, level)
	fmt.Fprintf(&b, "📝 <b>Patient Responses:</b>%s\n", responses.String())
	fmt.Fprintf(&b, "📅 <b>Scheduled Appointment:</b>\n%s\n", scheduledText(n, loc))
	if n.ScheduledTime != nil {
		b.WriteString("\n⏰ A calendar invitation has been created for this visit.\n")
	}
	b.WriteString("\n---\n<i>Cardio Intake Assistant</i>")
	return b.String()
}

// FormatEmail renders the provider notification as a subject, plain text
// body and HTML body.
func FormatEmail(n Notice, loc *time.Location) (subject, text, htmlBody string) {
	if loc == nil {
		loc = time.UTC
	}
	decorated, level := severityParts(n.Case.Severity)
	subject = fmt.Sprintf("New cardiology consultation: %s (%s)", displayName(n.Patient.Name), level)

	var tb strings.Builder
	fmt.Fprintf(&tb, "Patient: %s\nEmail: %s\n", displayName(n.Patient.Name), n.Patient.Email)
	fmt.Fprintf(&tb, "Primary symptom: %s\nSeverity: %s\n", n.Case.Symptom, decorated)
	fmt.Fprintf(&tb, "Scheduled: %s\n", scheduledText(n, loc))
	for _, group := range n.Case.Responses {
		fmt.Fprintf(&tb, "\n%s:\n", patients.CategoryTitle(group.Category))
		for i, answer := range group.Answers {
			fmt.Fprintf(&tb, "  %d. %s\n", i+1, answer)
		}
	}

	var hb strings.Builder
	hb.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&hb, `<h2>New consultation: %s</h2>`, html.EscapeString(displayName(n.Patient.Name)))
	fmt.Fprintf(&hb, `<p><strong>Severity:</strong> %s</p>`, html.EscapeString(decorated))
	fmt.Fprintf(&hb, `<p><strong>Primary symptom:</strong> %s</p>`, html.EscapeString(n.Case.Symptom))
	fmt.Fprintf(&hb, `<p><strong>Scheduled:</strong> %s</p>`, html.EscapeString(scheduledText(n, loc)))
	for _, group := range n.Case.Responses {
		fmt.Fprintf(&hb, `<h3>%s</h3><ol>`, html.EscapeString(patients.CategoryTitle(group.Category)))
		for _, answer := range group.Answers {
			fmt.Fprintf(&hb, `<li>%s</li>`, html.EscapeString(answer))
		}
		hb.WriteString(`</ol>`)
	}
	hb.WriteString(`</div>`)
	return subject, tb.String(), hb.String()
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Unknown patient"
	}
	return name
}
