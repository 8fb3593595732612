package patients

import (
	"strings"
	"time"

	"github.com/wolfman30/cardio-intake/internal/severity"
)

// Patient is the persisted record for a person going through intake.
type Patient struct {
	ID              string            `json:"id"`
	ChannelID       string            `json:"channel_id,omitempty"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone,omitempty"`
	Severity        severity.Level    `json:"severity,omitempty"`
	Symptom         string            `json:"symptom,omitempty"`
	Responses       []CategoryAnswers `json:"responses,omitempty"`
	AppointmentTime *time.Time        `json:"appointment_time,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Details carries the fields a caller may supply when creating or updating a patient.
// Empty values leave the stored value untouched.
type Details struct {
	ChannelID string
	Name      string
	Email     string
	Phone     string
}

// QuestionGroup is one category of follow-up questions in declaration order.
type QuestionGroup struct {
	Category  string   `json:"category" yaml:"category"`
	Questions []string `json:"questions" yaml:"questions"`
}

// Symptom is a catalog entry.
type Symptom struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	FollowUps []QuestionGroup `json:"follow_up_questions"`
}

// FollowUpQuestion is the flattened projection of a symptom's question groups.
type FollowUpQuestion struct {
	Category string `json:"category"`
	Question string `json:"question"`
}

// FlattenQuestions lists questions in category order, then in-category order.
func (s Symptom) FlattenQuestions() []FollowUpQuestion {
	var out []FollowUpQuestion
	for _, group := range s.FollowUps {
		for _, q := range group.Questions {
			out = append(out, FollowUpQuestion{Category: group.Category, Question: q})
		}
	}
	return out
}

// CategoryAnswers holds the raw answers given for one category.
type CategoryAnswers struct {
	Category string   `json:"category"`
	Answers  []string `json:"answers"`
}

// CaseSnapshot is the clinical content of a consultation.
type CaseSnapshot struct {
	Symptom   string            `json:"symptom"`
	Responses []CategoryAnswers `json:"responses"`
	Severity  severity.Level    `json:"severity"`
}

// ResponseMap indexes answers by category.
func (c CaseSnapshot) ResponseMap() map[string][]string {
	out := make(map[string][]string, len(c.Responses))
	for _, group := range c.Responses {
		out[group.Category] = append(out[group.Category], group.Answers...)
	}
	return out
}

// Append records an answer, keeping category first-seen order.
func (c *CaseSnapshot) Append(category, answer string) {
	for i := range c.Responses {
		if c.Responses[i].Category == category {
			c.Responses[i].Answers = append(c.Responses[i].Answers, answer)
			return
		}
	}
	c.Responses = append(c.Responses, CategoryAnswers{Category: category, Answers: []string{answer}})
}

// Appointment is a booked visit.
type Appointment struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	ExternalEventID string    `json:"calendar_event_id"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

const AppointmentStatusScheduled = "scheduled"

// ChatMessage is one line of a stored transcript.
type ChatMessage struct {
	ID          int64     `json:"id"`
	PatientID   string    `json:"patient_id"`
	Message     string    `json:"message"`
	Sender      string    `json:"sender"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	SenderPatient = "patient"
	SenderBot     = "bot"
)

// Filter narrows the provider-facing patient list.
type Filter struct {
	Search   string
	Severity severity.Level
	Sort     string
	Limit    int
	Offset   int
}

const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortName     = "name"
	SortSeverity = "severity"
)

// Normalize clamps paging and defaults the sort order.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch strings.ToLower(strings.TrimSpace(f.Sort)) {
	case SortOldest:
		f.Sort = SortOldest
	case SortName:
		f.Sort = SortName
	case SortSeverity:
		f.Sort = SortSeverity
	default:
		f.Sort = SortNewest
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func parseStoredSeverity(raw string) (severity.Level, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	return severity.Parse(raw)
}

func severityRank(l severity.Level) int {
	switch l {
	case severity.Critical:
		return 0
	case severity.Medium:
		return 1
	case severity.Low:
		return 2
	default:
		return 3
	}
}

// CategoryTitle turns "red_flags" into "Red Flags".
func CategoryTitle(category string) string {
	words := strings.Split(category, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
