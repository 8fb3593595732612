package intake

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfman30/cardio-intake/internal/patients"
)

// Session is the live conversation bound to one channel. The Step carries
// only the fields that are meaningful in the current state.
type Session struct {
	ID        string
	ChannelID string
	Patient   patients.Patient
	Step      Step
	StartedAt time.Time
	UpdatedAt time.Time
}

// State reports the session's current state.
func (s *Session) State() State {
	if s == nil || s.Step == nil {
		return StateWelcome
	}
	return s.Step.State()
}

// Step is the per-state payload of a session.
type Step interface {
	State() State
}

type WelcomeStep struct{}

type NameStep struct {
	Attempts int `json:"attempts"`
}

type EmailStep struct {
	Attempts int `json:"attempts"`
}

type SymptomStep struct{}

// FollowUpStep walks the flattened question list of the matched symptom.
type FollowUpStep struct {
	Questions []patients.FollowUpQuestion `json:"questions"`
	Index     int                         `json:"index"`
	Case      patients.CaseSnapshot       `json:"case"`
}

// Current returns the question awaiting an answer.
func (f *FollowUpStep) Current() (patients.FollowUpQuestion, bool) {
	if f.Index < 0 || f.Index >= len(f.Questions) {
		return patients.FollowUpQuestion{}, false
	}
	return f.Questions[f.Index], true
}

// ConfirmSlotStep holds a single proposed slot awaiting yes/no.
type ConfirmSlotStep struct {
	Case     patients.CaseSnapshot `json:"case"`
	Proposed *time.Time            `json:"proposed,omitempty"`
}

// SelectSlotStep holds an enumerated offer awaiting a numeric choice.
type SelectSlotStep struct {
	Case    patients.CaseSnapshot `json:"case"`
	Offered []time.Time           `json:"offered"`
}

type CompletedStep struct {
	Case        *patients.CaseSnapshot `json:"case,omitempty"`
	Appointment *time.Time             `json:"appointment,omitempty"`
}

func (*WelcomeStep) State() State { return StateWelcome }
func (*NameStep) State() State { return StateCollectingName }
func (*EmailStep) State() State { return StateCollectingEmail }
func (*SymptomStep) State() State { return StateCollectingSymptoms }
func (*FollowUpStep) State() State { return StateAskingFollowUp }
func (*ConfirmSlotStep) State() State { return StateConfirmingSlot }
func (*SelectSlotStep) State() State { return StateSelectingSlot }
func (*CompletedStep) State() State { return StateCompleted }

// stepFor returns the empty step a session enters when starting in state.
func stepFor(state State) (Step, error) {
	switch state {
	case StateWelcome:
		return &WelcomeStep{}, nil
	case StateCollectingName:
		return &NameStep{}, nil
	case StateCollectingEmail:
		return &EmailStep{}, nil
	case StateCollectingSymptoms:
		return &SymptomStep{}, nil
	case StateAskingFollowUp:
		return &FollowUpStep{}, nil
	case StateConfirmingSlot:
		return &ConfirmSlotStep{}, nil
	case StateSelectingSlot:
		return &SelectSlotStep{}, nil
	case StateCompleted:
		return &CompletedStep{}, nil
	default:
		return nil, fmt.Errorf("intake: unknown state %q", state)
	}
}

type sessionJSON struct {
	ID        string           `json:"id"`
	ChannelID string           `json:"channel_id"`
	Patient   patients.Patient `json:"patient"`
	State     State            `json:"state"`
	Step      json.RawMessage  `json:"step"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	step := s.Step
	if step == nil {
		step = &WelcomeStep{}
	}
	raw, err := json.Marshal(step)
	if err != nil {
		return nil, fmt.Errorf("intake: marshal step: %w", err)
	}
	return json.Marshal(sessionJSON{
		ID:        s.ID,
		ChannelID: s.ChannelID,
		Patient:   s.Patient,
		State:     step.State(),
		Step:      raw,
		StartedAt: s.StartedAt,
		UpdatedAt: s.UpdatedAt,
	})
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var wire sessionJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("intake: decode session: %w", err)
	}
	step, err := stepFor(wire.State)
	if err != nil {
		return err
	}
	if len(wire.Step) > 0 && string(wire.Step) != "null" {
		if err := json.Unmarshal(wire.Step, step); err != nil {
			return fmt.Errorf("intake: decode %s step: %w", wire.State, err)
		}
	}
	*s = Session{
		ID:        wire.ID,
		ChannelID: wire.ChannelID,
		Patient:   wire.Patient,
		Step:      step,
		StartedAt: wire.StartedAt,
		UpdatedAt: wire.UpdatedAt,
	}
	return nil
}
