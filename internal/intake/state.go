// Package intake runs the cardiology intake conversation: identity
// collection, symptom follow-up questioning, severity triage and
// appointment slot negotiation.
package intake

import "strings"

// State is the position of a session in the intake conversation.
type State string

const (
	StateWelcome            State = "WELCOME"
	StateCollectingName     State = "COLLECTING_NAME"
	StateCollectingEmail    State = "COLLECTING_EMAIL"
	StateCollectingSymptoms State = "COLLECTING_SYMPTOMS"
	StateAskingFollowUp     State = "ASKING_FOLLOW_UP"
	StateConfirmingSlot     State = "CONFIRMING_SLOT"
	StateSelectingSlot      State = "SELECTING_SLOT"
	StateCompleted          State = "COMPLETED"
)

// AllStates lists every state in conversation order.
var AllStates = []State{
	StateWelcome,
	StateCollectingName,
	StateCollectingEmail,
	StateCollectingSymptoms,
	StateAskingFollowUp,
	StateConfirmingSlot,
	StateSelectingSlot,
	StateCompleted,
}

// ParseState accepts any casing.
func ParseState(raw string) (State, bool) {
	candidate := State(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range AllStates {
		if s == candidate {
			return s, true
		}
	}
	return "", false
}
