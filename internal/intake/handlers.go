package intake

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/cardio-intake/internal/nlp"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// turn is one inbound message being applied to a session.
type turn struct {
	o    *Orchestrator
	sess *Session
	text string
	log  *logging.Logger
}

// stepHandler applies a message to a session in one state and returns the reply.
type stepHandler interface {
	Handle(ctx context.Context, t *turn) string
}

type handlerFunc func(ctx context.Context, t *turn) string

func (f handlerFunc) Handle(ctx context.Context, t *turn) string { return f(ctx, t) }

func defaultHandlers() map[State]stepHandler {
	return map[State]stepHandler{
		StateWelcome:            handlerFunc(handleWelcome),
		StateCollectingName:     handlerFunc(handleName),
		StateCollectingEmail:    handlerFunc(handleEmail),
		StateCollectingSymptoms: handlerFunc(handleSymptoms),
		StateAskingFollowUp:     handlerFunc(handleFollowUp),
		StateConfirmingSlot:     handlerFunc(handleConfirmSlot),
		StateSelectingSlot:      handlerFunc(handleSelectSlot),
		StateCompleted:          handlerFunc(handleCompleted),
	}
}

func handleWelcome(_ context.Context, t *turn) string {
	t.sess.Step = &SymptomStep{}
	return welcomeReply
}

func handleName(ctx context.Context, t *turn) string {
	o := t.o
	step := t.sess.Step.(*NameStep)
	step.Attempts++

	name := call(ctx, o, "nlp", "extract_name", func(ctx context.Context) (string, error) {
		return o.assistant.ExtractField(ctx, t.text, nlp.FieldName)
	}).Or(nlp.Invalid)

	if name == nlp.Invalid || !o.assistant.IsValidName(name) {
		fallback, ok := o.cfg.NamePolicy.Recover(step.Attempts, t.text)
		if !ok {
			return nameRetry
		}
		t.log.Info("using fallback name", "attempts", step.Attempts)
		t.sess.Patient.Name = fallback
		t.sess.Step = &EmailStep{}
		return nameAccepted(fallback, true)
	}

	t.sess.Patient.Name = strings.TrimSpace(name)
	t.sess.Step = &EmailStep{}
	return nameAccepted(t.sess.Patient.Name, false)
}

func handleEmail(ctx context.Context, t *turn) string {
	o := t.o
	step := t.sess.Step.(*EmailStep)
	step.Attempts++

	email := call(ctx, o, "nlp", "extract_email", func(ctx context.Context) (string, error) {
		return o.assistant.ExtractField(ctx, t.text, nlp.FieldEmail)
	}).Or(nlp.Invalid)

	if email == nlp.Invalid || !o.assistant.IsValidEmail(email) {
		fallback, ok := o.cfg.EmailPolicy.Recover(step.Attempts, t.text)
		if !ok {
			return emailRetryMessage(step.Attempts)
		}
		t.log.Info("using fallback email", "attempts", step.Attempts)
		email = fallback
	}

	t.sess.Patient.Email = strings.TrimSpace(email)
	o.savePatient(ctx, t.sess)
	t.sess.Step = &SymptomStep{}
	return emailAccepted
}

// savePatient upserts the session's identity and refreshes the local copy.
// Failure keeps the local copy.
func (o *Orchestrator) savePatient(ctx context.Context, sess *Session) bool {
	res := call(ctx, o, "persistence", "upsert_patient", func(ctx context.Context) (*patients.Patient, error) {
		return o.repo.UpsertPatient(ctx, patients.Details{
			ChannelID: sess.ChannelID,
			Name:      sess.Patient.Name,
			Email:     sess.Patient.Email,
			Phone:     sess.Patient.Phone,
		})
	})
	if !res.Ok() || res.Value == nil {
		return false
	}
	sess.Patient = *res.Value
	return true
}

func handleSymptoms(ctx context.Context, t *turn) string {
	o := t.o
	catalog := call(ctx, o, "persistence", "list_symptom_catalog", o.repo.ListSymptomCatalog)
	if !catalog.Ok() || len(catalog.Value) == 0 {
		return catalogDown
	}

	names := make([]string, len(catalog.Value))
	for i, s := range catalog.Value {
		names[i] = s.Name
	}

	matched := call(ctx, o, "nlp", "match_symptom", func(ctx context.Context) (string, error) {
		return o.assistant.MatchSymptom(ctx, t.text, names)
	}).Or(nlp.NoMatch)
	if matched == nlp.NoMatch {
		return symptomNotRecognized(names)
	}

	var symptom *patients.Symptom
	for i := range catalog.Value {
		if catalog.Value[i].Name == matched {
			symptom = &catalog.Value[i]
			break
		}
	}
	if symptom == nil {
		return symptomUnknown
	}

	questions := symptom.FlattenQuestions()
	hasFollowUps := len(questions) > 0
	ack := call(ctx, o, "nlp", "acknowledge_symptom", func(ctx context.Context) (string, error) {
		return o.assistant.AcknowledgeSymptom(ctx, symptom.Name, hasFollowUps)
	}).Or(acknowledgeFallback(symptom.Name, hasFollowUps))

	snapshot := patients.CaseSnapshot{Symptom: symptom.Name}
	t.log.Info("symptom matched", "symptom", symptom.Name, "questions", len(questions))

	if !hasFollowUps {
		return ack + "\n\n" + o.complete(ctx, t, snapshot)
	}

	t.sess.Step = &FollowUpStep{Questions: questions, Index: 0, Case: snapshot}
	return ack + "\n\n" + o.rephrase(ctx, questions[0].Question)
}

func handleFollowUp(ctx context.Context, t *turn) string {
	o := t.o
	step := t.sess.Step.(*FollowUpStep)

	current, ok := step.Current()
	if !ok {
		return o.complete(ctx, t, step.Case)
	}
	step.Case.Append(current.Category, t.text)
	step.Index++

	next, ok := step.Current()
	if !ok {
		return o.complete(ctx, t, step.Case)
	}

	transition := call(ctx, o, "nlp", "transition_phrase", func(ctx context.Context) (string, error) {
		return o.assistant.TransitionPhrase(ctx, step.Index, len(step.Questions))
	}).Or("Thank you.")
	return transition + "\n" + o.rephrase(ctx, next.Question)
}

func (o *Orchestrator) rephrase(ctx context.Context, question string) string {
	phrased := call(ctx, o, "nlp", "rephrase_question", func(ctx context.Context) (string, error) {
		return o.assistant.RephraseQuestion(ctx, question)
	}).Or(question)
	if strings.TrimSpace(phrased) == "" {
		return question
	}
	return phrased
}

func handleConfirmSlot(ctx context.Context, t *turn) string {
	o := t.o
	step := t.sess.Step.(*ConfirmSlotStep)

	if step.Proposed == nil {
		t.log.Warn("confirming without a proposed slot, re-deriving offer")
		return o.offerAlternatives(ctx, t, step.Case, nil)
	}

	token := firstToken(t.text)
	switch {
	case hasToken(affirmativeTokens, token):
		return o.book(ctx, t, step.Case, *step.Proposed, nil)
	case hasToken(negativeTokens, token):
		return o.offerAlternatives(ctx, t, step.Case, nil)
	default:
		return confirmRetry(*step.Proposed, o.cfg.Location)
	}
}

func handleSelectSlot(ctx context.Context, t *turn) string {
	o := t.o
	step := t.sess.Step.(*SelectSlotStep)

	token := firstToken(t.text)
	if hasToken(declineTokens, token) {
		return declinedOffer + "\n\n" + o.finishWithoutAppointment(ctx, t, step.Case, outcomeDeclined)
	}

	choice, err := strconv.Atoi(token)
	if err != nil || choice < 1 || choice > len(step.Offered) {
		return selectRetry(len(step.Offered))
	}

	chosen := step.Offered[choice-1]
	remaining := make([]time.Time, 0, len(step.Offered)-1)
	remaining = append(remaining, step.Offered[:choice-1]...)
	remaining = append(remaining, step.Offered[choice:]...)
	return o.book(ctx, t, step.Case, chosen, remaining)
}

func handleCompleted(context.Context, *turn) string {
	return completedNotice
}
