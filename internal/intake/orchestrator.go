package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/cardio-intake/internal/nlp"
	"github.com/wolfman30/cardio-intake/internal/observability/metrics"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

var ErrNothingToAttach = errors.New("intake: email or name required to attach patient")

// Config tunes the conversation.
type Config struct {
	// StartState is where OnSessionStart places a new session: WELCOME,
	// COLLECTING_NAME or COLLECTING_SYMPTOMS.
	StartState          State
	TurnTimeout         time.Duration
	Location            *time.Location
	SlotDurationMinutes int
	SlotStepMinutes     int
	MaxOffered          int
	NamePolicy          RetryPolicy
	EmailPolicy         RetryPolicy
}

func (c Config) withDefaults() Config {
	switch c.StartState {
	case StateWelcome, StateCollectingName, StateCollectingSymptoms:
	default:
		c.StartState = StateCollectingSymptoms
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 30 * time.Second
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.SlotDurationMinutes <= 0 {
		c.SlotDurationMinutes = 30
	}
	if c.SlotStepMinutes <= 0 {
		c.SlotStepMinutes = 15
	}
	if c.MaxOffered <= 0 {
		c.MaxOffered = 8
	}
	if c.NamePolicy.MaxAttempts == 0 {
		c.NamePolicy = NamePolicy
	}
	if c.EmailPolicy.MaxAttempts == 0 {
		c.EmailPolicy = EmailPolicy
	}
	return c
}

// Deps are the orchestrator's collaborators. Notifier, Transcript, Archive,
// Metrics and Tracer are optional.
type Deps struct {
	Sessions   SessionStore
	Assistant  Assistant
	Repository Repository
	Calendar   Availability
	Notifier   ProviderNotifier
	Transcript TranscriptRecorder
	Archive    Archiver
	Metrics    *metrics.IntakeMetrics
	Logger     *logging.Logger
	Tracer     trace.Tracer
}

// Orchestrator owns per-channel sessions and drives them through the
// intake states.
type Orchestrator struct {
	sessions   SessionStore
	assistant  Assistant
	repo       Repository
	calendar   Availability
	notifier   ProviderNotifier
	transcript TranscriptRecorder
	archive    Archiver
	metrics    *metrics.IntakeMetrics
	logger     *logging.Logger
	tracer     trace.Tracer

	cfg      Config
	handlers map[State]stepHandler
	locks    *keyedMutex
	now      func() time.Time
	newID    func() string
}

func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if deps.Sessions == nil {
		panic("intake: session store required")
	}
	if deps.Repository == nil {
		panic("intake: repository required")
	}
	if deps.Calendar == nil {
		panic("intake: availability required")
	}
	if deps.Assistant == nil {
		deps.Assistant = nlp.NewRuleAssistant()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("cardio.internal.intake")
	}
	return &Orchestrator{
		sessions:   deps.Sessions,
		assistant:  deps.Assistant,
		repo:       deps.Repository,
		calendar:   deps.Calendar,
		notifier:   deps.Notifier,
		transcript: deps.Transcript,
		archive:    deps.Archive,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		tracer:     deps.Tracer,
		cfg:        cfg.withDefaults(),
		handlers:   defaultHandlers(),
		locks:      newKeyedMutex(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// OnSessionStart registers a fresh session for channelID and returns the
// greeting. On a store failure the generic welcome is still returned with
// the error.
func (o *Orchestrator) OnSessionStart(ctx context.Context, channelID string) (string, error) {
	unlock := o.locks.Lock(channelID)
	defer unlock()

	sess := o.newSession(channelID, o.cfg.StartState)
	if err := o.sessions.Set(ctx, sess); err != nil {
		o.logger.Error("failed to initialize session", "error", err, "channel_id", channelID)
		return greetingWelcome, fmt.Errorf("intake: start session: %w", err)
	}
	o.metrics.SessionOpened()
	o.logger.Info("session started", "channel_id", channelID, "session_id", sess.ID, "state", sess.State())

	switch o.cfg.StartState {
	case StateCollectingName:
		return greetingName, nil
	case StateWelcome:
		return greetingWelcome, nil
	default:
		return greetingSymptoms, nil
	}
}

// OnMessage handles one inbound patient message and returns the reply.
// ok is false when there is nothing to send. Turns for the same channel run
// one at a time and are not cancelled by ctx.
func (o *Orchestrator) OnMessage(ctx context.Context, channelID, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	unlock := o.locks.Lock(channelID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.TurnTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "intake.turn", trace.WithAttributes(attribute.String("channel_id", channelID)))
	defer span.End()

	started := o.now()
	sess, err := o.sessions.Get(ctx, channelID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		sess = o.newSession(channelID, StateWelcome)
		o.metrics.SessionOpened()
	case err != nil:
		span.RecordError(err)
		o.logger.Error("failed to load session", "error", err, "channel_id", channelID)
		return ChannelErrorMessage, true
	}

	state := sess.State()
	span.SetAttributes(attribute.String("state", string(state)), attribute.String("session_id", sess.ID))
	log := o.logger.With("session_id", sess.ID, "channel_id", channelID, "state", string(state))

	o.record(ctx, sess, text, patients.SenderPatient)

	reply := o.dispatch(ctx, &turn{o: o, sess: sess, text: strings.TrimSpace(text), log: log})

	sess.UpdatedAt = o.now()
	if err := o.sessions.Set(ctx, sess); err != nil {
		span.RecordError(err)
		log.Error("failed to save session", "error", err)
	}
	if reply != "" {
		o.record(ctx, sess, reply, patients.SenderBot)
	}

	o.metrics.ObserveTurn(string(state), o.now().Sub(started).Seconds())
	log.Info("turn handled", "next_state", string(sess.State()))
	return reply, reply != ""
}

// OnSessionEnd discards the channel's live session.
func (o *Orchestrator) OnSessionEnd(ctx context.Context, channelID string) {
	unlock := o.locks.Lock(channelID)
	defer unlock()

	if err := o.sessions.Delete(context.WithoutCancel(ctx), channelID); err != nil {
		o.logger.Warn("failed to delete session", "error", err, "channel_id", channelID)
	}
	o.metrics.SessionClosed()
	o.logger.Info("session ended", "channel_id", channelID)
}

// AttachPatient links pre-chat form details to the channel's session,
// creating the session if needed.
func (o *Orchestrator) AttachPatient(ctx context.Context, channelID string, details patients.Details) (*patients.Patient, error) {
	if strings.TrimSpace(details.Email) == "" && strings.TrimSpace(details.Name) == "" {
		return nil, ErrNothingToAttach
	}

	unlock := o.locks.Lock(channelID)
	defer unlock()

	details.ChannelID = channelID
	patient, err := o.repo.UpsertPatient(ctx, details)
	if err != nil {
		o.metrics.ObserveCollaboratorFailure("persistence", "upsert_patient")
		return nil, fmt.Errorf("intake: attach patient: %w", err)
	}

	sess, err := o.sessions.Get(ctx, channelID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("intake: attach patient: %w", err)
		}
		sess = o.newSession(channelID, o.cfg.StartState)
	}
	sess.Patient = *patient
	sess.UpdatedAt = o.now()
	if err := o.sessions.Set(ctx, sess); err != nil {
		return nil, fmt.Errorf("intake: attach patient: %w", err)
	}
	o.logger.Info("patient attached", "channel_id", channelID, "patient_id", patient.ID)
	return patient, nil
}

// Session returns a copy of the live session for channelID.
func (o *Orchestrator) Session(ctx context.Context, channelID string) (*Session, error) {
	return o.sessions.Get(ctx, channelID)
}

func (o *Orchestrator) newSession(channelID string, state State) *Session {
	step, err := stepFor(state)
	if err != nil {
		step = &SymptomStep{}
	}
	now := o.now()
	return &Session{
		ID:        o.newID(),
		ChannelID: channelID,
		Patient:   patients.Patient{ChannelID: channelID},
		Step:      step,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, t *turn) string {
	h, ok := o.handlers[t.sess.State()]
	if !ok {
		t.log.Error("no handler for state")
		return o.genericError(ctx)
	}
	return h.Handle(ctx, t)
}

// record stores a transcript line once the patient has an ID.
func (o *Orchestrator) record(ctx context.Context, sess *Session, message, sender string) {
	if o.transcript == nil || sess.Patient.ID == "" {
		return
	}
	do(ctx, o, "persistence", "save_chat_message", func(ctx context.Context) error {
		return o.transcript.SaveChatMessage(ctx, sess.Patient.ID, message, sender, "text")
	})
}

func (o *Orchestrator) collaboratorFailed(collaborator, op string, err error) {
	o.metrics.ObserveCollaboratorFailure(collaborator, op)
	o.logger.Warn("collaborator call failed", "collaborator", collaborator, "op", op, "error", err)
}

func (o *Orchestrator) genericError(ctx context.Context) string {
	return call(ctx, o, "nlp", "generic_error", o.assistant.GenericErrorMessage).Or(nlp.FallbackErrorMessage)
}
