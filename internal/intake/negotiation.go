package intake

import (
	"context"
	"time"

	"github.com/wolfman30/cardio-intake/internal/archive"
	"github.com/wolfman30/cardio-intake/internal/calendar"
	"github.com/wolfman30/cardio-intake/internal/nlp"
	"github.com/wolfman30/cardio-intake/internal/notify"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/internal/severity"
)

const (
	outcomeBooked   = archive.OutcomeBooked
	outcomeDeclined = archive.OutcomeDeclined
	outcomeManual   = archive.OutcomeManualFollowUp
)

// complete closes the interview: it stores the chief complaint, classifies
// the case and opens slot negotiation. The session is COMPLETED before any
// side effect runs so a crash cannot replay the interview.
func (o *Orchestrator) complete(ctx context.Context, t *turn, snapshot patients.CaseSnapshot) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("completion panicked", "panic", r)
			t.sess.Step = &CompletedStep{Case: &snapshot}
			reply = ultimateFallback(t.sess.Patient.Name)
		}
	}()

	t.sess.Step = &CompletedStep{Case: &snapshot}
	if err := o.sessions.Set(ctx, t.sess); err != nil {
		t.log.Warn("failed to checkpoint completed session", "error", err)
	}

	if t.sess.Patient.ID == "" && !o.savePatient(ctx, t.sess) {
		return o.genericError(ctx)
	}
	patientID := t.sess.Patient.ID

	saved := do(ctx, o, "persistence", "save_chief_complaint", func(ctx context.Context) error {
		return o.repo.SaveChiefComplaint(ctx, patientID, snapshot)
	})
	if !saved.Ok() {
		return o.genericError(ctx)
	}

	level := severity.Classify(snapshot.Symptom, snapshot.ResponseMap())
	snapshot.Severity = level
	o.metrics.ObserveSeverity(level.Lower())
	t.log.Info("case classified", "symptom", snapshot.Symptom, "severity", string(level))
	do(ctx, o, "persistence", "update_severity", func(ctx context.Context) error {
		return o.repo.UpdateSeverity(ctx, patientID, snapshot)
	})

	name := t.sess.Patient.Name
	completion := call(ctx, o, "nlp", "completion_message", func(ctx context.Context) (string, error) {
		return o.assistant.CompletionMessage(ctx, name)
	}).Or(nlp.FallbackCompletionMessage(name))

	return completion + o.negotiate(ctx, t, snapshot)
}

// negotiate picks the first booking strategy that yields a slot.
func (o *Orchestrator) negotiate(ctx context.Context, t *turn, snapshot patients.CaseSnapshot) string {
	level := snapshot.Severity
	if level == severity.Critical || level == severity.Medium {
		if slots := o.findSlots(ctx, level, 1, time.Time{}); len(slots) == 1 {
			proposed := slots[0]
			t.sess.Step = &ConfirmSlotStep{Case: snapshot, Proposed: &proposed}
			return proposalMessage(proposed, o.cfg.Location)
		}
	}

	if slots := o.findSlots(ctx, level, o.cfg.MaxOffered, time.Time{}); len(slots) > 0 {
		t.sess.Step = &SelectSlotStep{Case: snapshot, Offered: slots}
		return offerMessage(slots, o.cfg.Location)
	}

	booking := call(ctx, o, "calendar", "book_next_available", func(ctx context.Context) (*calendar.Booking, error) {
		return o.calendar.BookNextAvailable(ctx, o.eventRequest(t.sess, snapshot, time.Time{}))
	})
	if booking.Ok() && booking.Value != nil {
		return o.finalizeBooking(ctx, t, snapshot, booking.Value)
	}
	return "\n\n" + o.finishWithoutAppointment(ctx, t, snapshot, outcomeManual)
}

// offerAlternatives lists up to MaxOffered slots, excluding skip.
func (o *Orchestrator) offerAlternatives(ctx context.Context, t *turn, snapshot patients.CaseSnapshot, skip *time.Time) string {
	var exclude time.Time
	if skip != nil {
		exclude = *skip
	}
	slots := o.findSlots(ctx, snapshot.Severity, o.cfg.MaxOffered, exclude)
	if len(slots) == 0 {
		return o.finishWithoutAppointment(ctx, t, snapshot, outcomeManual)
	}
	t.sess.Step = &SelectSlotStep{Case: snapshot, Offered: slots}
	return alternativesMessage(slots, o.cfg.Location)
}

// findSlots queries availability, dropping exclude when it is set.
func (o *Orchestrator) findSlots(ctx context.Context, level severity.Level, limit int, exclude time.Time) []time.Time {
	query := calendar.SlotQuery{
		DurationMinutes: o.cfg.SlotDurationMinutes,
		StepMinutes:     o.cfg.SlotStepMinutes,
		Limit:           limit,
	}
	if !exclude.IsZero() {
		query.Limit++
	}
	slots := call(ctx, o, "calendar", "next_available_slots", func(ctx context.Context) ([]time.Time, error) {
		return o.calendar.NextAvailableSlots(ctx, level, query)
	}).Or(nil)

	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		if !exclude.IsZero() && s.Equal(exclude) {
			continue
		}
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// book reserves at. When the calendar refuses, the patient is asked to pick
// from remaining, or from a fresh query when nothing remains.
func (o *Orchestrator) book(ctx context.Context, t *turn, snapshot patients.CaseSnapshot, at time.Time, remaining []time.Time) string {
	booking := call(ctx, o, "calendar", "book", func(ctx context.Context) (*calendar.Booking, error) {
		return o.calendar.Book(ctx, o.eventRequest(t.sess, snapshot, at))
	})
	if booking.Ok() && booking.Value != nil {
		booking.Value.Start = at
		return o.finalizeBooking(ctx, t, snapshot, booking.Value)
	}

	t.log.Warn("slot booking failed", "slot", at.UTC().Format(time.RFC3339))
	if len(remaining) == 0 {
		remaining = o.findSlots(ctx, snapshot.Severity, o.cfg.MaxOffered, at)
	}
	if len(remaining) == 0 {
		return o.finishWithoutAppointment(ctx, t, snapshot, outcomeManual)
	}
	t.sess.Step = &SelectSlotStep{Case: snapshot, Offered: remaining}
	return bookingFailedMessage(at, remaining, o.cfg.Location)
}

// finalizeBooking runs the post-event steps, each tolerating failure.
func (o *Orchestrator) finalizeBooking(ctx context.Context, t *turn, snapshot patients.CaseSnapshot, booking *calendar.Booking) string {
	at := booking.Start
	patientID := t.sess.Patient.ID

	do(ctx, o, "persistence", "save_appointment", func(ctx context.Context) error {
		_, err := o.repo.SaveAppointment(ctx, patientID, booking.EventID, at)
		return err
	})
	updated := call(ctx, o, "persistence", "update_case_snapshot", func(ctx context.Context) (*patients.Patient, error) {
		return o.repo.UpdateCaseSnapshot(ctx, patientID, snapshot, at)
	})
	if updated.Ok() && updated.Value != nil {
		t.sess.Patient = *updated.Value
	}

	notified := o.notifyProvider(ctx, t, snapshot, &at)
	o.archiveCase(ctx, t, snapshot, outcomeBooked, &at)
	o.metrics.ObserveBooking(outcomeBooked)
	t.log.Info("appointment booked", "event_id", booking.EventID, "slot", at.UTC().Format(time.RFC3339))

	t.sess.Step = &CompletedStep{Case: &snapshot, Appointment: &at}
	return bookedMessage(at, o.cfg.Location) + notifiedMessage(notified)
}

// finishWithoutAppointment completes the session for staff follow-up.
func (o *Orchestrator) finishWithoutAppointment(ctx context.Context, t *turn, snapshot patients.CaseSnapshot, outcome string) string {
	notified := o.notifyProvider(ctx, t, snapshot, nil)
	o.archiveCase(ctx, t, snapshot, outcome, nil)
	o.metrics.ObserveBooking(outcome)
	t.log.Info("consultation completed without appointment", "outcome", outcome)

	t.sess.Step = &CompletedStep{Case: &snapshot}
	return manualFollowUp + notifiedMessage(notified)
}

func (o *Orchestrator) notifyProvider(ctx context.Context, t *turn, snapshot patients.CaseSnapshot, at *time.Time) bool {
	if o.notifier == nil {
		return false
	}
	notice := notify.Notice{
		Patient:       t.sess.Patient,
		Case:          snapshot,
		ScheduledTime: at,
		RequestedAt:   o.now(),
	}
	return call(ctx, o, "notifier", "notify_provider", func(ctx context.Context) (notify.Receipt, error) {
		return o.notifier.NotifyProvider(ctx, notice)
	}).Ok()
}

func (o *Orchestrator) archiveCase(ctx context.Context, t *turn, snapshot patients.CaseSnapshot, outcome string, at *time.Time) {
	if o.archive == nil {
		return
	}
	record := archive.NewConsultationRecord(t.sess.ID, t.sess.Patient, snapshot, outcome, at)
	do(ctx, o, "archive", "archive_consultation", func(ctx context.Context) error {
		return o.archive.ArchiveConsultation(ctx, record)
	})
}

func (o *Orchestrator) eventRequest(sess *Session, snapshot patients.CaseSnapshot, start time.Time) calendar.EventRequest {
	return calendar.EventRequest{
		Patient:  sess.Patient,
		Case:     snapshot,
		Start:    start,
		Duration: time.Duration(o.cfg.SlotDurationMinutes) * time.Minute,
	}
}
