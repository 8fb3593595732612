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

// Assistant extracts patient details and phrases replies.
type Assistant interface {
	ExtractField(ctx context.Context, text string, field nlp.Field) (string, error)
	IsValidName(name string) bool
	IsValidEmail(email string) bool
	MatchSymptom(ctx context.Context, text string, catalog []string) (string, error)
	RephraseQuestion(ctx context.Context, question string) (string, error)
	TransitionPhrase(ctx context.Context, index, total int) (string, error)
	AcknowledgeSymptom(ctx context.Context, symptom string, hasFollowUps bool) (string, error)
	CompletionMessage(ctx context.Context, patientName string) (string, error)
	GenericErrorMessage(ctx context.Context) (string, error)
}

// Availability finds and books provider calendar slots.
type Availability interface {
	NextAvailableSlots(ctx context.Context, tier severity.Level, q calendar.SlotQuery) ([]time.Time, error)
	Book(ctx context.Context, req calendar.EventRequest) (*calendar.Booking, error)
	BookNextAvailable(ctx context.Context, req calendar.EventRequest) (*calendar.Booking, error)
}

// ProviderNotifier tells the cardiologist about a finished consultation.
type ProviderNotifier interface {
	NotifyProvider(ctx context.Context, n notify.Notice) (notify.Receipt, error)
}

// Repository is the persistence the conversation reads and writes.
type Repository interface {
	UpsertPatient(ctx context.Context, details patients.Details) (*patients.Patient, error)
	SaveChiefComplaint(ctx context.Context, patientID string, snapshot patients.CaseSnapshot) error
	SaveAppointment(ctx context.Context, patientID, externalEventID string, scheduledTime time.Time) (*patients.Appointment, error)
	UpdateCaseSnapshot(ctx context.Context, patientID string, snapshot patients.CaseSnapshot, appointmentTime time.Time) (*patients.Patient, error)
	UpdateSeverity(ctx context.Context, patientID string, snapshot patients.CaseSnapshot) error
	ListSymptomCatalog(ctx context.Context) ([]patients.Symptom, error)
}

// TranscriptRecorder stores each chat line once the patient is known.
type TranscriptRecorder interface {
	SaveChatMessage(ctx context.Context, patientID, message, sender, messageType string) error
}

// Archiver keeps a de-identified copy of finished consultations.
type Archiver interface {
	ArchiveConsultation(ctx context.Context, record *archive.ConsultationRecord) error
}
