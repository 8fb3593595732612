package patients

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPatientNotFound = errors.New("patients: patient not found")
	ErrSymptomNotFound = errors.New("patients: symptom not found")
	ErrMissingIdentity = errors.New("patients: email or channel id required")
)

// Repository persists patients, consultations and appointments.
type Repository interface {
	UpsertPatient(ctx context.Context, details Details) (*Patient, error)
	SaveChiefComplaint(ctx context.Context, patientID string, snapshot CaseSnapshot) error
	SaveAppointment(ctx context.Context, patientID, externalEventID string, scheduledTime time.Time) (*Appointment, error)
	UpdateCaseSnapshot(ctx context.Context, patientID string, snapshot CaseSnapshot, appointmentTime time.Time) (*Patient, error)
	UpdateSeverity(ctx context.Context, patientID string, snapshot CaseSnapshot) error
	ListSymptomCatalog(ctx context.Context) ([]Symptom, error)
	UpsertSymptom(ctx context.Context, symptom Symptom) (*Symptom, error)
	ListPatients(ctx context.Context, filter Filter) ([]Patient, error)
}
