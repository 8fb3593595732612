package patients

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used in development and tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[string]*Patient
	symptoms     map[string]Symptom
	complaints   map[string][]CaseSnapshot
	appointments map[string][]Appointment
	nextSymptom  int64
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[string]*Patient),
		symptoms:     make(map[string]Symptom),
		complaints:   make(map[string][]CaseSnapshot),
		appointments: make(map[string][]Appointment),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) UpsertPatient(_ context.Context, details Details) (*Patient, error) {
	details = trimDetails(details)
	if details.Email == "" && details.ChannelID == "" {
		return nil, ErrMissingIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *Patient
	for _, p := range r.patients {
		if details.Email != "" && p.Email == details.Email {
			existing = p
			break
		}
		if details.Email == "" && p.ChannelID == details.ChannelID {
			existing = p
			break
		}
	}

	now := r.now()
	if existing == nil {
		existing = &Patient{ID: uuid.NewString(), Email: details.Email, CreatedAt: now}
		r.patients[existing.ID] = existing
	}
	if details.ChannelID != "" {
		existing.ChannelID = details.ChannelID
	}
	if details.Name != "" {
		existing.Name = details.Name
	}
	if details.Phone != "" {
		existing.Phone = details.Phone
	}
	existing.UpdatedAt = now

	cp := *existing
	return &cp, nil
}

func (r *MemoryRepository) SaveChiefComplaint(_ context.Context, patientID string, snapshot CaseSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[patientID]; !ok {
		return ErrPatientNotFound
	}
	r.complaints[patientID] = append(r.complaints[patientID], snapshot)
	return nil
}

func (r *MemoryRepository) SaveAppointment(_ context.Context, patientID, externalEventID string, scheduledTime time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[patientID]; !ok {
		return nil, ErrPatientNotFound
	}
	appt := Appointment{
		ID:              uuid.NewString(),
		PatientID:       patientID,
		ExternalEventID: externalEventID,
		ScheduledTime:   scheduledTime,
		Status:          AppointmentStatusScheduled,
		CreatedAt:       r.now(),
	}
	r.appointments[patientID] = append(r.appointments[patientID], appt)
	return &appt, nil
}

func (r *MemoryRepository) UpdateCaseSnapshot(_ context.Context, patientID string, snapshot CaseSnapshot, appointmentTime time.Time) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.Symptom = snapshot.Symptom
	p.Responses = snapshot.Responses
	p.Severity = snapshot.Severity
	if !appointmentTime.IsZero() {
		at := appointmentTime
		p.AppointmentTime = &at
	}
	p.UpdatedAt = r.now()
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) UpdateSeverity(_ context.Context, patientID string, snapshot CaseSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[patientID]
	if !ok {
		return ErrPatientNotFound
	}
	p.Severity = snapshot.Severity
	p.Symptom = snapshot.Symptom
	p.Responses = snapshot.Responses
	p.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) ListSymptomCatalog(_ context.Context) ([]Symptom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Symptom, 0, len(r.symptoms))
	for _, s := range r.symptoms {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) UpsertSymptom(_ context.Context, symptom Symptom) (*Symptom, error) {
	if strings.TrimSpace(symptom.Name) == "" {
		return nil, errors.New("patients: symptom name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.symptoms[symptom.Name]; ok {
		symptom.ID = existing.ID
	} else {
		r.nextSymptom++
		symptom.ID = r.nextSymptom
	}
	r.symptoms[symptom.Name] = symptom
	return &symptom, nil
}

func (r *MemoryRepository) ListPatients(_ context.Context, filter Filter) ([]Patient, error) {
	filter = filter.Normalize()
	needle := strings.ToLower(filter.Search)

	r.mu.RLock()
	var out []Patient
	for _, p := range r.patients {
		if filter.Severity != "" && p.Severity != filter.Severity {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Email), needle) &&
			!strings.Contains(strings.ToLower(p.Symptom), needle) {
			continue
		}
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		switch filter.Sort {
		case SortOldest:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case SortName:
			return out[i].Name < out[j].Name
		case SortSeverity:
			if severityRank(out[i].Severity) != severityRank(out[j].Severity) {
				return severityRank(out[i].Severity) < severityRank(out[j].Severity)
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})

	if filter.Offset >= len(out) {
		return []Patient{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Complaints returns the chief complaints stored for a patient.
func (r *MemoryRepository) Complaints(patientID string) []CaseSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CaseSnapshot(nil), r.complaints[patientID]...)
}

// Appointments returns the appointments stored for a patient.
func (r *MemoryRepository) Appointments(patientID string) []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Appointment(nil), r.appointments[patientID]...)
}

// Get returns a copy of a stored patient.
func (r *MemoryRepository) Get(patientID string) (*Patient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[patientID]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}
