package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients, consultations and appointments in Postgres.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository accepts a *pgxpool.Pool or any compatible handle.
func NewPostgresRepository(db db) *PostgresRepository {
	if db == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const patientColumns = `id::text, COALESCE(channel_id, ''), COALESCE(name, ''), COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(severity, ''), COALESCE(symptom, ''),
	COALESCE(responses, '[]'::jsonb), appointment_time, created_at, updated_at`

// UpsertPatient keys on email when present, otherwise on channel id.
func (r *PostgresRepository) UpsertPatient(ctx context.Context, details Details) (*Patient, error) {
	details = trimDetails(details)
	if details.Email == "" && details.ChannelID == "" {
		return nil, ErrMissingIdentity
	}

	if details.Email != "" {
		query := `
			INSERT INTO patients (id, channel_id, name, email, phone)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''))
			ON CONFLICT (email) DO UPDATE SET
				channel_id = COALESCE(EXCLUDED.channel_id, patients.channel_id),
				name = COALESCE(EXCLUDED.name, patients.name),
				phone = COALESCE(EXCLUDED.phone, patients.phone),
				updated_at = now()
			RETURNING ` + patientColumns
		row := r.db.QueryRow(ctx, query, uuid.NewString(), details.ChannelID, details.Name, details.Email, details.Phone)
		p, err := scanPatient(row)
		if err != nil {
			return nil, fmt.Errorf("patients: upsert by email failed: %w", err)
		}
		return p, nil
	}

	update := `
		UPDATE patients SET
			name = COALESCE(NULLIF($2, ''), name),
			phone = COALESCE(NULLIF($3, ''), phone),
			updated_at = now()
		WHERE channel_id = $1
		RETURNING ` + patientColumns
	p, err := scanPatient(r.db.QueryRow(ctx, update, details.ChannelID, details.Name, details.Phone))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patients: update by channel failed: %w", err)
	}

	insert := `
		INSERT INTO patients (id, channel_id, name, phone)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING ` + patientColumns
	p, err = scanPatient(r.db.QueryRow(ctx, insert, uuid.NewString(), details.ChannelID, details.Name, details.Phone))
	if err != nil {
		return nil, fmt.Errorf("patients: insert failed: %w", err)
	}
	return p, nil
}

// SaveChiefComplaint records the symptom interview for a patient.
func (r *PostgresRepository) SaveChiefComplaint(ctx context.Context, patientID string, snapshot CaseSnapshot) error {
	responses, err := json.Marshal(nonNilResponses(snapshot.Responses))
	if err != nil {
		return fmt.Errorf("patients: marshal responses: %w", err)
	}
	query := `
		INSERT INTO patient_symptoms (patient_id, symptom_name, responses, severity)
		VALUES ($1, $2, $3, NULLIF($4, ''))
	`
	if _, err := r.db.Exec(ctx, query, patientID, snapshot.Symptom, responses, string(snapshot.Severity)); err != nil {
		return fmt.Errorf("patients: save chief complaint failed: %w", err)
	}
	return nil
}

// SaveAppointment stores a booked visit at exactly scheduledTime.
func (r *PostgresRepository) SaveAppointment(ctx context.Context, patientID, externalEventID string, scheduledTime time.Time) (*Appointment, error) {
	appt := &Appointment{
		ID:              uuid.NewString(),
		PatientID:       patientID,
		ExternalEventID: externalEventID,
		ScheduledTime:   scheduledTime,
		Status:          AppointmentStatusScheduled,
	}
	query := `
		INSERT INTO appointments (id, patient_id, calendar_event_id, scheduled_time, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, appt.ID, patientID, externalEventID, scheduledTime, appt.Status).Scan(&appt.CreatedAt); err != nil {
		return nil, fmt.Errorf("patients: save appointment failed: %w", err)
	}
	return appt, nil
}

// UpdateCaseSnapshot writes symptom, responses, severity and appointment time onto the patient row.
func (r *PostgresRepository) UpdateCaseSnapshot(ctx context.Context, patientID string, snapshot CaseSnapshot, appointmentTime time.Time) (*Patient, error) {
	responses, err := json.Marshal(nonNilResponses(snapshot.Responses))
	if err != nil {
		return nil, fmt.Errorf("patients: marshal responses: %w", err)
	}
	var at *time.Time
	if !appointmentTime.IsZero() {
		at = &appointmentTime
	}
	query := `
		UPDATE patients SET
			symptom = $2,
			responses = $3,
			severity = NULLIF($4, ''),
			appointment_time = COALESCE($5, appointment_time),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + patientColumns
	p, err := scanPatient(r.db.QueryRow(ctx, query, patientID, snapshot.Symptom, responses, string(snapshot.Severity), at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: update case snapshot failed: %w", err)
	}
	return p, nil
}

// UpdateSeverity stores the classified tier together with the case it was derived from.
func (r *PostgresRepository) UpdateSeverity(ctx context.Context, patientID string, snapshot CaseSnapshot) error {
	responses, err := json.Marshal(nonNilResponses(snapshot.Responses))
	if err != nil {
		return fmt.Errorf("patients: marshal responses: %w", err)
	}
	query := `
		UPDATE patients SET severity = $2, symptom = $3, responses = $4, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, patientID, string(snapshot.Severity), snapshot.Symptom, responses)
	if err != nil {
		return fmt.Errorf("patients: update severity failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// ListSymptomCatalog returns every symptom ordered by name.
func (r *PostgresRepository) ListSymptomCatalog(ctx context.Context) ([]Symptom, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, follow_up_questions FROM symptoms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("patients: list symptoms failed: %w", err)
	}
	defer rows.Close()

	var out []Symptom
	for rows.Next() {
		var (
			s   Symptom
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.Name, &raw); err != nil {
			return nil, fmt.Errorf("patients: scan symptom failed: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &s.FollowUps); err != nil {
				return nil, fmt.Errorf("patients: decode follow-ups for %q: %w", s.Name, err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: iterate symptoms failed: %w", err)
	}
	return out, nil
}

// UpsertSymptom inserts or replaces a catalog entry by name.
func (r *PostgresRepository) UpsertSymptom(ctx context.Context, symptom Symptom) (*Symptom, error) {
	if strings.TrimSpace(symptom.Name) == "" {
		return nil, errors.New("patients: symptom name required")
	}
	groups := symptom.FollowUps
	if groups == nil {
		groups = []QuestionGroup{}
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("patients: marshal follow-ups: %w", err)
	}
	query := `
		INSERT INTO symptoms (name, follow_up_questions)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET follow_up_questions = EXCLUDED.follow_up_questions
		RETURNING id
	`
	out := symptom
	if err := r.db.QueryRow(ctx, query, symptom.Name, raw).Scan(&out.ID); err != nil {
		return nil, fmt.Errorf("patients: upsert symptom failed: %w", err)
	}
	return &out, nil
}

// ListPatients returns patients for the provider dashboard.
func (r *PostgresRepository) ListPatients(ctx context.Context, filter Filter) ([]Patient, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR symptom ILIKE $%d)", len(args), len(args), len(args)))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}

	query := "SELECT " + patientColumns + " FROM patients"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(filter.Sort)
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("patients: list patients failed: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("patients: scan patient failed: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: iterate patients failed: %w", err)
	}
	return out, nil
}

func orderClause(sort string) string {
	switch sort {
	case SortOldest:
		return "created_at ASC"
	case SortName:
		return "name ASC NULLS LAST, created_at DESC"
	case SortSeverity:
		return "CASE severity WHEN 'CRITICAL' THEN 0 WHEN 'MEDIUM' THEN 1 WHEN 'LOW' THEN 2 ELSE 3 END, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p         Patient
		level     string
		responses []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.ChannelID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&level,
		&p.Symptom,
		&responses,
		&p.AppointmentTime,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Severity, _ = parseStoredSeverity(level)
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &p.Responses); err != nil {
			return nil, fmt.Errorf("decode responses: %w", err)
		}
	}
	return &p, nil
}

func nonNilResponses(in []CategoryAnswers) []CategoryAnswers {
	if in == nil {
		return []CategoryAnswers{}
	}
	return in
}

func trimDetails(d Details) Details {
	return Details{
		ChannelID: strings.TrimSpace(d.ChannelID),
		Name:      strings.TrimSpace(d.Name),
		Email:     strings.ToLower(strings.TrimSpace(d.Email)),
		Phone:     strings.TrimSpace(d.Phone),
	}
}
