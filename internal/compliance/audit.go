// Package compliance records who looked at patient health information.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventPatientsListed is logged when staff list or search patients.
	EventPatientsListed AuditEventType = "phi.patients_listed"
	// EventChatHistoryViewed is logged when staff open a patient's transcript.
	EventChatHistoryViewed AuditEventType = "phi.chat_history_viewed"
	// EventAppointmentCancelled is logged when staff cancel a booked visit.
	EventAppointmentCancelled AuditEventType = "phi.appointment_cancelled"
	// EventAccessDenied is logged when a staff request is rejected.
	EventAccessDenied AuditEventType = "security.access_denied"
)

// AuditEvent represents an immutable compliance audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	ActorID   string          `json:"actor_id"`
	ActorRole string          `json:"actor_role,omitempty"`
	PatientID string          `json:"patient_id,omitempty"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Status    int             `json:"status"`
	RequestID string          `json:"request_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditService handles compliance audit logging.
type AuditService struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	if db == nil {
		panic("compliance: db required")
	}
	return &AuditService{db: db, now: time.Now}
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, actor_id, actor_role, patient_id,
			method, path, status, request_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.ActorID,
		nullString(event.ActorRole),
		nullString(event.PatientID),
		event.Method,
		event.Path,
		event.Status,
		nullString(event.RequestID),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// ListForPatient returns the newest events touching patientID.
func (s *AuditService) ListForPatient(ctx context.Context, patientID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, actor_id, COALESCE(actor_role, ''), COALESCE(patient_id, ''),
			method, path, status, COALESCE(request_id, ''), details, created_at
		FROM audit_events
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("compliance: list audit events: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var (
			e       AuditEvent
			kind    string
			details []byte
		)
		if err := rows.Scan(&e.ID, &kind, &e.ActorID, &e.ActorRole, &e.PatientID,
			&e.Method, &e.Path, &e.Status, &e.RequestID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: scan audit event: %w", err)
		}
		e.EventType = AuditEventType(kind)
		e.Details = details
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: iterate audit events: %w", err)
	}
	return out, nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
