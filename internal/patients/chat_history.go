package patients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ChatHistoryStore keeps the transcript of each consultation.
type ChatHistoryStore struct {
	db *sql.DB
}

func NewChatHistoryStore(db *sql.DB) *ChatHistoryStore {
	if db == nil {
		panic("patients: sql db required")
	}
	return &ChatHistoryStore{db: db}
}

// SaveChatMessage appends one transcript line. An unknown patient yields ErrPatientNotFound.
func (s *ChatHistoryStore) SaveChatMessage(ctx context.Context, patientID, message, sender, messageType string) error {
	if strings.TrimSpace(patientID) == "" {
		return ErrPatientNotFound
	}
	if messageType == "" {
		messageType = "text"
	}
	query := `
		INSERT INTO chat_history (patient_id, message, sender, message_type)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, patientID, message, sender, messageType); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrPatientNotFound
		}
		return fmt.Errorf("patients: save chat message failed: %w", err)
	}
	return nil
}

// ListChatHistory returns the latest messages for a patient, newest first.
func (s *ChatHistoryStore) ListChatHistory(ctx context.Context, patientID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, patient_id::text, message, sender, message_type, created_at
		FROM chat_history
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("patients: list chat history failed: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Message, &m.Sender, &m.MessageType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("patients: scan chat message failed: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: iterate chat history failed: %w", err)
	}
	return out, nil
}
