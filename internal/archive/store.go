// Package archive writes finished consultations to S3 as de-identified JSON.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives consultation records to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// NewConsultationRecord builds a de-identified record from a finished case.
func NewConsultationRecord(sessionID string, p patients.Patient, c patients.CaseSnapshot, outcome string, scheduled *time.Time) *ConsultationRecord {
	answers := make([]CategoryAnswer, 0, len(c.Responses))
	for _, group := range c.Responses {
		answers = append(answers, CategoryAnswer{
			Category: group.Category,
			Answers:  append([]string(nil), group.Answers...),
		})
	}
	ScrubAnswers(answers)

	ref := p.Email
	if ref == "" {
		ref = p.ID
	}
	return &ConsultationRecord{
		Version:       "1.0",
		SessionID:     sessionID,
		PatientID:     p.ID,
		PatientRef:    HashIdentity(ref),
		Symptom:       c.Symptom,
		Severity:      string(c.Severity),
		Outcome:       outcome,
		ScheduledTime: scheduled,
		Answers:       answers,
	}
}

// ArchiveConsultation writes the record and appends it to the monthly manifest.
func (s *Store) ArchiveConsultation(ctx context.Context, record *ConsultationRecord) error {
	if !s.Enabled() {
		return nil
	}

	if record.ArchivedAt.IsZero() {
		record.ArchivedAt = s.now().UTC()
	}
	at := record.ArchivedAt

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	key := fmt.Sprintf("consultations/v1/by-date/%d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), record.SessionID)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived consultation to S3", "session_id", record.SessionID, "s3_key", key, "severity", record.Severity, "outcome", record.Outcome)

	entry := ManifestEntry{
		SessionID:  record.SessionID,
		S3Key:      key,
		Symptom:    record.Symptom,
		Severity:   record.Severity,
		Outcome:    record.Outcome,
		ArchivedAt: at.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "session_id", record.SessionID)
	}
	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// S3 has no append, so this is read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now().UTC()
	manifestKey := fmt.Sprintf("consultations/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}
