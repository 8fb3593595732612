package archive

import "time"

// Outcomes recorded for a finished consultation.
const (
	OutcomeBooked         = "booked"
	OutcomeDeclined       = "declined_offer"
	OutcomeManualFollowUp = "manual_follow_up"
)

// ConsultationRecord is the JSON document archived per finished consultation.
type ConsultationRecord struct {
	Version       string           `json:"version"` // "1.0"
	SessionID     string           `json:"session_id"`
	PatientID     string           `json:"patient_id,omitempty"`
	PatientRef    string           `json:"patient_ref"` // sha256 of normalized email
	ArchivedAt    time.Time        `json:"archived_at"`
	Symptom       string           `json:"symptom"`
	Severity      string           `json:"severity"`
	Outcome       string           `json:"outcome"`
	ScheduledTime *time.Time       `json:"scheduled_time,omitempty"`
	Answers       []CategoryAnswer `json:"answers"`
}

// CategoryAnswer holds scrubbed answers for one follow-up category.
type CategoryAnswer struct {
	Category string   `json:"category"`
	Answers  []string `json:"answers"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	SessionID  string `json:"session_id"`
	S3Key      string `json:"s3_key"`
	Symptom    string `json:"symptom"`
	Severity   string `json:"severity"`
	Outcome    string `json:"outcome"`
	ArchivedAt string `json:"archived_at"`
}
