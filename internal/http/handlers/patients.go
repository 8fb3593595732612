package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/internal/severity"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

var validate = validator.New()

// PatientStore is the persistence behind the patient endpoints.
type PatientStore interface {
	UpsertPatient(ctx context.Context, details patients.Details) (*patients.Patient, error)
	ListPatients(ctx context.Context, filter patients.Filter) ([]patients.Patient, error)
}

type PatientsHandler struct {
	store  PatientStore
	logger *logging.Logger
}

func NewPatientsHandler(store PatientStore, logger *logging.Logger) *PatientsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientsHandler{store: store, logger: logger}
}

// PatientRequest is the pre-chat registration form.
type PatientRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"omitempty,max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

// UpsertPatient handles POST /api/patient.
func (h *PatientsHandler) UpsertPatient(w http.ResponseWriter, r *http.Request) {
	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient details")
		return
	}

	patient, err := h.store.UpsertPatient(r.Context(), patients.Details{
		Name:  req.FullName,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.logger.Error("failed to upsert patient", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create/update patient")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "patient": patient})
}

// ListPatients handles GET /api/doctor/patients with search, severity, sort,
// limit and offset query parameters.
func (h *PatientsHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := patients.Filter{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
		Limit:  atoiOr(q.Get("limit"), 100),
		Offset: atoiOr(q.Get("offset"), 0),
	}
	if raw := strings.TrimSpace(q.Get("severity")); raw != "" && !strings.EqualFold(raw, "all") {
		level, ok := severity.Parse(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "severity must be low, medium or critical")
			return
		}
		filter.Severity = level
	}

	list, err := h.store.ListPatients(r.Context(), filter.Normalize())
	if err != nil {
		h.logger.Error("failed to list patients", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch patients")
		return
	}
	if list == nil {
		list = []patients.Patient{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "patients": list})
}

func atoiOr(raw string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return n
	}
	return fallback
}
