package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// SymptomCatalog lists the symptoms the assistant can interview about.
type SymptomCatalog interface {
	ListSymptomCatalog(ctx context.Context) ([]patients.Symptom, error)
}

type SymptomsHandler struct {
	catalog SymptomCatalog
	logger  *logging.Logger
}

func NewSymptomsHandler(catalog SymptomCatalog, logger *logging.Logger) *SymptomsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SymptomsHandler{catalog: catalog, logger: logger}
}

// ListSymptoms handles GET /api/symptoms.
func (h *SymptomsHandler) ListSymptoms(w http.ResponseWriter, r *http.Request) {
	symptoms, err := h.catalog.ListSymptomCatalog(r.Context())
	if err != nil {
		h.logger.Error("failed to list symptoms", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch symptoms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "symptoms": symptoms})
}
