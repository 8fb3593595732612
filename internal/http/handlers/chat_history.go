package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// ChatHistoryReader loads stored transcripts.
type ChatHistoryReader interface {
	ListChatHistory(ctx context.Context, patientID string, limit int) ([]patients.ChatMessage, error)
}

type ChatHistoryHandler struct {
	history ChatHistoryReader
	logger  *logging.Logger
}

func NewChatHistoryHandler(history ChatHistoryReader, logger *logging.Logger) *ChatHistoryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHistoryHandler{history: history, logger: logger}
}

// GetChatHistory handles GET /api/doctor/patients/{patientID}/chat.
func (h *ChatHistoryHandler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		writeError(w, http.StatusBadRequest, "patient id required")
		return
	}
	msgs, err := h.history.ListChatHistory(r.Context(), patientID, atoiOr(r.URL.Query().Get("limit"), 50))
	if err != nil {
		h.logger.Error("failed to load chat history", "error", err, "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch chat history")
		return
	}
	if msgs == nil {
		msgs = []patients.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}
