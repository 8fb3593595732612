package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/cardio-intake/internal/calendar"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// EventCanceller removes a booked event from the provider calendar.
type EventCanceller interface {
	CancelEvent(ctx context.Context, eventID string) error
}

type AppointmentsHandler struct {
	calendar EventCanceller
	logger   *logging.Logger
}

func NewAppointmentsHandler(cal EventCanceller, logger *logging.Logger) *AppointmentsHandler {
	if cal == nil {
		panic("handlers: event canceller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{calendar: cal, logger: logger}
}

// CancelEvent handles DELETE /api/doctor/appointments/{eventID}.
func (h *AppointmentsHandler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "event id required")
		return
	}
	if err := h.calendar.CancelEvent(r.Context(), eventID); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.Error("failed to cancel calendar event", "error", err, "event_id", eventID)
		writeError(w, http.StatusBadGateway, "Failed to cancel appointment")
		return
	}
	h.logger.Info("calendar event cancelled", "event_id", eventID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event_id": eventID})
}
