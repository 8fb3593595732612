package channel

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// MessageRequest is the body of the HTTP chat fallback.
type MessageRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	Message   string `json:"message" validate:"required,max=4000"`
}

// MessageResponse carries the replies produced for one HTTP message. A new
// session yields the greeting first.
type MessageResponse struct {
	SessionID string   `json:"session_id"`
	Replies   []string `json:"replies"`
}

// HandleMessage is the HTTP fallback for clients that cannot hold a socket.
// Sessions are keyed by session_id and live until they expire from the store.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp := MessageResponse{SessionID: strings.TrimSpace(req.SessionID), Replies: []string{}}
	if resp.SessionID == "" {
		resp.SessionID = "http:" + uuid.NewString()
		greeting, err := h.conv.OnSessionStart(r.Context(), resp.SessionID)
		if err != nil {
			h.logger.Warn("http session start degraded", "error", err, "channel_id", resp.SessionID)
		}
		resp.Replies = append(resp.Replies, greeting)
	}

	if reply, ok := h.conv.OnMessage(r.Context(), resp.SessionID, req.Message); ok {
		resp.Replies = append(resp.Replies, reply)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
