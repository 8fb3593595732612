package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/cardio-intake/internal/compliance"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// AuditRecorder persists audit events.
type AuditRecorder interface {
	LogEvent(ctx context.Context, event compliance.AuditEvent) error
}

// AuditAccess records every staff request behind it as event. It must run
// after AdminJWT so the actor is known. Recording failures are logged and
// never fail the request.
func AuditAccess(recorder AuditRecorder, event compliance.AuditEventType, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := &StaffClaims{}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), auditActorKey, actor)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kind := event
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				kind = compliance.EventAccessDenied
			}
			record := compliance.AuditEvent{
				EventType: kind,
				PatientID: chi.URLParam(r, "patientID"),
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    status,
				RequestID: chimw.GetReqID(r.Context()),
			}
			record.ActorID = actor.Subject
			record.ActorRole = actor.Role
			if record.ActorID == "" {
				record.ActorID = "anonymous"
			}
			if err := recorder.LogEvent(context.WithoutCancel(r.Context()), record); err != nil {
				logger.Error("audit event not recorded", "error", err, "event_type", kind, "path", record.Path)
			}
		})
	}
}
