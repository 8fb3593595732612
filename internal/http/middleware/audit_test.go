package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cardio-intake/internal/compliance"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []compliance.AuditEvent
	err    error
}

func (r *recordingAuditor) LogEvent(_ context.Context, e compliance.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func auditedRouter(auditor AuditRecorder) http.Handler {
	r := chi.NewRouter()
	r.Group(func(g chi.Router) {
		g.Use(AuditAccess(auditor, compliance.EventChatHistoryViewed, logging.New("error")))
		g.Use(AdminJWT("s3cret", RoleDoctor))
		g.Get("/patients/{patientID}/chat", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func doctorToken(t *testing.T, role string) string {
	t.Helper()
	claims := StaffClaims{Role: role, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "dr-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	return token
}

func TestAuditAccessRecordsActorAndPatient(t *testing.T) {
	auditor := &recordingAuditor{}
	req := httptest.NewRequest(http.MethodGet, "/patients/p-42/chat", nil)
	req.Header.Set("Authorization", "Bearer "+doctorToken(t, RoleDoctor))
	rr := httptest.NewRecorder()

	auditedRouter(auditor).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, auditor.events, 1)
	e := auditor.events[0]
	assert.Equal(t, compliance.EventChatHistoryViewed, e.EventType)
	assert.Equal(t, "p-42", e.PatientID)
	assert.Equal(t, http.StatusOK, e.Status)
	assert.Equal(t, "/patients/p-42/chat", e.Path)
	assert.Equal(t, "dr-7", e.ActorID)
	assert.Equal(t, RoleDoctor, e.ActorRole)
}

func TestAuditAccessRecordsDenials(t *testing.T) {
	auditor := &recordingAuditor{err: errors.New("db down")}
	req := httptest.NewRequest(http.MethodGet, "/patients/p-42/chat", nil)
	rr := httptest.NewRecorder()

	auditedRouter(auditor).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Len(t, auditor.events, 1)
	assert.Equal(t, compliance.EventAccessDenied, auditor.events[0].EventType)
	assert.Equal(t, "anonymous", auditor.events[0].ActorID)
}

func TestAuditAccessNilRecorderPassesThrough(t *testing.T) {
	handler := AuditAccess(nil, compliance.EventPatientsListed, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
