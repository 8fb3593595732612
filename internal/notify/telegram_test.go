package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/internal/severity"
)

func sampleNotice(t *testing.T) Notice {
	t.Helper()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return Notice{
		Patient: patients.Patient{ID: "p-1", Name: "Jane <Doe>", Email: "jane@example.com"},
		Case: patients.CaseSnapshot{
			Symptom:  "Chest Pain / Discomfort",
			Severity: severity.Critical,
			Responses: []patients.CategoryAnswers{
				{Category: "red_flags", Answers: []string{"yes"}},
				{Category: "pain_quality", Answers: []string{"crushing & heavy"}},
			},
		},
		ScheduledTime: &at,
		RequestedAt:   at.Add(-2 * time.Hour),
	}
}

func TestFormatTelegramHTML(t *testing.T) {
	msg := FormatTelegramHTML(sampleNotice(t), time.UTC)

	assert.Contains(t, msg, "🏥 <b>NEW PATIENT CONSULTATION</b>")
	assert.Contains(t, msg, "• Name: Jane &lt;Doe&gt;")
	assert.Contains(t, msg, "🚦 <b>Severity:</b> 🔴 CRITICAL!!! <i>(CRITICAL)</i>")
	assert.Contains(t, msg, "<b>Red Flags:</b>\n1. yes\n")
	assert.Contains(t, msg, "1. crushing &amp; heavy")
	assert.Contains(t, msg, "Sun, Jun 1 2025 at 10:00 AM UTC")
}

func TestFormatTelegramHTMLWithoutAppointment(t *testing.T) {
	n := sampleNotice(t)
	n.ScheduledTime = nil
	n.Case.Severity = ""
	msg := FormatTelegramHTML(n, nil)
	assert.Contains(t, msg, "staff follow-up required")
	assert.Contains(t, msg, "<i>(LOW)</i>")
	assert.NotContains(t, msg, "calendar invitation")
}

func TestTelegramNotifierPostsHTML(t *testing.T) {
	var got sendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier(TelegramConfig{BotToken: "tok", ChatID: "99", BaseURL: srv.URL}, srv.Client(), nil)
	receipt, err := notifier.NotifyProvider(context.Background(), sampleNotice(t))
	require.NoError(t, err)

	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "99", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
	assert.Equal(t, Receipt{Channel: "telegram", MessageID: "42"}, receipt)
}

func TestTelegramNotifierSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier(TelegramConfig{BotToken: "tok", ChatID: "99", BaseURL: srv.URL}, srv.Client(), nil)
	_, err := notifier.NotifyProvider(context.Background(), sampleNotice(t))
	assert.ErrorContains(t, err, "chat not found")
}

func TestTelegramNotifierNotConfigured(t *testing.T) {
	notifier := NewTelegramNotifier(TelegramConfig{BotToken: "tok"}, nil, nil)
	assert.False(t, notifier.Configured())
	_, err := notifier.NotifyProvider(context.Background(), sampleNotice(t))
	assert.ErrorIs(t, err, ErrTelegramNotConfigured)
}
