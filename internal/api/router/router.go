package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/cardio-intake/internal/channel"
	"github.com/wolfman30/cardio-intake/internal/compliance"
	"github.com/wolfman30/cardio-intake/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/cardio-intake/internal/http/middleware"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	Symptoms           *handlers.SymptomsHandler
	Patients           *handlers.PatientsHandler
	ChatHistory        *handlers.ChatHistoryHandler
	Appointments       *handlers.AppointmentsHandler
	Chat               *channel.Handler
	ChatLimiter        *httpmiddleware.RateLimiter
	Audit              httpmiddleware.AuditRecorder
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, cfg.Logger)
	}
	r.Get("/health", health.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// The socket is long-lived; compression and JSON content negotiation
	// stay off this route.
	if cfg.Chat != nil {
		r.Get("/ws", cfg.Chat.HandleWebSocket)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Compress(5))

		if cfg.Symptoms != nil {
			api.Get("/symptoms", cfg.Symptoms.ListSymptoms)
		}
		if cfg.Patients != nil {
			api.Post("/patient", cfg.Patients.UpsertPatient)
		}
		if cfg.Chat != nil {
			api.Group(func(chat chi.Router) {
				if cfg.ChatLimiter != nil {
					chat.Use(cfg.ChatLimiter.Middleware)
				}
				chat.Post("/chat/message", cfg.Chat.HandleMessage)
			})
		}

		// Audit wraps auth so rejected requests are recorded too.
		staff := httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.RoleDoctor, httpmiddleware.RoleAdmin)
		audited := func(event compliance.AuditEventType) func(http.Handler) http.Handler {
			return httpmiddleware.AuditAccess(cfg.Audit, event, cfg.Logger)
		}
		api.Route("/doctor", func(doctor chi.Router) {
			if cfg.Patients != nil {
				doctor.With(audited(compliance.EventPatientsListed), staff).Get("/patients", cfg.Patients.ListPatients)
			}
			if cfg.ChatHistory != nil {
				doctor.With(audited(compliance.EventChatHistoryViewed), staff).Get("/patients/{patientID}/chat", cfg.ChatHistory.GetChatHistory)
			}
			if cfg.Appointments != nil {
				doctor.With(audited(compliance.EventAppointmentCancelled), staff).Delete("/appointments/{eventID}", cfg.Appointments.CancelEvent)
			}
		})
	})

	return r
}
