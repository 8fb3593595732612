package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/cardio-intake/internal/archive"
	"github.com/wolfman30/cardio-intake/internal/calendar"
	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/intake"
	"github.com/wolfman30/cardio-intake/internal/nlp"
	"github.com/wolfman30/cardio-intake/internal/notify"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// Store is the persistence surface shared by the conversation and the
// HTTP handlers.
type Store interface {
	intake.Repository
	ListPatients(ctx context.Context, filter patients.Filter) ([]patients.Patient, error)
	UpsertSymptom(ctx context.Context, symptom patients.Symptom) (*patients.Symptom, error)
}

// cachedStore serves the symptom catalog from a CachedCatalog.
type cachedStore struct {
	Store
	catalog *patients.CachedCatalog
}

func (c cachedStore) ListSymptomCatalog(ctx context.Context) ([]patients.Symptom, error) {
	return c.catalog.ListSymptomCatalog(ctx)
}

func (c cachedStore) UpsertSymptom(ctx context.Context, symptom patients.Symptom) (*patients.Symptom, error) {
	saved, err := c.Store.UpsertSymptom(ctx, symptom)
	c.catalog.Invalidate()
	return saved, err
}

// WithCatalogCache wraps store so catalog reads are cached for ttl.
func WithCatalogCache(store Store, ttl time.Duration) Store {
	return cachedStore{Store: store, catalog: patients.NewCachedCatalog(store, ttl)}
}

// BuildAssistant wires the NLP collaborator named by LLM_PROVIDER. With both
// Gemini and Bedrock configured, Bedrock backs up Gemini.
func BuildAssistant(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (intake.Assistant, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var bedrock nlp.LLMClient
	if awsCfg != nil && strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrock = nlp.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg))
	}

	switch cfg.LLMProvider {
	case "gemini":
		gemini, err := nlp.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		closer := func() { _ = gemini.Close() }
		if bedrock != nil {
			logger.Info("nlp assistant", "provider", "gemini", "fallback", "bedrock")
			return nlp.NewLLMAssistant(nlp.NewFallbackLLMClient(gemini, bedrock, logger), cfg.GeminiModel, logger), closer, nil
		}
		logger.Info("nlp assistant", "provider", "gemini", "model", cfg.GeminiModel)
		return nlp.NewLLMAssistant(gemini, cfg.GeminiModel, logger), closer, nil
	case "bedrock":
		if bedrock == nil {
			return nil, noop, fmt.Errorf("bootstrap: bedrock requires BEDROCK_MODEL_ID and aws config")
		}
		logger.Info("nlp assistant", "provider", "bedrock", "model", cfg.BedrockModelID)
		return nlp.NewLLMAssistant(bedrock, cfg.BedrockModelID, logger), noop, nil
	default:
		logger.Info("nlp assistant", "provider", "rules")
		return nlp.NewRuleAssistant(), noop, nil
	}
}

// BusinessHours converts config into the calendar's working window.
func BusinessHours(cfg *appconfig.Config) calendar.BusinessHours {
	return calendar.BusinessHours{
		Start:    cfg.BusinessHoursStart,
		End:      cfg.BusinessHoursEnd,
		Location: cfg.ClinicLocation(),
	}
}

// BuildCalendar returns the Google Calendar collaborator when credentials are
// configured and an in-process calendar otherwise.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (intake.Availability, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.GoogleCalendarCredentials) == "" {
		logger.Warn("google calendar not configured; using in-memory calendar")
		return calendar.NewMemoryCalendar(BusinessHours(cfg)), nil
	}
	svc, err := calendar.NewGoogleService(ctx, cfg.GoogleCalendarCredentials)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("availability", "provider", "google", "calendar_id", cfg.DoctorCalendarID)
	return calendar.NewGoogleCalendar(svc, calendar.GoogleConfig{
		CalendarID:      cfg.DoctorCalendarID,
		Hours:           BusinessHours(cfg),
		DurationMinutes: cfg.SlotDurationMinutes,
		StepMinutes:     cfg.SlotStepMinutes,
	}, logger), nil
}

// BuildDeliveryNotifier fans out to the directly delivering channels:
// Telegram and email (SendGrid, else SES).
func BuildDeliveryNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *notify.Service {
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.ClinicLocation()
	var channels []notify.Notifier

	telegram := notify.NewTelegramNotifier(notify.TelegramConfig{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.DoctorTelegramChatID,
		Location: loc,
	}, &http.Client{Timeout: 10 * time.Second}, logger)
	if telegram.Configured() {
		channels = append(channels, telegram)
	}

	if strings.TrimSpace(cfg.DoctorEmail) != "" {
		var sender notify.EmailSender
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sg != nil {
			sender = sg
		} else if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
			sender = notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		} else if cfg.Env == "development" {
			sender = notify.NewStubEmailSender(logger)
		}
		if sender != nil {
			channels = append(channels, notify.NewEmailNotifier(sender, cfg.DoctorEmail, loc, logger))
		}
	}

	svc := notify.NewService(logger, channels...)
	if svc.Len() == 0 {
		logger.Warn("no provider notification channels configured")
	}
	return svc
}

// BuildNotifier enqueues notices when NOTIFY_QUEUE_URL is set and delivers
// inline otherwise.
func BuildNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) intake.ProviderNotifier {
	if awsCfg != nil && strings.TrimSpace(cfg.NotifyQueueURL) != "" {
		if logger != nil {
			logger.Info("provider notifications queued", "queue_url", cfg.NotifyQueueURL)
		}
		return notify.NewQueueNotifier(sqs.NewFromConfig(*awsCfg), cfg.NotifyQueueURL)
	}
	return BuildDeliveryNotifier(cfg, awsCfg, logger)
}

// BuildArchive returns nil when no bucket is configured.
func BuildArchive(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) intake.Archiver {
	if awsCfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return nil
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return archive.NewStore(client, cfg.ArchiveBucket, logger)
}

// IntakeConfig maps env config onto the conversation settings.
func IntakeConfig(cfg *appconfig.Config) intake.Config {
	start, ok := intake.ParseState(cfg.IntakeStartState)
	if !ok {
		start = intake.StateCollectingSymptoms
	}
	return intake.Config{
		StartState:          start,
		TurnTimeout:         cfg.TurnTimeout,
		Location:            cfg.ClinicLocation(),
		SlotDurationMinutes: cfg.SlotDurationMinutes,
		SlotStepMinutes:     cfg.SlotStepMinutes,
	}
}
