package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFile            string
	DatabaseURL        string
	AdminJWTSecret     string
	CORSAllowedOrigins []string

	SessionStore     string
	SessionTTL       time.Duration
	SessionsTable    string
	IntakeStartState string
	TurnTimeout      time.Duration

	ClinicTimezone      string
	BusinessHoursStart  int
	BusinessHoursEnd    int
	SlotDurationMinutes int
	SlotStepMinutes     int

	LLMProvider    string
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string

	GoogleCalendarCredentials string
	DoctorCalendarID          string

	TelegramBotToken     string
	DoctorTelegramChatID string
	DoctorEmail          string
	NotifyQueueURL       string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	ArchiveBucket string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CatalogCacheTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		SessionStore:     strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "memory"))),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		SessionsTable:    getEnv("SESSIONS_TABLE", "intake_sessions"),
		IntakeStartState: strings.ToUpper(strings.TrimSpace(getEnv("INTAKE_START_STATE", "COLLECTING_SYMPTOMS"))),
		TurnTimeout:      getEnvAsDuration("TURN_TIMEOUT", 30*time.Second),

		ClinicTimezone:      getEnv("CLINIC_TIMEZONE", "UTC"),
		BusinessHoursStart:  getEnvAsInt("BUSINESS_HOURS_START", 9),
		BusinessHoursEnd:    getEnvAsInt("BUSINESS_HOURS_END", 17),
		SlotDurationMinutes: getEnvAsInt("SLOT_DURATION_MINUTES", 30),
		SlotStepMinutes:     getEnvAsInt("SLOT_STEP_MINUTES", 15),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "none"))),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		GoogleCalendarCredentials: getEnv("GOOGLE_CALENDAR_CREDENTIALS", ""),
		DoctorCalendarID:          getEnv("DOCTOR_CALENDAR_ID", ""),

		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		DoctorTelegramChatID: getEnv("DOCTOR_TELEGRAM_CHAT_ID", ""),
		DoctorEmail:          getEnv("DOCTOR_EMAIL", ""),
		NotifyQueueURL:       getEnv("NOTIFY_QUEUE_URL", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Cardio Intake"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CatalogCacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 10*time.Minute),
	}
}

// ClinicLocation resolves ClinicTimezone, falling back to UTC.
func (c *Config) ClinicLocation() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.ClinicTimezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
