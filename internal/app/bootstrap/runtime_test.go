package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cardio-intake/internal/archive"
	"github.com/wolfman30/cardio-intake/internal/calendar"
	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/intake"
	"github.com/wolfman30/cardio-intake/internal/nlp"
	"github.com/wolfman30/cardio-intake/internal/notify"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

func TestBuildRedisClientVerify(t *testing.T) {
	logger := logging.New("error")
	mr := miniredis.RunT(t)

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, false))
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, ConnectPostgresPool(context.Background(), "", logging.New("error")))
}

func TestOpenChatHistoryDBEmptyURL(t *testing.T) {
	db, err := OpenChatHistoryDB("")
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestBuildSessionStore(t *testing.T) {
	logger := logging.New("error")
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, false)
	t.Cleanup(func() { _ = client.Close() })

	cfg := &appconfig.Config{SessionStore: "redis", SessionTTL: time.Hour, SessionsTable: "sessions"}
	assert.IsType(t, &intake.RedisStore{}, BuildSessionStore(cfg, client, nil, logger))

	cfg.SessionStore = "redis"
	assert.IsType(t, &intake.MemoryStore{}, BuildSessionStore(cfg, nil, nil, logger))

	cfg.SessionStore = "dynamodb"
	assert.IsType(t, &intake.MemoryStore{}, BuildSessionStore(cfg, nil, nil, logger))
	assert.IsType(t, &intake.DynamoStore{}, BuildSessionStore(cfg, nil, &aws.Config{Region: "us-east-1"}, logger))

	cfg.SessionStore = "bogus"
	assert.IsType(t, &intake.MemoryStore{}, BuildSessionStore(cfg, nil, nil, logger))
}

func TestNeedsAWS(t *testing.T) {
	assert.False(t, NeedsAWS(nil))
	assert.False(t, NeedsAWS(&appconfig.Config{SessionStore: "memory", LLMProvider: "none"}))
	assert.True(t, NeedsAWS(&appconfig.Config{ArchiveBucket: "cases"}))
	assert.True(t, NeedsAWS(&appconfig.Config{LLMProvider: "bedrock"}))
}

func TestBuildAssistant(t *testing.T) {
	logger := logging.New("error")

	assistant, closer, err := BuildAssistant(context.Background(), &appconfig.Config{LLMProvider: "none"}, nil, logger)
	require.NoError(t, err)
	defer closer()
	assert.IsType(t, &nlp.RuleAssistant{}, assistant)

	_, _, err = BuildAssistant(context.Background(), &appconfig.Config{LLMProvider: "bedrock"}, nil, logger)
	assert.Error(t, err)

	_, _, err = BuildAssistant(context.Background(), &appconfig.Config{LLMProvider: "gemini"}, nil, logger)
	assert.Error(t, err)

	assistant, _, err = BuildAssistant(context.Background(), &appconfig.Config{LLMProvider: "bedrock", BedrockModelID: "anthropic.claude"}, &aws.Config{Region: "us-east-1"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &nlp.LLMAssistant{}, assistant)
}

func TestBuildCalendarDefaultsToMemory(t *testing.T) {
	cfg := &appconfig.Config{BusinessHoursStart: 8, BusinessHoursEnd: 16, ClinicTimezone: "UTC"}
	avail, err := BuildCalendar(context.Background(), cfg, logging.New("error"))
	require.NoError(t, err)
	assert.IsType(t, &calendar.MemoryCalendar{}, avail)

	hours := BusinessHours(cfg)
	assert.Equal(t, 8, hours.Start)
	assert.Equal(t, 16, hours.End)
}

func TestBuildNotifierChannels(t *testing.T) {
	logger := logging.New("error")

	svc := BuildDeliveryNotifier(&appconfig.Config{ClinicTimezone: "UTC"}, nil, logger)
	assert.Equal(t, 0, svc.Len())
	_, err := svc.NotifyProvider(context.Background(), notify.Notice{})
	assert.True(t, errors.Is(err, notify.ErrNoNotifiers))

	svc = BuildDeliveryNotifier(&appconfig.Config{
		Env:                  "development",
		TelegramBotToken:     "token",
		DoctorTelegramChatID: "42",
		DoctorEmail:          "dr@example.com",
	}, nil, logger)
	assert.Equal(t, 2, svc.Len())

	queued := BuildNotifier(&appconfig.Config{NotifyQueueURL: "http://localhost:4566/queue/notices"}, &aws.Config{Region: "us-east-1"}, logger)
	assert.IsType(t, &notify.QueueNotifier{}, queued)
}

func TestBuildArchive(t *testing.T) {
	logger := logging.New("error")
	assert.Nil(t, BuildArchive(&appconfig.Config{}, nil, logger))

	arch := BuildArchive(&appconfig.Config{ArchiveBucket: "cases"}, &aws.Config{Region: "us-east-1"}, logger)
	store, ok := arch.(*archive.Store)
	require.True(t, ok)
	assert.True(t, store.Enabled())
}

func TestIntakeConfig(t *testing.T) {
	cfg := &appconfig.Config{IntakeStartState: "COLLECTING_NAME", ClinicTimezone: "UTC", SlotDurationMinutes: 20}
	ic := IntakeConfig(cfg)
	assert.Equal(t, intake.StateCollectingName, ic.StartState)
	assert.Equal(t, 20, ic.SlotDurationMinutes)

	cfg.IntakeStartState = "BOOKED"
	assert.Equal(t, intake.StateCollectingSymptoms, IntakeConfig(cfg).StartState)
}

func TestWithCatalogCacheInvalidatesOnUpsert(t *testing.T) {
	repo := patients.NewMemoryRepository()
	store := WithCatalogCache(repo, time.Minute)

	_, err := store.UpsertSymptom(context.Background(), patients.Symptom{Name: "Chest Pain"})
	require.NoError(t, err)
	first, err := store.ListSymptomCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = repo.UpsertSymptom(context.Background(), patients.Symptom{Name: "Dizziness"})
	require.NoError(t, err)
	cached, err := store.ListSymptomCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	_, err = store.UpsertSymptom(context.Background(), patients.Symptom{Name: "Palpitations"})
	require.NoError(t, err)
	fresh, err := store.ListSymptomCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, fresh, 3)
}
