package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/intake"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

// PingFunc adapts a plain function to handlers.Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ConnectPostgresPool returns nil when no URL is configured or the database
// cannot be reached.
func ConnectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Error("invalid database url", "error", err)
		return nil
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// OpenChatHistoryDB opens the database/sql handle used for the transcript.
func OpenChatHistoryDB(databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open chat history db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// BuildSessionStore picks the session registry named by SESSION_STORE.
// Unavailable backends fall back to the in-process store.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, awsCfg *aws.Config, logger *logging.Logger) intake.SessionStore {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.SessionStore {
	case "redis":
		if redisClient != nil {
			logger.Info("session store", "backend", "redis")
			return intake.NewRedisStore(redisClient, cfg.SessionTTL, nil)
		}
		logger.Warn("redis session store requested but redis unavailable; using memory")
	case "dynamodb", "dynamo":
		if awsCfg != nil {
			logger.Info("session store", "backend", "dynamodb", "table", cfg.SessionsTable)
			return intake.NewDynamoStore(dynamodb.NewFromConfig(*awsCfg), cfg.SessionsTable, cfg.SessionTTL)
		}
		logger.Warn("dynamodb session store requested but aws config unavailable; using memory")
	case "", "memory":
	default:
		logger.Warn("unknown session store; using memory", "session_store", cfg.SessionStore)
	}
	return intake.NewMemoryStore(cfg.SessionTTL)
}

// NeedsAWS reports whether any configured collaborator talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.SessionStore == "dynamodb" || cfg.SessionStore == "dynamo" ||
		cfg.LLMProvider == "bedrock" ||
		strings.TrimSpace(cfg.NotifyQueueURL) != "" ||
		strings.TrimSpace(cfg.SESFromEmail) != "" ||
		strings.TrimSpace(cfg.ArchiveBucket) != ""
}
