package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore shares sessions between API replicas.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("intake: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if tracer == nil {
		tracer = otel.Tracer("cardio.internal.intake.sessions")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStore) Get(ctx context.Context, channelID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "intake.session.get", trace.WithAttributes(attribute.String("channel_id", channelID)))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(channelID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("intake: failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("intake: failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Set(ctx context.Context, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "intake.session.set", trace.WithAttributes(
		attribute.String("channel_id", session.ChannelID),
		attribute.String("state", string(session.State())),
	))
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.ChannelID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, channelID string) error {
	ctx, span := s.tracer.Start(ctx, "intake.session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(channelID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(channelID string) string {
	return fmt.Sprintf("intake:session:%s", channelID)
}
