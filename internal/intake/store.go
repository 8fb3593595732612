package intake

import (
	"context"
	"errors"
)

var ErrSessionNotFound = errors.New("intake: session not found")

// SessionStore is the registry of live sessions keyed by channel ID.
// Implementations must make each call atomic per key.
type SessionStore interface {
	Get(ctx context.Context, channelID string) (*Session, error)
	Set(ctx context.Context, session *Session) error
	Delete(ctx context.Context, channelID string) error
}
