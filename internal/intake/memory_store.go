package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process, encoded as JSON so callers never
// share a *Session with the registry.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &MemoryStore{cache: cache.New(ttl, ttl/2), ttl: ttl}
}

func (m *MemoryStore) Get(_ context.Context, channelID string) (*Session, error) {
	raw, ok := m.cache.Get(channelID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	var sess Session
	if err := json.Unmarshal(raw.([]byte), &sess); err != nil {
		return nil, fmt.Errorf("intake: decode session %s: %w", channelID, err)
	}
	return &sess, nil
}

func (m *MemoryStore) Set(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("intake: encode session %s: %w", session.ChannelID, err)
	}
	m.cache.Set(session.ChannelID, data, m.ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, channelID string) error {
	m.cache.Delete(channelID)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}
