// internal/checkpoint/keydb_store.go
// 以 KeyDB 單一 key 保存進度

package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bulk-mailer/internal/logger"
)

// KeyDBStore KeyDB 進度儲存 (不設 TTL)
type KeyDBStore struct {
	client *redis.Client
	key    string
	log    *logger.Logger
}

// NewKeyDBStore 建立 KeyDB 進度儲存
func NewKeyDBStore(client *redis.Client, key string, log *logger.Logger) *KeyDBStore {
	return &KeyDBStore{
		client: client,
		key:    key,
		log:    log.WithComponent("checkpoint"),
	}
}

// Load 讀取進度
func (s *KeyDBStore) Load(ctx context.Context) int64 {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", s.key).Msg("checkpoint unreadable, starting from 0")
		}
		return 0
	}

	offset, ok := parseOffset(raw)
	if !ok {
		s.log.Warn().Str("key", s.key).Str("content", raw).Msg("checkpoint corrupt, starting from 0")
		return 0
	}
	return offset
}

// Save 寫入進度
func (s *KeyDBStore) Save(ctx context.Context, offset int64) error {
	if err := s.client.Set(ctx, s.key, formatOffset(offset), 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Reset 刪除進度
func (s *KeyDBStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}
