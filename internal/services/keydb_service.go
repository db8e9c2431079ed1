// internal/services/keydb_service.go
// KeyDB 狀態快取服務

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// ErrStatusNotFound 快取中沒有該收件人的狀態
var ErrStatusNotFound = errors.New("status not found")

// KeyDBService KeyDB 服務
type KeyDBService struct {
	client *redis.Client
	ttl    time.Duration
}

// NewKeyDBClient 建立並測試 KeyDB 連線
func NewKeyDBClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.KeyDBURL,
		Password: cfg.KeyDBPassword,
		DB:       0,
	})

	// 測試連接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to KeyDB: %w", err)
	}

	return client, nil
}

// NewKeyDBService 建立 KeyDB 服務
func NewKeyDBService(client *redis.Client, ttl time.Duration) *KeyDBService {
	return &KeyDBService{
		client: client,
		ttl:    ttl,
	}
}

// statusKey 收件人狀態 key
func statusKey(email string) string {
	return fmt.Sprintf("bulkmailer:status:%s", strings.ToLower(email))
}

// Record 寫入發送結果 (實作 OutcomeRecorder)
func (s *KeyDBService) Record(ctx context.Context, attempt *models.Attempt) error {
	return s.SetStatus(ctx, attempt.Email, string(attempt.Status), attempt.Provider, attempt.RunID, attempt.ErrorMessage)
}

// SetStatus 設定收件人狀態
func (s *KeyDBService) SetStatus(ctx context.Context, email, status, provider, runID, errorMsg string) error {
	statusCache := models.AttemptStatusCache{
		Email:        email,
		Status:       status,
		Provider:     provider,
		RunID:        runID,
		LastUpdated:  time.Now().UTC().Format(time.RFC3339),
		ErrorMessage: errorMsg,
	}

	data, err := json.Marshal(statusCache)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	return s.client.Set(ctx, statusKey(email), data, s.ttl).Err()
}

// GetStatus 取得收件人狀態
func (s *KeyDBService) GetStatus(ctx context.Context, email string) (*models.AttemptStatusCache, error) {
	data, err := s.client.Get(ctx, statusKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStatusNotFound
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	var status models.AttemptStatusCache
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return &status, nil
}
