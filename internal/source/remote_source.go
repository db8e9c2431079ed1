// internal/source/remote_source.go
// 遠端收件人來源 - 分批取得未發送的資料列

package source

import (
	"context"
	"strings"
	"time"

	"bulk-mailer/internal/logger"
	"bulk-mailer/internal/models"
)

// RecordStore 遠端收件人資料表
type RecordStore interface {
	// Fetch 取得 id 大於 after 且尚未發送的資料列 (依 id 遞增)，最多 limit 筆
	// after 為空字串時從頭開始
	Fetch(ctx context.Context, after string, limit int) ([]models.Recipient, error)

	// MarkSent 將資料列標記為已發送
	MarkSent(ctx context.Context, id string) error

	// Name 回傳資料表名稱，用於 logging
	Name() string
}

// RemoteSource 遠端收件人來源
// 以 keyset 分頁往前推進，本次執行中失敗的收件人不會再被取回
type RemoteSource struct {
	store     RecordStore
	batchSize int
	timeout   time.Duration
	log       *logger.Logger

	buffer    []models.Recipient
	lastID    string
	exhausted bool
}

// NewRemoteSource 建立遠端來源
func NewRemoteSource(store RecordStore, batchSize int, timeout time.Duration, log *logger.Logger) *RemoteSource {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &RemoteSource{
		store:     store,
		batchSize: batchSize,
		timeout:   timeout,
		log:       log.WithComponent("remote-source"),
	}
}

// Name 回傳來源名稱
func (s *RemoteSource) Name() string {
	return s.store.Name()
}

// Next 取得下一位收件人，緩衝區空了才向遠端取下一批
func (s *RemoteSource) Next(ctx context.Context) (*models.Recipient, error) {
	for len(s.buffer) == 0 {
		if s.exhausted {
			return nil, ErrExhausted
		}
		if err := s.fill(ctx); err != nil {
			// 取資料失敗視同來源耗盡，留待下次執行
			s.log.Error().Err(err).Msg("failed to fetch recipients")
			s.exhausted = true
			return nil, ErrExhausted
		}
	}

	recipient := s.buffer[0]
	s.buffer = s.buffer[1:]
	return &recipient, nil
}

// fill 取得下一批
func (s *RemoteSource) fill(ctx context.Context) error {
	fetchCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	batch, err := s.store.Fetch(fetchCtx, s.lastID, s.batchSize)
	if err != nil {
		return err
	}

	s.log.Debug().Int("count", len(batch)).Str("after", s.lastID).Msg("fetched recipients")

	if len(batch) < s.batchSize {
		s.exhausted = true
	}
	if len(batch) > 0 {
		s.lastID = batch[len(batch)-1].ID
	}

	for _, r := range batch {
		r.Email = strings.TrimSpace(r.Email)
		if r.Email == "" {
			continue
		}
		s.buffer = append(s.buffer, r)
	}
	return nil
}

// MarkSent 標記已發送，失敗時由呼叫端記錄，不重試
func (s *RemoteSource) MarkSent(ctx context.Context, recipient *models.Recipient) error {
	markCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.MarkSent(markCtx, recipient.ID)
}

// Postpone 資料列維持 is_sent=false，下次執行會再取回
func (s *RemoteSource) Postpone(context.Context, *models.Recipient) error {
	return nil
}

func (s *RemoteSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
