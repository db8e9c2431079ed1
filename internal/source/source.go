// internal/source/source.go
// 收件人來源介面

package source

import (
	"context"
	"errors"

	"bulk-mailer/internal/models"
)

// ErrExhausted 來源已無收件人
var ErrExhausted = errors.New("recipient source exhausted")

// ErrPaused 來源停在暫時失敗的收件人，本次執行不再往後讀取
var ErrPaused = errors.New("recipient source paused at a postponed recipient")

// Source 收件人來源
type Source interface {
	// Next 取得下一位收件人，沒有時回傳 ErrExhausted
	Next(ctx context.Context) (*models.Recipient, error)

	// MarkSent 標記收件人已發送 (遠端: is_sent=true；檔案: 推進 checkpoint)
	MarkSent(ctx context.Context, recipient *models.Recipient) error

	// Postpone 收件人暫時失敗，留待下次執行重送
	// 檔案來源無法越過該行，之後的 Next 回傳 ErrPaused
	Postpone(ctx context.Context, recipient *models.Recipient) error

	// Name 回傳來源名稱，用於 logging
	Name() string
}
