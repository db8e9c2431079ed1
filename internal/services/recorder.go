// internal/services/recorder.go
// 發送結果紀錄介面

package services

import (
	"context"
	"errors"

	"bulk-mailer/internal/models"
)

// OutcomeRecorder 發送結果紀錄
// 紀錄失敗不影響批次執行，僅由呼叫端寫入 log
type OutcomeRecorder interface {
	Record(ctx context.Context, attempt *models.Attempt) error
}

// MultiRecorder 依序寫入多個 recorder
type MultiRecorder []OutcomeRecorder

// Record 寫入所有 recorder，回傳合併後的錯誤
func (m MultiRecorder) Record(ctx context.Context, attempt *models.Attempt) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, attempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
