// internal/services/journal_service.go
// 發送紀錄檔 - 成功與失敗收件人各寫一個檔案

package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// JournalService 發送紀錄檔服務
// 成功檔每行一個 email，可直接作為下一次的收件清單
// 失敗檔每行: email<TAB>provider<TAB>分類<TAB>細節
type JournalService struct {
	successPath string
	failedPath  string
	mu          sync.Mutex
}

// NewJournalService 建立紀錄檔服務，路徑空白表示不寫入
func NewJournalService(cfg *config.Config) *JournalService {
	return &JournalService{
		successPath: cfg.SuccessLog,
		failedPath:  cfg.FailedLog,
	}
}

// Record 寫入發送結果
func (s *JournalService) Record(_ context.Context, attempt *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt.Status == models.AttemptStatusSent {
		if s.successPath == "" {
			return nil
		}
		return appendLine(s.successPath, attempt.Email)
	}

	if s.failedPath == "" {
		return nil
	}
	line := strings.Join([]string{
		attempt.Email,
		attempt.Provider,
		attempt.Failure,
		oneLine(attempt.ErrorMessage),
	}, "\t")
	return appendLine(s.failedPath, line)
}

// appendLine 附加一行到檔案
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write journal %s: %w", path, err)
	}
	return nil
}

// oneLine 移除換行與 tab
func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
}
