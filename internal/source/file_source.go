// internal/source/file_source.go
// 檔案收件人來源 - 每行一個 email，以 byte offset 續傳

package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bulk-mailer/internal/checkpoint"
	"bulk-mailer/internal/logger"
	"bulk-mailer/internal/models"
)

// FileSource 檔案收件人來源
// 空白行與 # 開頭的註解行會被略過
// checkpoint 只在 MarkSent 時推進，發送途中當機不會跳過收件人
// Postpone 後來源暫停，checkpoint 停在該行之前，下次執行從該行開始
type FileSource struct {
	path       string
	checkpoint checkpoint.Store
	log        *logger.Logger

	loaded    bool
	cursor    int64 // 本次執行已讀到的位置
	committed int64 // 已寫入 checkpoint 的位置
	handedOut bool  // 上次 commit 後是否有尚未標記發送的收件人
	paused    bool
}

// NewFileSource 建立檔案來源
func NewFileSource(path string, store checkpoint.Store, log *logger.Logger) *FileSource {
	return &FileSource{
		path:       path,
		checkpoint: store,
		log:        log.WithComponent("file-source"),
	}
}

// Name 回傳來源名稱
func (s *FileSource) Name() string {
	return "file"
}

// Next 從目前位置讀取下一個收件人
func (s *FileSource) Next(ctx context.Context) (*models.Recipient, error) {
	if s.paused {
		return nil, ErrPaused
	}
	if !s.loaded {
		s.cursor = s.checkpoint.Load(ctx)
		s.committed = s.cursor
		s.loaded = true
		s.log.Info().Int64("offset", s.cursor).Msg("resuming recipients file")
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipients file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(s.cursor, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek recipients file: %w", err)
	}

	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("failed to read recipients file: %w", readErr)
		}
		if line == "" {
			s.commitTrailing(ctx)
			return nil, ErrExhausted
		}

		s.cursor += int64(len(line))

		email := strings.TrimSpace(line)
		if email == "" || strings.HasPrefix(email, "#") {
			if readErr != nil {
				s.commitTrailing(ctx)
				return nil, ErrExhausted
			}
			continue
		}

		s.handedOut = true
		return &models.Recipient{Email: email, Offset: s.cursor}, nil
	}
}

// MarkSent 推進 checkpoint 到該收件人那一行之後
func (s *FileSource) MarkSent(ctx context.Context, recipient *models.Recipient) error {
	if s.paused {
		return nil
	}
	if err := s.checkpoint.Save(ctx, recipient.Offset); err != nil {
		return err
	}
	s.committed = recipient.Offset
	if recipient.Offset >= s.cursor {
		s.handedOut = false
	}
	return nil
}

// Postpone 暫停來源，之後發送成功的收件人都不會再推進 checkpoint
func (s *FileSource) Postpone(_ context.Context, recipient *models.Recipient) error {
	s.paused = true
	s.log.Info().
		Str("email", recipient.Email).
		Int64("offset", s.committed).
		Msg("recipient postponed, next run resumes at this line")
	return nil
}

// commitTrailing 檔案結尾只剩空白或註解行時，一併推進 checkpoint
func (s *FileSource) commitTrailing(ctx context.Context) {
	if s.handedOut || s.cursor <= s.committed {
		return
	}
	if err := s.checkpoint.Save(ctx, s.cursor); err != nil {
		s.log.Warn().Err(err).Int64("offset", s.cursor).Msg("failed to save trailing checkpoint")
		return
	}
	s.committed = s.cursor
}
