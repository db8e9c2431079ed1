// internal/checkpoint/file_store.go
// 以單一文字檔保存進度

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bulk-mailer/internal/logger"
)

// FileStore 進度檔 (內容為十進位 offset)
type FileStore struct {
	path string
	log  *logger.Logger
}

// NewFileStore 建立進度檔儲存
func NewFileStore(path string, log *logger.Logger) *FileStore {
	return &FileStore{
		path: path,
		log:  log.WithComponent("checkpoint"),
	}
}

// Load 讀取進度
func (s *FileStore) Load(_ context.Context) int64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("checkpoint unreadable, starting from 0")
		}
		return 0
	}

	offset, ok := parseOffset(string(data))
	if !ok {
		s.log.Warn().Str("path", s.path).Str("content", string(data)).Msg("checkpoint corrupt, starting from 0")
		return 0
	}
	return offset
}

// Save 寫入進度
// 先寫入暫存檔再 rename，避免中途當機留下半截內容
func (s *FileStore) Save(_ context.Context, offset int64) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(formatOffset(offset)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Reset 刪除進度檔
func (s *FileStore) Reset(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}
