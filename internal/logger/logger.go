// internal/logger/logger.go
// 結構化日誌 - zerolog 包裝

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger 包裝 zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New 建立 Logger
// format 為 console 時輸出人類可讀格式，否則輸出 JSON
// logFile 非空時同時寫入檔案 (JSON)
func New(level, format, logFile string) (*Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var stdout io.Writer = os.Stdout
	if format == "console" || format == "text" {
		stdout = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	writers := []io.Writer{stdout}
	var closer io.Closer = nopCloser{}

	if logFile != "" {
		if dir := filepath.Dir(logFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: zl}, closer, nil
}

// NewWriter 建立寫入指定 io.Writer 的 Logger (測試用)
func NewWriter(w io.Writer) *Logger {
	return &Logger{Logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop 不輸出任何內容的 Logger
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent 附加元件名稱
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// WithRunID 附加批次執行 ID
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.With().Str("run_id", runID).Logger(),
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
