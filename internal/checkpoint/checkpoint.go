// internal/checkpoint/checkpoint.go
// 檔案模式的發送進度 (byte offset)

package checkpoint

import (
	"context"
	"strconv"
	"strings"
)

// Store 發送進度儲存
//
// Load 在進度不存在或內容損毀時回傳 0：從頭重送比讓排程工作中斷更安全，
// 因此損毀只會寫入 log，不會回傳錯誤。
// Save 覆寫進度，每次檔案模式發送成功後同步呼叫。
type Store interface {
	Load(ctx context.Context) int64
	Save(ctx context.Context, offset int64) error
}

// parseOffset 解析十進位 offset，負數或格式錯誤視為損毀
func parseOffset(raw string) (int64, bool) {
	offset, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || offset < 0 {
		return 0, false
	}
	return offset, true
}

// formatOffset 轉為十進位文字
func formatOffset(offset int64) string {
	return strconv.FormatInt(offset, 10)
}
