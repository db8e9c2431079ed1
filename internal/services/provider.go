// internal/services/provider.go
// 郵件發送 Provider 共用介面

package services

import (
	"context"

	"bulk-mailer/internal/models"
)

// Provider 郵件發送服務介面
// 所有發送管道（SMTP、SendGrid、Mailtrap、Brevo、Graph API）都需實作此介面
// Send 不回傳 error，所有失敗都以分類後的 SendOutcome 表示
type Provider interface {
	// Send 發送單封郵件
	Send(ctx context.Context, msg *models.Message) models.SendOutcome

	// Name 回傳服務名稱，用於 logging
	Name() string
}
