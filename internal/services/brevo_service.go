// internal/services/brevo_service.go
// Brevo 郵件發送服務

package services

import (
	"context"
	"net/http"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// BrevoAPIURL Brevo 交易郵件 API
const BrevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// BrevoService Brevo 郵件發送服務
// 實作 Provider interface
type BrevoService struct {
	apiKey      string
	senderEmail string
	apiURL      string
	httpClient  *http.Client
}

// brevoAddress Brevo 地址結構
type brevoAddress struct {
	Email string `json:"email"`
}

// brevoRequest Brevo 請求結構
type brevoRequest struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// NewBrevoService 建立 Brevo 服務
func NewBrevoService(cfg *config.Config) *BrevoService {
	return &BrevoService{
		apiKey:      cfg.BrevoAPIKey,
		senderEmail: cfg.BrevoSenderEmail,
		apiURL:      BrevoAPIURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// WithURL 覆寫 API 位址 (測試用)
func (s *BrevoService) WithURL(url string) *BrevoService {
	s.apiURL = url
	return s
}

// Name 回傳服務名稱
func (s *BrevoService) Name() string {
	return "brevo"
}

// IsConfigured 檢查 Brevo 是否已設定
func (s *BrevoService) IsConfigured() bool {
	return s.apiKey != ""
}

// Send 發送郵件 (使用 Brevo API)
func (s *BrevoService) Send(ctx context.Context, msg *models.Message) models.SendOutcome {
	payload := brevoRequest{
		Sender:      brevoAddress{Email: s.senderEmail},
		To:          []brevoAddress{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}

	status, body, err := postJSON(ctx, s.httpClient, s.apiURL, map[string]string{
		"api-key": s.apiKey,
	}, payload)
	if err != nil {
		return ClassifyTransportError(err)
	}

	return ClassifyHTTP(status, body, http.StatusCreated, http.StatusAccepted)
}
