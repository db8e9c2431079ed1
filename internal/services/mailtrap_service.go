// internal/services/mailtrap_service.go
// Mailtrap 郵件發送服務

package services

import (
	"context"
	"net/http"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// MailtrapAPIURL Mailtrap Send API
const MailtrapAPIURL = "https://send.api.mailtrap.io/api/send"

// MailtrapService Mailtrap 郵件發送服務
// 實作 Provider interface
type MailtrapService struct {
	apiToken    string
	senderEmail string
	apiURL      string
	httpClient  *http.Client
}

// mailtrapAddress Mailtrap 地址結構
type mailtrapAddress struct {
	Email string `json:"email"`
}

// mailtrapRequest Mailtrap 請求結構
type mailtrapRequest struct {
	From    mailtrapAddress   `json:"from"`
	To      []mailtrapAddress `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
}

// NewMailtrapService 建立 Mailtrap 服務
func NewMailtrapService(cfg *config.Config) *MailtrapService {
	return &MailtrapService{
		apiToken:    cfg.MailtrapAPIToken,
		senderEmail: cfg.MailtrapSenderEmail,
		apiURL:      MailtrapAPIURL,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// WithURL 覆寫 API 位址 (測試用)
func (s *MailtrapService) WithURL(url string) *MailtrapService {
	s.apiURL = url
	return s
}

// Name 回傳服務名稱
func (s *MailtrapService) Name() string {
	return "mailtrap"
}

// IsConfigured 檢查 Mailtrap 是否已設定
func (s *MailtrapService) IsConfigured() bool {
	return s.apiToken != ""
}

// Send 發送郵件 (使用 Mailtrap API)
func (s *MailtrapService) Send(ctx context.Context, msg *models.Message) models.SendOutcome {
	payload := mailtrapRequest{
		From:    mailtrapAddress{Email: s.senderEmail},
		To:      []mailtrapAddress{{Email: msg.To}},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}

	status, body, err := postJSON(ctx, s.httpClient, s.apiURL, map[string]string{
		"Authorization": "Bearer " + s.apiToken,
	}, payload)
	if err != nil {
		return ClassifyTransportError(err)
	}

	return ClassifyHTTP(status, body, http.StatusOK, http.StatusAccepted)
}
