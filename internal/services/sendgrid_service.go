// internal/services/sendgrid_service.go
// SendGrid 郵件發送服務

package services

import (
	"context"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// sendGridEndpoint SendGrid Mail Send API 路徑
const sendGridEndpoint = "/v3/mail/send"

// SendGridService SendGrid 郵件發送服務
// 實作 Provider interface
type SendGridService struct {
	apiKey      string
	senderEmail string
	host        string // 空白時使用 https://api.sendgrid.com
}

// NewSendGridService 建立 SendGrid 服務
func NewSendGridService(cfg *config.Config) *SendGridService {
	return &SendGridService{
		apiKey:      cfg.SendGridAPIKey,
		senderEmail: cfg.SenderEmail,
	}
}

// WithHost 覆寫 API 主機 (測試用)
func (s *SendGridService) WithHost(host string) *SendGridService {
	s.host = host
	return s
}

// Name 回傳服務名稱
func (s *SendGridService) Name() string {
	return "sendgrid"
}

// IsConfigured 檢查 SendGrid 是否已設定
func (s *SendGridService) IsConfigured() bool {
	return s.apiKey != ""
}

// Send 發送郵件 (使用 SendGrid API)
func (s *SendGridService) Send(ctx context.Context, msg *models.Message) models.SendOutcome {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail("", s.senderEmail))
	message.Subject = msg.Subject

	// 建立個人化設定 (收件人)
	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail("", msg.To))
	message.AddPersonalizations(personalization)

	message.AddContent(mail.NewContent("text/html", msg.HTML))

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = http.MethodPost
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return ClassifyTransportError(err)
	}

	return ClassifyHTTP(response.StatusCode, response.Body,
		http.StatusOK, http.StatusCreated, http.StatusAccepted)
}
