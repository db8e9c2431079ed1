// internal/services/smtp_service.go
// SMTP 直連郵件發送服務

package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// SMTPService SMTP 郵件發送服務
// 實作 Provider interface，每封郵件建立一次連線
type SMTPService struct {
	host        string
	port        int
	username    string
	password    string
	security    string // starttls / tls / none
	senderEmail string
	timeout     time.Duration
}

// NewSMTPService 建立 SMTP 服務
func NewSMTPService(cfg *config.Config) *SMTPService {
	return &SMTPService{
		host:        cfg.SMTPHost,
		port:        cfg.SMTPPort,
		username:    cfg.SMTPUsername,
		password:    cfg.SMTPPassword,
		security:    cfg.SMTPSecurity,
		senderEmail: cfg.SMTPSenderEmail,
		timeout:     cfg.RequestTimeout,
	}
}

// Name 回傳服務名稱
func (s *SMTPService) Name() string {
	return "smtp"
}

// IsConfigured 檢查 SMTP 主機與帳號是否已設定
func (s *SMTPService) IsConfigured() bool {
	return s.host != "" && s.username != ""
}

// Send 發送郵件 (使用 SMTP)
func (s *SMTPService) Send(ctx context.Context, msg *models.Message) models.SendOutcome {
	raw, err := s.buildMessage(msg)
	if err != nil {
		return models.Failed(models.FailureUnknown, 0, truncate(err.Error()))
	}

	client, err := s.dial(ctx)
	if err != nil {
		return ClassifySMTPError(err)
	}
	defer client.Close()

	if s.timeout > 0 {
		client.CommandTimeout = s.timeout
		client.SubmissionTimeout = s.timeout
	}

	// 認證
	if s.username != "" {
		if err := client.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
			return ClassifySMTPAuthError(err)
		}
	}

	if err := client.Mail(s.senderEmail, nil); err != nil {
		return ClassifySMTPError(err)
	}
	if err := client.Rcpt(msg.To, nil); err != nil {
		return ClassifySMTPError(err)
	}

	w, err := client.Data()
	if err != nil {
		return ClassifySMTPError(err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return ClassifySMTPError(err)
	}
	// DATA 結束後伺服器的回應才代表是否接受
	if err := w.Close(); err != nil {
		return ClassifySMTPError(err)
	}

	_ = client.Quit()
	return models.Sent()
}

// dial 依 SMTP_SECURITY 建立連線
func (s *SMTPService) dial(ctx context.Context) (*gosmtp.Client, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	tlsConfig := &tls.Config{ServerName: s.host}

	switch s.security {
	case "tls":
		return gosmtp.NewClient(tls.Client(conn, tlsConfig)), nil
	case "starttls":
		client, err := gosmtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return client, nil
	default:
		return gosmtp.NewClient(conn), nil
	}
}

// buildMessage 使用 go-message 建立 MIME 郵件
func (s *SMTPService) buildMessage(msg *models.Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: s.senderEmail}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.HTML); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}

	return buf.Bytes(), nil
}
