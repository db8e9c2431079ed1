// internal/smtp/session.go
// SMTP Session 處理 - 接收郵件內容

package smtp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// Session 實作 smtp.Session 與 smtp.AuthSession 介面
// 處理單一 SMTP 連線的郵件接收
type Session struct {
	backend *Backend

	authenticated bool
	from          string   // 寄件者地址
	to            []string // 收件者地址列表
}

// AuthMechanisms 支援的認證方式
func (s *Session) AuthMechanisms() []string {
	if !s.backend.authEnabled() {
		return nil
	}
	return []string{sasl.Plain}
}

// Auth 處理 PLAIN 認證
func (s *Session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain || !s.backend.authEnabled() {
		return nil, gosmtp.ErrAuthUnsupported
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return gosmtp.ErrAuthFailed
		}
		s.authenticated = true
		return nil
	}), nil
}

// Mail 處理 MAIL FROM 指令
func (s *Session) Mail(from string, _ *gosmtp.MailOptions) error {
	if s.backend.username != "" && !s.authenticated {
		return gosmtp.ErrAuthRequired
	}
	s.from = cleanEmail(from)
	return nil
}

// Rcpt 處理 RCPT TO 指令
func (s *Session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	if err := s.backend.rejection(false); err != nil {
		return err
	}
	s.to = append(s.to, cleanEmail(to))
	return nil
}

// Data 處理 DATA 指令，接收郵件內容
func (s *Session) Data(r io.Reader) error {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return fmt.Errorf("failed to read mail data: %w", err)
	}

	if err := s.backend.rejection(true); err != nil {
		return err
	}
	if len(s.to) == 0 {
		return errors.New("no recipients")
	}

	s.backend.store(Received{
		From: s.from,
		To:   append([]string(nil), s.to...),
		Data: buf.Bytes(),
	})
	return nil
}

// Reset 重置 Session 狀態
func (s *Session) Reset() {
	s.from = ""
	s.to = nil
}

// Logout 結束 Session
func (s *Session) Logout() error {
	return nil
}

// cleanEmail 移除角括號與空白
func cleanEmail(email string) string {
	return strings.Trim(strings.TrimSpace(email), "<>")
}
