// internal/smtp/server.go
// 本機 SMTP 接收伺服器 - 收下郵件但不轉寄，供測試與試跑使用

package smtp

import (
	"fmt"
	"net"
	"time"

	gosmtp "github.com/emersion/go-smtp"
)

// Server SMTP 伺服器
type Server struct {
	*Backend
	smtpServer *gosmtp.Server
	listener   net.Listener
}

// NewServer 建立 SMTP 伺服器
func NewServer(username, password string) *Server {
	return &Server{Backend: NewBackend(username, password)}
}

// Start 在 addr 上啟動 (例如 127.0.0.1:0)，回傳實際監聽位址
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("SMTP server listen error: %w", err)
	}

	s.smtpServer = gosmtp.NewServer(s.Backend)
	s.smtpServer.Domain = "localhost"
	s.smtpServer.ReadTimeout = 30 * time.Second
	s.smtpServer.WriteTimeout = 30 * time.Second
	s.smtpServer.MaxMessageBytes = 10 * 1024 * 1024
	s.smtpServer.MaxRecipients = 50
	s.smtpServer.AllowInsecureAuth = true // 僅限本機使用

	s.listener = listener
	go s.smtpServer.Serve(listener)

	return listener.Addr().String(), nil
}

// Shutdown 關閉伺服器
func (s *Server) Shutdown() error {
	if s.smtpServer != nil {
		return s.smtpServer.Close()
	}
	return nil
}
