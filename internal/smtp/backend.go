// internal/smtp/backend.go
// SMTP Backend 介面實作 - 處理 SMTP 連線認證與 Session 建立

package smtp

import (
	"sync"

	gosmtp "github.com/emersion/go-smtp"
)

// Received 收到的郵件
type Received struct {
	From string
	To   []string
	Data []byte
}

// Backend 實作 smtp.Backend 介面
// 負責保存收到的郵件與設定的拒絕規則
type Backend struct {
	username string
	password string

	mu           sync.Mutex
	authDisabled bool
	messages     []Received
	rcptReject   *gosmtp.SMTPError
	dataReject   *gosmtp.SMTPError
}

// NewBackend 建立 SMTP Backend
// username 空白表示不需要認證
func NewBackend(username, password string) *Backend {
	return &Backend{
		username: username,
		password: password,
	}
}

// NewSession 建立新的 SMTP Session
// 實作 smtp.Backend 介面
func (b *Backend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	return &Session{backend: b}, nil
}

// RejectRecipients 之後所有 RCPT TO 都以指定回應拒絕
func (b *Backend) RejectRecipients(code int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rcptReject = &gosmtp.SMTPError{Code: code, Message: message}
}

// RejectData 之後所有 DATA 都以指定回應拒絕
func (b *Backend) RejectData(code int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dataReject = &gosmtp.SMTPError{Code: code, Message: message}
}

// DisableAuth 之後不提供任何認證方式
func (b *Backend) DisableAuth() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authDisabled = true
}

func (b *Backend) authEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.authDisabled
}

// Messages 回傳目前收到的郵件
func (b *Backend) Messages() []Received {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Received, len(b.messages))
	copy(out, b.messages)
	return out
}

func (b *Backend) store(msg Received) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *Backend) rejection(data bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if data {
		if b.dataReject != nil {
			return b.dataReject
		}
		return nil
	}
	if b.rcptReject != nil {
		return b.rcptReject
	}
	return nil
}
