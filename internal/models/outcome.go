// internal/models/outcome.go
// 發送結果與錯誤分類

package models

import "time"

// FailureClass 發送失敗分類
type FailureClass int

const (
	// FailureNone 表示發送成功
	FailureNone FailureClass = iota
	// FailureRateLimited provider 已達上限，本次執行不再使用
	FailureRateLimited
	// FailureAuth 認證失敗，本次執行不再使用 (多半為設定錯誤)
	FailureAuth
	// FailureTransient 網路或連線錯誤，留待下次執行
	FailureTransient
	// FailureUnknown 其他錯誤
	FailureUnknown
)

// String 回傳分類名稱
func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureRateLimited:
		return "rate_limited"
	case FailureAuth:
		return "auth_error"
	case FailureTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Rotates 是否需要切換 provider
func (c FailureClass) Rotates() bool {
	return c == FailureRateLimited || c == FailureAuth
}

// SendOutcome 單次發送結果
type SendOutcome struct {
	Class      FailureClass
	StatusCode int
	Detail     string
}

// Sent 建立成功結果
func Sent() SendOutcome {
	return SendOutcome{Class: FailureNone}
}

// Failed 建立失敗結果
func Failed(class FailureClass, statusCode int, detail string) SendOutcome {
	return SendOutcome{Class: class, StatusCode: statusCode, Detail: detail}
}

// IsSent 是否發送成功
func (o SendOutcome) IsSent() bool {
	return o.Class == FailureNone
}

// AttemptStatus 發送嘗試狀態
type AttemptStatus string

const (
	AttemptStatusSent   AttemptStatus = "sent"
	AttemptStatusFailed AttemptStatus = "failed"
)

// Attempt 單次發送嘗試紀錄 (journal / KeyDB / RabbitMQ 共用)
type Attempt struct {
	RunID        string        `json:"run_id"`
	RecipientID  string        `json:"recipient_id,omitempty"`
	Email        string        `json:"email"`
	Provider     string        `json:"provider"`
	Status       AttemptStatus `json:"status"`
	Failure      string        `json:"failure,omitempty"`
	StatusCode   int           `json:"status_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	SentCount    int           `json:"sent_count"`
	AttemptedAt  time.Time     `json:"attempted_at"`
}

// AttemptStatusCache KeyDB 快取格式
type AttemptStatusCache struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	Provider     string `json:"provider"`
	RunID        string `json:"run_id"`
	LastUpdated  string `json:"last_updated"`
	ErrorMessage string `json:"error_message,omitempty"`
}
