// internal/models/recipient.go
// 收件人資料模型

package models

// Recipient 單一收件人
// 檔案模式下 ID 為空，Offset 為該行結尾的位元組位置
type Recipient struct {
	ID     string `json:"id,omitempty"`
	Email  string `json:"email"`
	Offset int64  `json:"-"`
}

// RecipientRecord 遠端收件人資料表
// 欄位: id, email, is_sent
type RecipientRecord struct {
	ID     int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Email  string `json:"email" gorm:"not null"`
	IsSent bool   `json:"is_sent" gorm:"column:is_sent;not null;default:false"`
}

// Message 單封郵件內容
type Message struct {
	To      string
	Subject string
	HTML    string
}
