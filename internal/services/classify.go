// internal/services/classify.go
// 發送錯誤分類

package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	gosmtp "github.com/emersion/go-smtp"

	"bulk-mailer/internal/models"
)

// maxDetailLength 錯誤細節保留長度
const maxDetailLength = 512

// ClassifyHTTP 依 HTTP 狀態碼與回應內容分類
// okCodes 為該 provider 視為成功的狀態碼
func ClassifyHTTP(statusCode int, body string, okCodes ...int) models.SendOutcome {
	for _, code := range okCodes {
		if statusCode == code {
			return models.Sent()
		}
	}

	detail := truncate(body)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.Failed(models.FailureAuth, statusCode, detail)
	case statusCode == http.StatusTooManyRequests:
		return models.Failed(models.FailureRateLimited, statusCode, detail)
	case mentionsLimit(body):
		return models.Failed(models.FailureRateLimited, statusCode, detail)
	default:
		return models.Failed(models.FailureUnknown, statusCode, detail)
	}
}

// ClassifyTransportError 網路層錯誤一律視為暫時性錯誤
func ClassifyTransportError(err error) models.SendOutcome {
	return models.Failed(models.FailureTransient, 0, truncate(err.Error()))
}

// ClassifySMTPError 依 SMTP 回應碼分類
// 非 SMTP 回應的錯誤 (連線中斷、逾時) 視為暫時性錯誤
func ClassifySMTPError(err error) models.SendOutcome {
	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) {
		return ClassifyTransportError(err)
	}

	detail := truncate(fmt.Sprintf("%d %s", smtpErr.Code, smtpErr.Message))

	switch {
	case isSMTPAuthCode(smtpErr.Code):
		return models.Failed(models.FailureAuth, smtpErr.Code, detail)
	case mentionsLimit(smtpErr.Message):
		return models.Failed(models.FailureRateLimited, smtpErr.Code, detail)
	default:
		return models.Failed(models.FailureUnknown, smtpErr.Code, detail)
	}
}

// ClassifySMTPAuthError AUTH 指令失敗
// 伺服器不支援 AUTH 時回傳 502/503/504，與帳密錯誤同樣視為認證錯誤
func ClassifySMTPAuthError(err error) models.SendOutcome {
	var smtpErr *gosmtp.SMTPError
	if errors.As(err, &smtpErr) && smtpErr.Code >= 500 && smtpErr.Code < 600 {
		detail := truncate(fmt.Sprintf("%d %s", smtpErr.Code, smtpErr.Message))
		return models.Failed(models.FailureAuth, smtpErr.Code, detail)
	}
	return ClassifySMTPError(err)
}

// isSMTPAuthCode 認證相關 SMTP 回應碼 (RFC 4954)
func isSMTPAuthCode(code int) bool {
	switch code {
	case 530, 534, 535, 538:
		return true
	}
	return false
}

// mentionsLimit provider 回應中出現 "limit" 字樣時視為已達上限
func mentionsLimit(s string) bool {
	return strings.Contains(strings.ToLower(s), "limit")
}

// truncate 截斷過長的錯誤內容
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDetailLength {
		return s
	}
	cut := maxDetailLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
