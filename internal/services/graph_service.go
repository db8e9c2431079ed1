// internal/services/graph_service.go
// Microsoft Graph API 郵件發送服務

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
	"bulk-mailer/pkg/microsoft"
)

// GraphAPIURL Microsoft Graph v1.0
const GraphAPIURL = "https://graph.microsoft.com/v1.0"

// GraphMailService Microsoft Graph API 郵件發送服務
// 實作 Provider interface
type GraphMailService struct {
	oauthService *microsoft.OAuthService
	senderEmail  string
	apiURL       string
	httpClient   *http.Client
}

// GraphMailRequest Graph API 郵件請求結構
type GraphMailRequest struct {
	Message         GraphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

// GraphMessage Graph API 郵件訊息結構
type GraphMessage struct {
	Subject      string           `json:"subject"`
	Body         GraphBody        `json:"body"`
	ToRecipients []GraphRecipient `json:"toRecipients"`
}

// GraphBody Graph API 郵件內容結構
type GraphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// GraphRecipient Graph API 收件人結構
type GraphRecipient struct {
	EmailAddress GraphEmailAddress `json:"emailAddress"`
}

// GraphEmailAddress Graph API 電子郵件地址結構
type GraphEmailAddress struct {
	Address string `json:"address"`
}

// NewGraphMailService 建立 Graph API 郵件服務
func NewGraphMailService(cfg *config.Config, oauthService *microsoft.OAuthService) *GraphMailService {
	return &GraphMailService{
		oauthService: oauthService,
		senderEmail:  cfg.GraphSenderEmail,
		apiURL:       GraphAPIURL,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// WithURL 覆寫 Graph API 位址 (測試用)
func (s *GraphMailService) WithURL(apiURL string) *GraphMailService {
	s.apiURL = strings.TrimRight(apiURL, "/")
	return s
}

// Name 回傳服務名稱
func (s *GraphMailService) Name() string {
	return "graph"
}

// IsConfigured 檢查 OAuth 憑證是否已設定
func (s *GraphMailService) IsConfigured() bool {
	return s.oauthService.IsConfigured()
}

// Send 發送郵件 (使用 Microsoft Graph API)
func (s *GraphMailService) Send(ctx context.Context, msg *models.Message) models.SendOutcome {
	// 取得 OAuth 2.0 Access Token
	accessToken, err := s.oauthService.GetAccessToken(ctx)
	if err != nil {
		var tokenErr *microsoft.TokenError
		if errors.As(err, &tokenErr) {
			// Token 端點拒絕憑證
			if tokenErr.StatusCode == http.StatusBadRequest || tokenErr.StatusCode == http.StatusUnauthorized {
				return models.Failed(models.FailureAuth, tokenErr.StatusCode, truncate(tokenErr.Body))
			}
			return ClassifyHTTP(tokenErr.StatusCode, tokenErr.Body)
		}
		return ClassifyTransportError(err)
	}

	mailRequest := GraphMailRequest{
		Message: GraphMessage{
			Subject: msg.Subject,
			Body: GraphBody{
				ContentType: "html",
				Content:     msg.HTML,
			},
			ToRecipients: []GraphRecipient{
				{EmailAddress: GraphEmailAddress{Address: msg.To}},
			},
		},
		SaveToSentItems: true,
	}

	graphURL := fmt.Sprintf("%s/users/%s/sendMail", s.apiURL, url.PathEscape(s.senderEmail))

	status, body, err := postJSON(ctx, s.httpClient, graphURL, map[string]string{
		"Authorization": "Bearer " + accessToken,
	}, mailRequest)
	if err != nil {
		return ClassifyTransportError(err)
	}

	// 202 Accepted 表示成功
	return ClassifyHTTP(status, body, http.StatusAccepted, http.StatusOK)
}
