// internal/config/config.go
// 設定模組 - 載入環境變數

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 收件來源模式
const (
	SourceAuto     = "auto"
	SourceFile     = "file"
	SourceSupabase = "supabase"
	SourcePostgres = "postgres"
)

// Checkpoint 後端
const (
	CheckpointFile  = "file"
	CheckpointKeyDB = "keydb"
)

// 啟動時的致命設定錯誤
var (
	ErrNoProviders      = errors.New("no email providers configured")
	ErrNoTemplate       = errors.New("email template not found")
	ErrNoRecipientsFile = errors.New("recipients file not found")
)

// Config 應用程式設定
type Config struct {
	// 環境
	Env             string
	IsGitHubActions bool

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// 批次
	DailySendLimit    int
	BatchSize         int
	RequestTimeout    time.Duration
	SendRatePerMinute int

	// 郵件內容
	Subject      string
	TemplatePath string

	// 收件來源
	RecipientSource string
	RecipientsPath  string

	// Supabase (PostgREST)
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseTable          string

	// 資料庫
	DatabaseURL    string
	RecipientTable string

	// Checkpoint
	CheckpointBackend string
	ProgressFile      string
	CheckpointKey     string

	// KeyDB
	KeyDBURL           string
	KeyDBPassword      string
	KeyDBStatusTTL     time.Duration
	StatusCacheEnabled bool

	// 發送紀錄
	SuccessLog string
	FailedLog  string

	// RabbitMQ
	RabbitMQURL      string
	OutcomeQueueName string

	// Provider 輪替順序
	ProviderOrder []string

	// 預設寄件者
	SenderEmail string

	// SendGrid
	SendGridAPIKey string

	// Mailtrap
	MailtrapAPIToken    string
	MailtrapSenderEmail string

	// Brevo
	BrevoAPIKey      string
	BrevoSenderEmail string

	// SMTP
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPSecurity    string // starttls / tls / none
	SMTPSenderEmail string

	// Microsoft Graph
	MicrosoftTenantID     string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	GraphSenderEmail      string
}

// Load 載入設定
func Load() *Config {
	// 嘗試載入 .env 檔案 (開發環境)
	_ = godotenv.Load()

	senderEmail := getEnv("SENDER_EMAIL", "")

	return &Config{
		// 環境
		Env:             getEnv("APP_ENV", "development"),
		IsGitHubActions: getEnvAsBool("IS_GITHUB_ACTIONS", false),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", "sending.log"),

		// 批次 (100 SendGrid + 150 Mailtrap + 300 Brevo)
		DailySendLimit:    getEnvAsInt("DAILY_SEND_LIMIT", 550),
		BatchSize:         getEnvAsInt("BATCH_SIZE", 10),
		RequestTimeout:    time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		SendRatePerMinute: getEnvAsInt("SEND_RATE_PER_MINUTE", 0),

		// 郵件內容
		Subject:      getEnv("EMAIL_SUBJECT", "Newsletter"),
		TemplatePath: getEnv("TEMPLATE_PATH", "customer_email.html"),

		// 收件來源
		RecipientSource: strings.ToLower(getEnv("RECIPIENT_SOURCE", SourceAuto)),
		RecipientsPath:  getEnv("RECIPIENTS_PATH", "recipients.txt"),

		// Supabase
		SupabaseURL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseTable:          getEnv("SUPABASE_TABLE", "email_list"),

		// 資料庫
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RecipientTable: getEnv("RECIPIENT_TABLE", "email_list"),

		// Checkpoint
		CheckpointBackend: strings.ToLower(getEnv("CHECKPOINT_BACKEND", CheckpointFile)),
		ProgressFile:      getEnv("PROGRESS_FILE", ".send_progress_offset"),
		CheckpointKey:     getEnv("CHECKPOINT_KEY", "bulkmailer:checkpoint"),

		// KeyDB
		KeyDBURL:           getEnv("KEYDB_URL", "localhost:6379"),
		KeyDBPassword:      getEnv("KEYDB_PASSWORD", ""),
		KeyDBStatusTTL:     time.Duration(getEnvAsInt("KEYDB_STATUS_TTL_DAYS", 14)) * 24 * time.Hour,
		StatusCacheEnabled: getEnvAsBool("STATUS_CACHE_ENABLED", false),

		// 發送紀錄
		SuccessLog: getEnv("SUCCESS_LOG", "sent_recipients.txt"),
		FailedLog:  getEnv("FAILED_LOG", "failed_recipients.txt"),

		// RabbitMQ
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		OutcomeQueueName: getEnv("OUTCOME_QUEUE_NAME", ""),

		// Provider
		ProviderOrder: getEnvAsSlice("PROVIDER_ORDER", []string{"sendgrid", "mailtrap", "brevo", "smtp", "graph"}),
		SenderEmail:   senderEmail,

		// SendGrid
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		// Mailtrap
		MailtrapAPIToken:    getEnv("MAILTRAP_API_TOKEN", ""),
		MailtrapSenderEmail: getEnv("MAILTRAP_SENDER_EMAIL", senderEmail),

		// Brevo
		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail: getEnv("BREVO_SENDER_EMAIL", senderEmail),

		// SMTP
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPSecurity:    strings.ToLower(getEnv("SMTP_SECURITY", "starttls")),
		SMTPSenderEmail: getEnv("SMTP_SENDER_EMAIL", senderEmail),

		// Microsoft Graph
		MicrosoftTenantID:     getEnv("MICROSOFT_TENANT_ID", ""),
		MicrosoftClientID:     getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),
		GraphSenderEmail:      getEnv("GRAPH_SENDER_EMAIL", senderEmail),
	}
}

// ResolvedSource 回傳實際使用的收件來源
// auto 模式下，有 Supabase 金鑰時使用 Supabase，否則使用檔案
func (c *Config) ResolvedSource() string {
	if c.RecipientSource != SourceAuto && c.RecipientSource != "" {
		return c.RecipientSource
	}
	if c.SupabaseServiceRoleKey != "" {
		return SourceSupabase
	}
	return SourceFile
}

// Validate 檢查啟動必要設定，任何錯誤都應在發送前終止程式
func (c *Config) Validate() error {
	if len(c.ProviderOrder) == 0 {
		return fmt.Errorf("%w: PROVIDER_ORDER is empty", ErrNoProviders)
	}
	if c.DailySendLimit < 0 {
		return fmt.Errorf("DAILY_SEND_LIMIT must not be negative: %d", c.DailySendLimit)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive: %d", c.BatchSize)
	}
	if !fileExists(c.TemplatePath) {
		return fmt.Errorf("%w: %s", ErrNoTemplate, c.TemplatePath)
	}

	switch c.ResolvedSource() {
	case SourceFile:
		if !fileExists(c.RecipientsPath) {
			return fmt.Errorf("%w: %s", ErrNoRecipientsFile, c.RecipientsPath)
		}
	case SourceSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase source")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres source")
		}
	default:
		return fmt.Errorf("unknown RECIPIENT_SOURCE: %s", c.RecipientSource)
	}

	switch c.CheckpointBackend {
	case CheckpointFile, CheckpointKeyDB:
	default:
		return fmt.Errorf("unknown CHECKPOINT_BACKEND: %s", c.CheckpointBackend)
	}

	switch c.SMTPSecurity {
	case "starttls", "tls", "none":
	default:
		return fmt.Errorf("unknown SMTP_SECURITY: %s", c.SMTPSecurity)
	}

	return nil
}

// fileExists 檢查檔案是否存在
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// getEnv 取得環境變數，若不存在則回傳預設值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 取得環境變數並轉換為整數
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool 取得環境變數並轉換為布林值
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvAsSlice 取得環境變數並轉換為字串切片（以逗號分隔）
func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}
