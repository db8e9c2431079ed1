// internal/app/app.go
// 應用程式組裝 - 依設定建立 provider、收件來源、checkpoint 與發送紀錄

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"bulk-mailer/internal/checkpoint"
	"bulk-mailer/internal/config"
	"bulk-mailer/internal/logger"
	"bulk-mailer/internal/models"
	"bulk-mailer/internal/services"
	"bulk-mailer/internal/source"
	"bulk-mailer/internal/worker"
	"bulk-mailer/pkg/microsoft"
)

// ResettableStore 可重置的 checkpoint
type ResettableStore interface {
	checkpoint.Store
	Reset(ctx context.Context) error
}

// App 一次執行所需的元件
type App struct {
	cfg *config.Config
	log *logger.Logger

	keydb   *redis.Client
	closers []func() error
}

// New 建立 App
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{cfg: cfg, log: log}
}

// configurableProvider 可檢查憑證的 provider
type configurableProvider interface {
	services.Provider
	IsConfigured() bool
}

// Providers 依 PROVIDER_ORDER 建立已設定憑證的 provider
// 未知名稱與重複名稱會被略過
func (a *App) Providers() ([]services.Provider, error) {
	providers := make([]services.Provider, 0, len(a.cfg.ProviderOrder))
	seen := make(map[string]bool)

	for _, name := range a.cfg.ProviderOrder {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			continue
		}
		seen[name] = true

		provider := a.newProvider(name)
		if provider == nil {
			a.log.Warn().Str("provider", name).Msg("unknown provider in PROVIDER_ORDER")
			continue
		}
		if !provider.IsConfigured() {
			a.log.Debug().Str("provider", name).Msg("provider has no credentials, skipped")
			continue
		}
		providers = append(providers, provider)
	}

	if len(providers) == 0 {
		return nil, config.ErrNoProviders
	}
	return providers, nil
}

// newProvider 依名稱建立 provider
func (a *App) newProvider(name string) configurableProvider {
	switch name {
	case "sendgrid":
		return services.NewSendGridService(a.cfg)
	case "mailtrap":
		return services.NewMailtrapService(a.cfg)
	case "brevo":
		return services.NewBrevoService(a.cfg)
	case "smtp":
		return services.NewSMTPService(a.cfg)
	case "graph":
		oauth := microsoft.NewOAuthService(
			a.cfg.MicrosoftTenantID,
			a.cfg.MicrosoftClientID,
			a.cfg.MicrosoftClientSecret,
			nil,
		)
		return services.NewGraphMailService(a.cfg, oauth)
	default:
		return nil
	}
}

// Status 查詢收件人在 KeyDB 中的最後發送狀態
func (a *App) Status(ctx context.Context, email string) (*models.AttemptStatusCache, error) {
	client, err := a.keyDB()
	if err != nil {
		return nil, err
	}
	return services.NewKeyDBService(client, a.cfg.KeyDBStatusTTL).GetStatus(ctx, email)
}

// Checkpoint 建立 checkpoint 後端
func (a *App) Checkpoint() (ResettableStore, error) {
	switch a.cfg.CheckpointBackend {
	case config.CheckpointKeyDB:
		client, err := a.keyDB()
		if err != nil {
			return nil, err
		}
		return checkpoint.NewKeyDBStore(client, a.cfg.CheckpointKey, a.log), nil
	case config.CheckpointFile, "":
		return checkpoint.NewFileStore(a.cfg.ProgressFile, a.log), nil
	default:
		return nil, fmt.Errorf("unknown CHECKPOINT_BACKEND: %s", a.cfg.CheckpointBackend)
	}
}

// Source 依 RECIPIENT_SOURCE 建立收件來源
func (a *App) Source() (source.Source, error) {
	switch a.cfg.ResolvedSource() {
	case config.SourceFile:
		store, err := a.Checkpoint()
		if err != nil {
			return nil, err
		}
		return source.NewFileSource(a.cfg.RecipientsPath, store, a.log), nil

	case config.SourceSupabase:
		store := source.NewPostgRESTStore(a.cfg)
		return source.NewRemoteSource(store, a.cfg.BatchSize, a.cfg.RequestTimeout, a.log), nil

	case config.SourcePostgres:
		db, err := source.OpenDatabase(a.cfg)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		store := source.NewPostgresStore(db, a.cfg.RecipientTable)
		return source.NewRemoteSource(store, a.cfg.BatchSize, a.cfg.RequestTimeout, a.log), nil

	default:
		return nil, fmt.Errorf("unknown RECIPIENT_SOURCE: %s", a.cfg.RecipientSource)
	}
}

// Recorder 建立發送紀錄 (journal、KeyDB 狀態快取、RabbitMQ)
func (a *App) Recorder() (services.OutcomeRecorder, error) {
	recorders := services.MultiRecorder{services.NewJournalService(a.cfg)}

	if a.cfg.StatusCacheEnabled {
		client, err := a.keyDB()
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, services.NewKeyDBService(client, a.cfg.KeyDBStatusTTL))
	}

	if a.cfg.RabbitMQURL != "" && a.cfg.OutcomeQueueName != "" {
		queue, err := services.NewQueueService(a.cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, queue.Close)
		recorders = append(recorders, queue)
	}

	return recorders, nil
}

// Run 執行一次批次發送
func (a *App) Run(ctx context.Context) (*worker.BatchResult, error) {
	html, err := os.ReadFile(a.cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrNoTemplate, err)
	}

	providers, err := a.Providers()
	if err != nil {
		return nil, err
	}
	src, err := a.Source()
	if err != nil {
		return nil, err
	}
	recorder, err := a.Recorder()
	if err != nil {
		return nil, err
	}

	driver := worker.NewBatchDriver(src, providers, worker.Options{
		Cap:            a.cfg.DailySendLimit,
		Subject:        a.cfg.Subject,
		HTML:           string(html),
		RequestTimeout: a.cfg.RequestTimeout,
		RatePerMinute:  a.cfg.SendRatePerMinute,
		Recorder:       recorder,
	}, a.log)

	result, err := driver.Run(ctx)
	if err != nil {
		return nil, err
	}

	if a.cfg.IsGitHubActions {
		a.log.Info().
			Str("progress_file", a.cfg.ProgressFile).
			Msg("running under GitHub Actions, persist the progress file between scheduled runs")
	}
	return result, nil
}

// Close 釋放連線
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// keyDB 共用 KeyDB 連線
func (a *App) keyDB() (*redis.Client, error) {
	if a.keydb != nil {
		return a.keydb, nil
	}
	client, err := services.NewKeyDBClient(a.cfg)
	if err != nil {
		return nil, err
	}
	a.keydb = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}
