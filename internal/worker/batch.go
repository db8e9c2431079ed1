// internal/worker/batch.go
// 批次發送 - 在每日上限內依序發送並輪替 provider

package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bulk-mailer/internal/logger"
	"bulk-mailer/internal/models"
	"bulk-mailer/internal/services"
	"bulk-mailer/internal/source"
)

// State 批次狀態
type State string

const (
	StateRunning           State = "running"
	StateCapReached        State = "cap_reached"
	StateSourceExhausted   State = "source_exhausted"
	StateProviderExhausted State = "provider_exhausted"
	StateCancelled         State = "cancelled"
)

// Options 批次參數
type Options struct {
	Cap            int
	Subject        string
	HTML           string
	RequestTimeout time.Duration
	RatePerMinute  int // 0 表示不限速
	Recorder       services.OutcomeRecorder
}

// BatchResult 批次執行結果
type BatchResult struct {
	RunID              string
	State              State
	Cap                int
	SentCount          int
	FailedAttempts     int
	Attempts           int
	ActiveProvider     string
	ExhaustedProviders []string
	StartedAt          time.Time
	FinishedAt         time.Time
}

// BatchDriver 批次發送
type BatchDriver struct {
	source    source.Source
	providers []services.Provider
	opts      Options
	limiter   *rate.Limiter
	log       *logger.Logger
}

// NewBatchDriver 建立批次發送
func NewBatchDriver(src source.Source, providers []services.Provider, opts Options, log *logger.Logger) *BatchDriver {
	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}

	return &BatchDriver{
		source:    src,
		providers: providers,
		opts:      opts,
		limiter:   limiter,
		log:       log.WithComponent("batch"),
	}
}

// Run 執行一次批次
// 單一收件人的失敗不會回傳 error，只會影響狀態轉移
func (d *BatchDriver) Run(ctx context.Context) (*BatchResult, error) {
	pool, err := services.NewProviderPool(d.providers)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		RunID:     uuid.NewString(),
		State:     StateRunning,
		Cap:       d.opts.Cap,
		StartedAt: time.Now(),
	}
	log := d.log.WithRunID(result.RunID)

	log.Info().
		Str("source", d.source.Name()).
		Str("providers", pool.String()).
		Int("limit", d.opts.Cap).
		Msg("starting batch")

	// 觸發輪替的收件人會在新的 provider 上立即重試
	var retry *models.Recipient

	for result.State == StateRunning {
		if result.SentCount >= d.opts.Cap {
			result.State = StateCapReached
			break
		}
		if ctx.Err() != nil {
			result.State = StateCancelled
			break
		}

		recipient := retry
		retry = nil
		if recipient == nil {
			recipient, err = d.source.Next(ctx)
			if err != nil {
				switch {
				case errors.Is(err, source.ErrPaused):
					log.Info().Msg("recipient source paused at a postponed recipient, stopping for today")
				case !errors.Is(err, source.ErrExhausted):
					log.Error().Err(err).Msg("failed to read next recipient")
				}
				result.State = StateSourceExhausted
				break
			}
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				result.State = StateCancelled
				break
			}
		}

		provider := pool.Active()
		outcome := d.dispatch(ctx, provider, recipient)
		result.Attempts++

		if outcome.IsSent() {
			result.SentCount++
			log.Info().
				Str("provider", provider.Name()).
				Str("email", recipient.Email).
				Int("sent", result.SentCount).
				Int("limit", d.opts.Cap).
				Msg("sent")

			if err := d.source.MarkSent(ctx, recipient); err != nil {
				log.Warn().Err(err).Str("email", recipient.Email).Msg("failed to mark recipient as sent")
			}
			d.record(ctx, log, result, provider, recipient, outcome)
			continue
		}

		result.FailedAttempts++
		d.record(ctx, log, result, provider, recipient, outcome)

		if !outcome.Class.Rotates() {
			log.Error().
				Str("provider", provider.Name()).
				Str("email", recipient.Email).
				Str("failure", outcome.Class.String()).
				Int("status", outcome.StatusCode).
				Str("detail", outcome.Detail).
				Msg("send failed")

			// 暫時性錯誤留待下次執行，不在本次重試
			if outcome.Class == models.FailureTransient {
				if err := d.source.Postpone(ctx, recipient); err != nil {
					log.Warn().Err(err).Str("email", recipient.Email).Msg("failed to postpone recipient")
				}
			}
			continue
		}

		event := log.Warn()
		if outcome.Class == models.FailureAuth {
			event = log.Error()
		}
		event.
			Str("provider", provider.Name()).
			Str("email", recipient.Email).
			Str("failure", outcome.Class.String()).
			Int("status", outcome.StatusCode).
			Str("detail", outcome.Detail).
			Msg("provider unusable for the rest of this run")

		if !pool.ExhaustActive() {
			log.Error().Msg("all providers hit their limits, stopping for today")
			result.State = StateProviderExhausted
			break
		}

		log.Info().Str("provider", pool.Active().Name()).Msg("rotated provider")
		retry = recipient
	}

	result.ActiveProvider = pool.Active().Name()
	result.ExhaustedProviders = pool.ExhaustedNames()
	result.FinishedAt = time.Now()

	log.Info().
		Str("state", string(result.State)).
		Int("sent", result.SentCount).
		Int("failed_attempts", result.FailedAttempts).
		Strs("exhausted_providers", result.ExhaustedProviders).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("batch complete")

	return result, nil
}

// dispatch 以單次請求逾時發送
func (d *BatchDriver) dispatch(ctx context.Context, provider services.Provider, recipient *models.Recipient) models.SendOutcome {
	sendCtx := ctx
	if d.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.opts.RequestTimeout)
		defer cancel()
	}

	return provider.Send(sendCtx, &models.Message{
		To:      recipient.Email,
		Subject: d.opts.Subject,
		HTML:    d.opts.HTML,
	})
}

// record 寫入發送紀錄，失敗只記 log
func (d *BatchDriver) record(ctx context.Context, log *logger.Logger, result *BatchResult, provider services.Provider, recipient *models.Recipient, outcome models.SendOutcome) {
	if d.opts.Recorder == nil {
		return
	}

	attempt := &models.Attempt{
		RunID:       result.RunID,
		RecipientID: recipient.ID,
		Email:       recipient.Email,
		Provider:    provider.Name(),
		Status:      models.AttemptStatusSent,
		SentCount:   result.SentCount,
		AttemptedAt: time.Now().UTC(),
	}
	if !outcome.IsSent() {
		attempt.Status = models.AttemptStatusFailed
		attempt.Failure = outcome.Class.String()
		attempt.StatusCode = outcome.StatusCode
		attempt.ErrorMessage = outcome.Detail
	}

	if err := d.opts.Recorder.Record(ctx, attempt); err != nil {
		log.Warn().Err(err).Str("email", recipient.Email).Msg("failed to record outcome")
	}
}
