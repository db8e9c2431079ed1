package app

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-mailer/internal/checkpoint"
	"bulk-mailer/internal/config"
	"bulk-mailer/internal/logger"
	"bulk-mailer/internal/services"
	"bulk-mailer/internal/smtp"
	"bulk-mailer/internal/source"
	"bulk-mailer/internal/worker"
)

func TestProvidersFollowOrder(t *testing.T) {
	cfg := &config.Config{
		ProviderOrder:         []string{"graph", "Brevo", "brevo", "sendgrid", "mailtrap", "smtp", "pigeon"},
		SendGridAPIKey:        "sg",
		SMTPHost:              "smtp.example.com",
		BrevoAPIKey:           "br",
		MicrosoftTenantID:     "tenant",
		MicrosoftClientID:     "client",
		MicrosoftClientSecret: "secret",
	}

	providers, err := New(cfg, logger.Nop()).Providers()
	require.NoError(t, err)

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	// mailtrap 沒有憑證、smtp 缺少帳號、pigeon 不存在
	assert.Equal(t, []string{"graph", "brevo", "sendgrid"}, names)
}

func TestProvidersNoneConfigured(t *testing.T) {
	_, err := New(&config.Config{ProviderOrder: []string{"sendgrid"}}, logger.Nop()).Providers()
	assert.ErrorIs(t, err, config.ErrNoProviders)
}

func TestStatusFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	a := New(&config.Config{KeyDBURL: mr.Addr(), KeyDBStatusTTL: time.Hour}, logger.Nop())
	t.Cleanup(func() { a.Close() })
	ctx := context.Background()

	_, err := a.Status(ctx, "missing@example.com")
	assert.ErrorIs(t, err, services.ErrStatusNotFound)

	require.NoError(t, mr.Set("bulkmailer:status:a@example.com",
		`{"email":"a@example.com","status":"sent","provider":"brevo","run_id":"run-1","last_updated":"2026-10-15T08:00:00Z"}`))

	status, err := a.Status(ctx, "A@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sent", status.Status)
	assert.Equal(t, "brevo", status.Provider)
}

func TestSourceSelection(t *testing.T) {
	dir := t.TempDir()

	fileSrc, err := New(&config.Config{
		RecipientSource:   config.SourceFile,
		RecipientsPath:    filepath.Join(dir, "recipients.txt"),
		ProgressFile:      filepath.Join(dir, ".send_progress_offset"),
		CheckpointBackend: config.CheckpointFile,
	}, logger.Nop()).Source()
	require.NoError(t, err)
	assert.IsType(t, &source.FileSource{}, fileSrc)

	remoteSrc, err := New(&config.Config{
		RecipientSource:        config.SourceAuto,
		SupabaseURL:            "https://project.supabase.co",
		SupabaseServiceRoleKey: "key",
		SupabaseTable:          "email_list",
		BatchSize:              10,
	}, logger.Nop()).Source()
	require.NoError(t, err)
	assert.Equal(t, "supabase:email_list", remoteSrc.Name())
}

func TestCheckpointKeyDB(t *testing.T) {
	mr := miniredis.RunT(t)
	a := New(&config.Config{
		CheckpointBackend: config.CheckpointKeyDB,
		CheckpointKey:     "bulkmailer:checkpoint",
		KeyDBURL:          mr.Addr(),
	}, logger.Nop())
	t.Cleanup(func() { a.Close() })

	store, err := a.Checkpoint()
	require.NoError(t, err)
	assert.IsType(t, &checkpoint.KeyDBStore{}, store)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, 99))
	assert.Equal(t, int64(99), store.Load(ctx))
	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, int64(0), store.Load(ctx))
}

func TestRunFileModeOverSMTP(t *testing.T) {
	server := smtp.NewServer("mailer", "secret")
	addr, err := server.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Shutdown() })

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	dir := t.TempDir()
	template := filepath.Join(dir, "customer_email.html")
	recipients := filepath.Join(dir, "recipients.txt")
	require.NoError(t, os.WriteFile(template, []byte("<p>Hello</p>"), 0o644))
	require.NoError(t, os.WriteFile(recipients, []byte("a@example.com\n# skip\nb@example.com\nc@example.com\n"), 0o644))

	mr := miniredis.RunT(t)

	cfg := &config.Config{
		DailySendLimit:     2,
		BatchSize:          10,
		RequestTimeout:     5 * time.Second,
		Subject:            "Newsletter",
		TemplatePath:       template,
		RecipientSource:    config.SourceFile,
		RecipientsPath:     recipients,
		CheckpointBackend:  config.CheckpointFile,
		ProgressFile:       filepath.Join(dir, ".send_progress_offset"),
		KeyDBURL:           mr.Addr(),
		KeyDBStatusTTL:     time.Hour,
		StatusCacheEnabled: true,
		SuccessLog:         filepath.Join(dir, "sent.txt"),
		FailedLog:          filepath.Join(dir, "failed.txt"),
		ProviderOrder:      []string{"smtp"},
		SMTPHost:           host,
		SMTPPort:           port,
		SMTPUsername:       "mailer",
		SMTPPassword:       "secret",
		SMTPSecurity:       "none",
		SMTPSenderEmail:    "news@example.com",
	}

	a := New(cfg, logger.Nop())
	t.Cleanup(func() { a.Close() })

	result, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, worker.StateCapReached, result.State)
	assert.Equal(t, 2, result.SentCount)
	assert.Len(t, server.Messages(), 2)

	sent, err := os.ReadFile(cfg.SuccessLog)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com\nb@example.com\n", string(sent))

	progress, err := os.ReadFile(cfg.ProgressFile)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(len("a@example.com\n# skip\nb@example.com\n")), string(progress))

	assert.True(t, mr.Exists("bulkmailer:status:b@example.com"))
}

func TestRunMissingTemplate(t *testing.T) {
	cfg := &config.Config{TemplatePath: filepath.Join(t.TempDir(), "missing.html")}

	_, err := New(cfg, logger.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, config.ErrNoTemplate)
}
