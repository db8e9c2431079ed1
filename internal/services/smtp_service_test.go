package services

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
	"bulk-mailer/internal/smtp"
)

func startCaptureServer(t *testing.T) (*smtp.Server, string, int) {
	t.Helper()
	server := smtp.NewServer("mailer", "secret")
	addr, err := server.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Shutdown() })

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return server, host, port
}

func newTestSMTPService(host string, port int, password string) *SMTPService {
	return NewSMTPService(&config.Config{
		SMTPHost:        host,
		SMTPPort:        port,
		SMTPUsername:    "mailer",
		SMTPPassword:    password,
		SMTPSecurity:    "none",
		SMTPSenderEmail: "news@example.com",
		RequestTimeout:  5 * time.Second,
	})
}

func TestSMTPServiceSend(t *testing.T) {
	server, host, port := startCaptureServer(t)
	svc := newTestSMTPService(host, port, "secret")

	outcome := svc.Send(context.Background(), testMessage())
	require.True(t, outcome.IsSent(), outcome.Detail)

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "news@example.com", messages[0].From)
	assert.Equal(t, []string{"reader@example.com"}, messages[0].To)

	mr, err := mail.CreateReader(bytes.NewReader(messages[0].Data))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Weekly news", subject)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello</h1>", string(body))
}

func TestSMTPServiceAuthFailure(t *testing.T) {
	server, host, port := startCaptureServer(t)
	svc := newTestSMTPService(host, port, "wrong")

	outcome := svc.Send(context.Background(), testMessage())

	assert.Equal(t, models.FailureAuth, outcome.Class)
	assert.Equal(t, 535, outcome.StatusCode)
	assert.Empty(t, server.Messages())
}

func TestSMTPServiceAuthNotOffered(t *testing.T) {
	server, host, port := startCaptureServer(t)
	server.DisableAuth()
	svc := newTestSMTPService(host, port, "secret")

	outcome := svc.Send(context.Background(), testMessage())

	assert.Equal(t, models.FailureAuth, outcome.Class)
	assert.GreaterOrEqual(t, outcome.StatusCode, 500)
	assert.True(t, outcome.Class.Rotates())
	assert.Empty(t, server.Messages())
}

func TestSMTPServiceSendingLimit(t *testing.T) {
	server, host, port := startCaptureServer(t)
	server.RejectRecipients(550, "Daily user sending limit exceeded")
	svc := newTestSMTPService(host, port, "secret")

	outcome := svc.Send(context.Background(), testMessage())

	assert.Equal(t, models.FailureRateLimited, outcome.Class)
}

func TestSMTPServiceRejectedData(t *testing.T) {
	server, host, port := startCaptureServer(t)
	server.RejectData(554, "message rejected as spam")
	svc := newTestSMTPService(host, port, "secret")

	outcome := svc.Send(context.Background(), testMessage())

	assert.Equal(t, models.FailureUnknown, outcome.Class)
	assert.Equal(t, 554, outcome.StatusCode)
}

func TestSMTPServiceConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	outcome := newTestSMTPService("127.0.0.1", port, "secret").Send(context.Background(), testMessage())

	assert.Equal(t, models.FailureTransient, outcome.Class)
}
