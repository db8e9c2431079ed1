package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

func sentAttempt(email string) *models.Attempt {
	return &models.Attempt{
		RunID:       "run-1",
		Email:       email,
		Provider:    "brevo",
		Status:      models.AttemptStatusSent,
		SentCount:   1,
		AttemptedAt: time.Now().UTC(),
	}
}

func failedAttempt(email string) *models.Attempt {
	return &models.Attempt{
		RunID:        "run-1",
		Email:        email,
		Provider:     "sendgrid",
		Status:       models.AttemptStatusFailed,
		Failure:      models.FailureRateLimited.String(),
		StatusCode:   429,
		ErrorMessage: "too many\nrequests",
		AttemptedAt:  time.Now().UTC(),
	}
}

func TestJournalServiceRecord(t *testing.T) {
	dir := t.TempDir()
	svc := NewJournalService(&config.Config{
		SuccessLog: filepath.Join(dir, "sent.txt"),
		FailedLog:  filepath.Join(dir, "failed.txt"),
	})
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, sentAttempt("a@example.com")))
	require.NoError(t, svc.Record(ctx, sentAttempt("b@example.com")))
	require.NoError(t, svc.Record(ctx, failedAttempt("c@example.com")))

	sent, err := os.ReadFile(filepath.Join(dir, "sent.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com\nb@example.com\n", string(sent))

	failed, err := os.ReadFile(filepath.Join(dir, "failed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "c@example.com\tsendgrid\trate_limited\ttoo many requests\n", string(failed))
}

func TestJournalServiceDisabled(t *testing.T) {
	svc := NewJournalService(&config.Config{})
	assert.NoError(t, svc.Record(context.Background(), sentAttempt("a@example.com")))
	assert.NoError(t, svc.Record(context.Background(), failedAttempt("a@example.com")))
}

func setupTestKeyDB(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestKeyDBServiceRecord(t *testing.T) {
	client, mr := setupTestKeyDB(t)
	svc := NewKeyDBService(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, failedAttempt("Reader@Example.com")))

	status, err := svc.GetStatus(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "sendgrid", status.Provider)
	assert.Equal(t, "run-1", status.RunID)
	assert.True(t, mr.TTL("bulkmailer:status:reader@example.com") > 0)

	require.NoError(t, svc.Record(ctx, sentAttempt("reader@example.com")))
	status, err = svc.GetStatus(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sent", status.Status)
	assert.Equal(t, "brevo", status.Provider)
}

func TestKeyDBServiceStatusNotFound(t *testing.T) {
	client, _ := setupTestKeyDB(t)
	svc := NewKeyDBService(client, time.Hour)

	_, err := svc.GetStatus(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

// fakeChannel 記錄發布內容的 amqp channel
type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestQueueServiceRecord(t *testing.T) {
	ch := &fakeChannel{}
	svc := newQueueServiceWithChannel("mail_outcomes", ch)

	require.NoError(t, svc.Record(context.Background(), sentAttempt("a@example.com")))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "mail_outcomes", ch.keys[0])
	assert.Equal(t, "sent", ch.published[0].Type)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

	var attempt models.Attempt
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &attempt))
	assert.Equal(t, "a@example.com", attempt.Email)
	assert.Equal(t, "run-1", attempt.RunID)

	require.NoError(t, svc.Close())
	assert.True(t, ch.closed)
}

// countingRecorder 計數用 recorder
type countingRecorder struct {
	calls int
	err   error
}

func (r *countingRecorder) Record(context.Context, *models.Attempt) error {
	r.calls++
	return r.err
}

func TestMultiRecorderCallsAll(t *testing.T) {
	failing := &countingRecorder{err: errors.New("keydb down")}
	ok := &countingRecorder{}
	multi := MultiRecorder{failing, ok}

	err := multi.Record(context.Background(), sentAttempt("a@example.com"))

	assert.ErrorContains(t, err, "keydb down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
