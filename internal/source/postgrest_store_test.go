package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-mailer/internal/config"
)

func newTestPostgRESTStore(t *testing.T, handler http.HandlerFunc) *PostgRESTStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewPostgRESTStore(&config.Config{
		SupabaseURL:            srv.URL + "/",
		SupabaseServiceRoleKey: "service-key",
		SupabaseTable:          "email_list",
		RequestTimeout:         5 * time.Second,
	})
}

func TestPostgRESTStoreFetch(t *testing.T) {
	var query map[string][]string
	store := newTestPostgRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/email_list", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		query = r.URL.Query()
		_, _ = w.Write([]byte(`[{"id":7,"email":"a@example.com"},{"id":"9","email":"b@example.com"}]`))
	})

	rows, err := store.Fetch(context.Background(), "5", 2)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[0].ID)
	assert.Equal(t, "a@example.com", rows[0].Email)
	assert.Equal(t, "9", rows[1].ID)

	assert.Equal(t, []string{"id,email"}, query["select"])
	assert.Equal(t, []string{"eq.false"}, query["is_sent"])
	assert.Equal(t, []string{"id.asc"}, query["order"])
	assert.Equal(t, []string{"2"}, query["limit"])
	assert.Equal(t, []string{"gt.5"}, query["id"])
	assert.Equal(t, "supabase:email_list", store.Name())
}

func TestPostgRESTStoreFetchFirstPage(t *testing.T) {
	store := newTestPostgRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[]`))
	})

	rows, err := store.Fetch(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPostgRESTStoreFetchError(t *testing.T) {
	store := newTestPostgRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
	})

	_, err := store.Fetch(context.Background(), "", 10)
	assert.ErrorContains(t, err, "401")
}

func TestPostgRESTStoreMarkSent(t *testing.T) {
	var body map[string]bool
	store := newTestPostgRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.7", r.URL.Query().Get("id"))
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, store.MarkSent(context.Background(), "7"))
	assert.Equal(t, map[string]bool{"is_sent": true}, body)
}

func TestPostgRESTStoreMarkSentError(t *testing.T) {
	store := newTestPostgRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	assert.Error(t, store.MarkSent(context.Background(), "7"))
}
