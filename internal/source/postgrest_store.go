// internal/source/postgrest_store.go
// Supabase (PostgREST) 收件人資料表

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// PostgRESTStore Supabase REST 資料表
type PostgRESTStore struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

// postgrestRow 資料列 (id 可能是數字或字串)
type postgrestRow struct {
	ID    json.RawMessage `json:"id"`
	Email string          `json:"email"`
}

// NewPostgRESTStore 建立 Supabase 資料表存取
func NewPostgRESTStore(cfg *config.Config) *PostgRESTStore {
	return &PostgRESTStore{
		baseURL:    strings.TrimRight(cfg.SupabaseURL, "/"),
		apiKey:     cfg.SupabaseServiceRoleKey,
		table:      cfg.SupabaseTable,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Name 回傳資料表名稱
func (s *PostgRESTStore) Name() string {
	return "supabase:" + s.table
}

// tableURL 資料表端點
func (s *PostgRESTStore) tableURL(query url.Values) string {
	return fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, url.PathEscape(s.table), query.Encode())
}

// setHeaders 設定認證標頭
func (s *PostgRESTStore) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
}

// Fetch 取得未發送的資料列
func (s *PostgRESTStore) Fetch(ctx context.Context, after string, limit int) ([]models.Recipient, error) {
	query := url.Values{}
	query.Set("select", "id,email")
	query.Set("is_sent", "eq.false")
	query.Set("order", "id.asc")
	query.Set("limit", strconv.Itoa(limit))
	if after != "" {
		query.Set("id", "gt."+after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tableURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recipients: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch recipients failed with status %d: %s", resp.StatusCode, string(body))
	}

	var rows []postgrestRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}

	recipients := make([]models.Recipient, 0, len(rows))
	for _, row := range rows {
		recipients = append(recipients, models.Recipient{
			ID:    rawID(row.ID),
			Email: row.Email,
		})
	}
	return recipients, nil
}

// MarkSent 設定 is_sent=true
func (s *PostgRESTStore) MarkSent(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)

	body, _ := json.Marshal(map[string]bool{"is_sent": true})

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.tableURL(query), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mark recipient %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mark recipient %s failed with status %d: %s", id, resp.StatusCode, string(respBody))
	}
	return nil
}

// rawID 將 JSON id 轉為字串 (去除字串的引號)
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
