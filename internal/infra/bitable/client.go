package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iudd/soradeno/internal/config"
	"github.com/iudd/soradeno/internal/domain"
	"github.com/iudd/soradeno/internal/domain/model"
	"github.com/iudd/soradeno/internal/domain/ports/repository"
)

// Compile-time assurance this client satisfies the port
var _ repository.RecordStore = (*Client)(nil)

// tokenSafetyMargin refreshes the tenant token 5 minutes before the provider
// says it expires.
const tokenSafetyMargin = 300

// Client talks to the bitable record store: tenant-token auth with in-memory
// caching, record listing, server-side pending filtering, and field-level
// updates. Retry policy belongs to callers, not here.
type Client struct {
	base         string
	appID        string
	appSecret    string
	appToken     string
	tableID      string
	defaultModel string

	client *http.Client
	log    *zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(cfg config.StoreConfig, defaultModel string, logger *zerolog.Logger) *Client {
	return &Client{
		base:         strings.TrimRight(cfg.BaseURL, "/"),
		appID:        cfg.AppID,
		appSecret:    cfg.AppSecret,
		appToken:     cfg.AppToken,
		tableID:      cfg.TableID,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 30 * time.Second},
		log:          logger,
	}
}

func (c *Client) Configured() bool {
	return c.appID != "" && c.appSecret != "" && c.appToken != "" && c.tableID != ""
}

// envelope is the provider's uniform response wrapper: code 0 means success,
// msg carries the failure reason.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// tenantToken returns a valid bearer token, reusing the cached one while it
// is still inside the safety margin.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/open-apis/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode: %v", domain.ErrAuth, err)
	}
	if payload.Code != 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrAuth, payload.Msg)
	}

	c.token = payload.TenantAccessToken
	c.tokenExp = time.Now().Add(time.Duration(payload.Expire-tokenSafetyMargin) * time.Second)
	c.log.Debug().Msg("tenant token refreshed")
	return c.token, nil
}

// call performs one authenticated request and unwraps the provider envelope.
func (c *Client) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	token, err := c.tenantToken(ctx)
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, domain.NewUpstreamError(resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode store response: %w", err)
	}
	if env.Code != 0 {
		if env.Code == 1254043 { // RecordIdNotFound
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewUpstreamError(resp.StatusCode, fmt.Sprintf("code %d: %s", env.Code, env.Msg))
	}
	return env.Data, nil
}

func (c *Client) recordsPath() string {
	return fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/records", c.appToken, c.tableID)
}

func (c *Client) ListAll(ctx context.Context, limit int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	data, err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s?page_size=%d", c.recordsPath(), limit), nil)
	if err != nil {
		return nil, err
	}
	return c.decodeItems(data)
}

// ListPending filters server-side: the table may hold far more rows than one
// page of ListAll, so the pending predicate (not generated yet, or status
// still pending) is pushed down to the store.
func (c *Client) ListPending(ctx context.Context, limit int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := map[string]any{
		"conjunction": "or",
		"conditions": []map[string]any{
			{"field_name": fieldIsGenerated, "operator": "is", "value": []any{false}},
			{"field_name": fieldStatus, "operator": "is", "value": []any{statusPending}},
		},
	}
	data, err := c.call(ctx, http.MethodPost, c.recordsPath()+"/search", map[string]any{
		"filter":    filter,
		"page_size": limit,
	})
	if err != nil {
		return nil, err
	}
	return c.decodeItems(data)
}

func (c *Client) decodeItems(data json.RawMessage) ([]*model.Task, error) {
	var payload struct {
		Items []record `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	tasks := make([]*model.Task, 0, len(payload.Items))
	for _, rec := range payload.Items {
		tasks = append(tasks, ParseTask(rec, c.defaultModel))
	}
	return tasks, nil
}

func (c *Client) Get(ctx context.Context, recordID string) (*model.Task, error) {
	data, err := c.call(ctx, http.MethodGet, c.recordsPath()+"/"+recordID, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Record *record `json:"record"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if payload.Record == nil {
		return nil, domain.ErrNotFound
	}
	return ParseTask(*payload.Record, c.defaultModel), nil
}

// linkCell encodes a URL the way the store schema expects: a (link,
// displayText) pair, never a bare string.
func linkCell(url, text string) map[string]string {
	return map[string]string{"link": url, "text": text}
}

func (c *Client) updateFields(ctx context.Context, recordID string, fields map[string]any) error {
	_, err := c.call(ctx, http.MethodPut, c.recordsPath()+"/"+recordID, map[string]any{
		"fields": fields,
	})
	return err
}

func (c *Client) MarkInProgress(ctx context.Context, recordID string) error {
	return c.updateFields(ctx, recordID, map[string]any{
		fieldStatus:      statusInProgress,
		fieldIsGenerated: false,
	})
}

func (c *Client) MarkSuccess(ctx context.Context, recordID string, results model.ResultSet) error {
	fields := map[string]any{
		fieldStatus:      statusSuccess,
		fieldIsGenerated: true,
		fieldCreatedTime: time.Now().UnixMilli(),
	}
	if results.PrimaryURL != "" {
		fields[fieldVideoURL] = linkCell(results.PrimaryURL, "查看视频")
	} else if results.MirrorURL != "" {
		// No direct media URL, point the main field at the mirror.
		fields[fieldVideoURL] = linkCell(results.MirrorURL, "查看视频")
	}
	if results.WatermarkFreeURL != "" {
		fields[fieldNoWatermark] = linkCell(results.WatermarkFreeURL, "无水印视频")
	}
	if results.MirrorURL != "" {
		fields[fieldMirrorURL] = linkCell(results.MirrorURL, "云盘链接")
	}
	return c.updateFields(ctx, recordID, fields)
}

func (c *Client) MarkFailed(ctx context.Context, recordID string, message string) error {
	return c.updateFields(ctx, recordID, map[string]any{
		fieldStatus:      statusFailed,
		fieldIsGenerated: false,
		fieldError:       domain.Truncate(message, 500),
	})
}

// AttachmentURL resolves an attachment file token to a temporary download
// URL via the drive API.
func (c *Client) AttachmentURL(ctx context.Context, fileToken string) (string, error) {
	if fileToken == "" {
		return "", domain.ErrNotFound
	}
	data, err := c.call(ctx, http.MethodGet, "/open-apis/drive/v1/files/"+fileToken+"/download", nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		DownloadURL string `json:"download_url"`
		URL         string `json:"url"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode download url: %w", err)
	}
	if payload.DownloadURL != "" {
		return payload.DownloadURL, nil
	}
	if payload.URL != "" {
		return payload.URL, nil
	}
	return "", domain.ErrNotFound
}
