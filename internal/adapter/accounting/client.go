package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sernascript/tollsync/internal/domain"
	"github.com/sernascript/tollsync/internal/usecase/ledger"
)

// tokenSkew is subtracted from the reported token lifetime so a token is
// refreshed before the server actually expires it
const tokenSkew = 30 * time.Second

// Config holds the accounting API connection settings
type Config struct {
	BaseURL   string
	Username  string
	AccessKey string
}

// Client talks to the external accounting API. The bearer token is cached
// on the client value with its expiry, never in package state, so separate
// clients never share sessions.
type Client struct {
	cfg  Config
	http *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new accounting API client
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type authRequest struct {
	Username  string `json:"username"`
	AccessKey string `json:"access_key"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// Authenticate obtains a bearer token, reusing the cached one while it is
// still valid
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(authRequest{
		Username:  c.cfg.Username,
		AccessKey: c.cfg.AccessKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.SubmissionError{Status: resp.StatusCode, Message: string(raw)}
	}

	var auth authResponse
	if err := json.Unmarshal(raw, &auth); err != nil {
		return "", fmt.Errorf("failed to parse auth response: %w", err)
	}
	if auth.AccessToken == "" {
		return "", fmt.Errorf("auth response carried no access token")
	}

	c.token = auth.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(auth.ExpiresIn)*time.Second - tokenSkew)
	return c.token, nil
}

// ClearToken discards the cached bearer token so the next call
// re-authenticates
func (c *Client) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.tokenExpiry = time.Time{}
}

// CreatePurchase submits a purchase entry and returns its ledger identifier
func (c *Client) CreatePurchase(ctx context.Context, payload *ledger.PurchasePayload) (*ledger.CreateResult, error) {
	return c.create(ctx, "/v1/purchases", payload)
}

// CreateJournal submits a journal voucher and returns its ledger identifier
func (c *Client) CreateJournal(ctx context.Context, payload *ledger.JournalPayload) (*ledger.CreateResult, error) {
	return c.create(ctx, "/v1/journals", payload)
}

// create posts a payload to the given path. A 401 clears the cached token
// and retries exactly once with a fresh one.
func (c *Client) create(ctx context.Context, path string, payload interface{}) (*ledger.CreateResult, error) {
	result, status, err := c.post(ctx, path, payload)
	if status == http.StatusUnauthorized {
		c.ClearToken()
		result, _, err = c.post(ctx, path, payload)
	}
	return result, err
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*ledger.CreateResult, int, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, 0, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &domain.SubmissionError{Status: resp.StatusCode, Message: string(raw)}
	}

	var result ledger.CreateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	result.Raw = string(raw)
	return &result, resp.StatusCode, nil
}

// GetCostCenters fetches the cost center dimension from the accounting
// system for local synchronization
func (c *Client) GetCostCenters(ctx context.Context) ([]*domain.CostCenter, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/cost-centers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cost centers request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cost centers request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cost centers response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.SubmissionError{Status: resp.StatusCode, Message: string(raw)}
	}

	var rows []struct {
		ID     int    `json:"id"`
		Code   string `json:"code"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse cost centers response: %w", err)
	}

	centers := make([]*domain.CostCenter, 0, len(rows))
	for _, row := range rows {
		centers = append(centers, &domain.CostCenter{
			ID:     row.ID,
			Code:   row.Code,
			Name:   row.Name,
			Active: row.Active,
		})
	}
	return centers, nil
}
