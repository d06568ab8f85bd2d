// ABOUTME: CRM API client with bounded-timeout query transport
// ABOUTME: Fetches paginated remote company records with nested contacts and opportunities
package crm

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/opspulse/opspulse/config"
	"golang.org/x/oauth2"
)

const queryPageSize = 100

// Client pulls pipeline data from the external CRM. The cached access
// token is single-owner state inside the instance; no package-level
// mutable singleton exists.
type Client struct {
	cfg        config.CRMConfig
	db         *sql.DB
	httpClient *http.Client
	tokenPath  string
	now        func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

func NewClient(cfg config.CRMConfig, database *sql.DB) *Client {
	tokenPath := filepath.Join(xdg.DataHome, "opspulse", "crm-token.json")
	return &Client{
		cfg:        cfg,
		db:         database,
		httpClient: &http.Client{},
		tokenPath:  tokenPath,
		now:        time.Now,
		token:      loadToken(tokenPath),
	}
}

// WithClock overrides the time source, used in tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// WithTokenPath overrides (or with "" disables) token persistence.
func (c *Client) WithTokenPath(path string) *Client {
	c.tokenPath = path
	return c
}

func (c *Client) logf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// RemoteContact is a contact sub-record nested under a company.
type RemoteContact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// RemoteOpportunity is an opportunity sub-record nested under a company.
type RemoteOpportunity struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Stage     string   `json:"stage"`
	Amount    int64    `json:"amount"` // in cents
	Currency  string   `json:"currency,omitempty"`
	Owner     string   `json:"owner,omitempty"`
	CloseDate string   `json:"close_date,omitempty"` // YYYY-MM-DD
	Products  []string `json:"products,omitempty"`
}

// RemoteCompany is one company record from the CRM query endpoint.
type RemoteCompany struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Contacts      []RemoteContact     `json:"contacts,omitempty"`
	Opportunities []RemoteOpportunity `json:"opportunities,omitempty"`
}

type queryRequest struct {
	Object   string `json:"object"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type queryResponse struct {
	Companies []RemoteCompany `json:"companies"`
	HasMore   bool            `json:"has_more"`
}

// FetchCompanies retrieves the full remote company set page by page.
// Each request is bounded by the configured timeout; a call past the
// deadline is cancelled rather than left to hang.
func (c *Client) FetchCompanies(ctx context.Context) ([]RemoteCompany, error) {
	token, err := c.getOrRefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	var companies []RemoteCompany
	page := 1
	for {
		var resp queryResponse
		err := c.post(ctx, "/api/query", queryRequest{
			Object:   "companies",
			Page:     page,
			PageSize: queryPageSize,
		}, token, &resp)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch companies page %d: %w", page, err)
		}

		companies = append(companies, resp.Companies...)

		if !resp.HasMore {
			break
		}
		page++
	}

	return companies, nil
}

// post sends one JSON request with the per-call deadline applied. An
// empty token sends the request unauthenticated (the handshake calls).
func (c *Client) post(ctx context.Context, path string, body interface{}, token string, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}

	return nil
}
