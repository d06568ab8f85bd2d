// ABOUTME: CRM access token lifecycle with cached expiry and disk persistence
// ABOUTME: Performs the two-step sign-in/token-exchange handshake only when the cache is stale
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// tokenExpiryMargin is the safety margin before expiry at which a cached
// token is discarded and a new handshake performed.
const tokenExpiryMargin = 60 * time.Second

type signInResponse struct {
	SessionID string `json:"session_id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// getOrRefreshToken returns a usable access token, reusing the cached
// one whenever its expiry is more than the safety margin away. The cache
// is private to this client instance; nothing else reads or mutates it.
func (c *Client) getOrRefreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.token.Expiry.After(c.now().Add(tokenExpiryMargin)) {
		return c.token.AccessToken, nil
	}

	token, err := c.handshake(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	if c.tokenPath != "" {
		if err := saveToken(c.tokenPath, token); err != nil {
			// Persistence is an optimization across restarts, not a
			// correctness requirement.
			c.logf("warning: failed to persist CRM token: %v", err)
		}
	}

	return token.AccessToken, nil
}

// handshake performs the two-step exchange: credential sign-in for a
// session, then session for a short-lived access token.
func (c *Client) handshake(ctx context.Context) (*oauth2.Token, error) {
	var signIn signInResponse
	err := c.post(ctx, "/api/login", map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
	}, "", &signIn)
	if err != nil {
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}
	if signIn.SessionID == "" {
		return nil, fmt.Errorf("sign-in failed: empty session id")
	}

	var tok tokenResponse
	err = c.post(ctx, "/api/token", map[string]string{
		"session_id": signIn.SessionID,
	}, "", &tok)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token exchange failed: empty access token")
	}

	return &oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   "Bearer",
		Expiry:      c.now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}

// saveToken writes the token with restricted permissions.
func saveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// loadToken reads a previously persisted token. A missing or unreadable
// file just means a fresh handshake at first use.
func loadToken(path string) *oauth2.Token {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil
	}

	return &token
}
