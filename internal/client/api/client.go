// Package api is the HTTP client for the Bix backend. Credentials are kept in
// device-local storage so they survive between invocations.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/session"
)

// CredentialsKey is the device-local storage key holding the signed-in session.
const CredentialsKey = "bix-auth-session"

// ErrNotSignedIn is returned by calls that need an account when none is stored.
var ErrNotSignedIn = errors.New("not signed in")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// Credentials is the persisted form of a signed-in session.
type Credentials struct {
	Tokens models.SessionTokens `json:"tokens"`
	User   session.AuthUser     `json:"user"`
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to one Bix backend.
type Client struct {
	baseURL string
	http    *http.Client
	storage session.Storage
	logger  *slog.Logger

	mu sync.Mutex
}

// New returns a Client for baseURL that keeps credentials in storage.
func New(baseURL string, storage session.Storage, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		storage: storage,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials returns the stored session, if any.
func (c *Client) Credentials() (Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *Client) loadLocked() (Credentials, bool) {
	raw, err := c.storage.Get(CredentialsKey)
	if err != nil {
		if !errors.Is(err, session.ErrKeyNotFound) {
			c.logger.Warn("read stored credentials", "error", err)
		}
		return Credentials{}, false
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil || creds.Tokens.AccessToken == "" {
		c.logger.Warn("discarding unreadable credentials")
		return Credentials{}, false
	}
	return creds, true
}

func (c *Client) saveCredentials(creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage.Set(CredentialsKey, string(raw))
}

func (c *Client) clearCredentials() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage.Remove(CredentialsKey)
}

// refresh swaps the stored refresh token for a new pair.
func (c *Client) refresh(ctx context.Context) (Credentials, error) {
	creds, ok := c.Credentials()
	if !ok {
		return Credentials{}, ErrNotSignedIn
	}

	var resp struct {
		Tokens models.SessionTokens `json:"tokens"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refreshToken": creds.Tokens.RefreshToken}, &resp); err != nil {
		return Credentials{}, err
	}

	creds.Tokens = resp.Tokens
	if err := c.saveCredentials(creds); err != nil {
		return Credentials{}, fmt.Errorf("store refreshed credentials: %w", err)
	}
	c.logger.Debug("refreshed access token", "user_id", creds.User.ID)
	return creds, nil
}

// doAuthed runs an authenticated call, refreshing the access token once when
// the backend rejects it.
func (c *Client) doAuthed(ctx context.Context, call func(token string) error) error {
	creds, ok := c.Credentials()
	if !ok {
		return ErrNotSignedIn
	}

	err := call(creds.Tokens.AccessToken)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}

	creds, err = c.refresh(ctx)
	if err != nil {
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return ErrNotSignedIn
		}
		return err
	}
	return call(creds.Tokens.AccessToken)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, token, out)
}

func (c *Client) send(req *http.Request, token string, out any) error {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &auth.Error{Category: auth.CategoryNetworkRequestFailed, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.Code = payload.Code
		}
		c.logger.Debug("request rejected", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// authError converts a backend rejection into the categorized auth error.
func authError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	return &auth.Error{Category: auth.CategoryFromCode(apiErr.Code), Detail: apiErr.Message}
}

func query(values map[string]string) string {
	q := url.Values{}
	for k, v := range values {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
