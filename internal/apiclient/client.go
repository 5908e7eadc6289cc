// Package apiclient is the typed client for the remote forum API. It owns
// nothing but the transport: the bearer token is installed and removed by the
// session manager, and every response is decoded into the shared models.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forumcli/internal/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a forum API client. timeout bounds every request; there
// is no retry or cancellation layer beyond it.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetToken installs the bearer credential used on every subsequent request.
// Only the session manager writes it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer credential.
func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do executes one request against the API and returns the raw response body.
// Non-2xx responses and transport failures come back as *RemoteError.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Request to forum API failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Forum API request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newRemoteError(resp.StatusCode, data)
	}
	return data, nil
}

// decodeList accepts both response shapes the API is known to produce for
// collections: a bare JSON array and a {"data": [...]} envelope.
func decodeList[T any](data []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var envelope struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return envelope.Data, nil
}

// LoginResponse is the raw login payload. Different server builds name the
// credential field differently.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
}

// Credential returns the bearer token from whichever field the server used,
// or "" when the response carried none.
func (r *LoginResponse) Credential() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token. The caller decides whether
// the response actually contains one.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	data, err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var resp LoginResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	return &resp, nil
}

type registerRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Register creates a new account. The role is always submitted as "user";
// elevated roles are granted server-side.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/register", registerRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleUser,
	})
	return err
}
