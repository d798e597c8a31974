package verifyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the REST client for the verification backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a verification API client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login triggers server-side verification for a login attempt, issuing the
// first challenge for the email.
func (c *Client) Login(ctx context.Context, req ResendRequest) (*ResendResponse, error) {
	var resp ResendResponse
	if err := c.post(ctx, "/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify submits a verification code.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.post(ctx, "/auth/verify", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resend requests a fresh verification code.
func (c *Client) Resend(ctx context.Context, req ResendRequest) (*ResendResponse, error) {
	var resp ResendResponse
	if err := c.post(ctx, "/auth/resend", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUser fetches a user profile by id.
func (c *Client) GetUser(ctx context.Context, accessToken, userID string) (*User, error) {
	var user User
	if err := c.get(ctx, "/users/"+userID, accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetRole fetches a role by id.
func (c *Client) GetRole(ctx context.Context, accessToken, roleID string) (*Role, error) {
	var role Role
	if err := c.get(ctx, "/roles/"+roleID, accessToken, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetPermissions fetches a permission map by id.
func (c *Client) GetPermissions(ctx context.Context, accessToken, permissionID string) (Permissions, error) {
	var perms Permissions
	if err := c.get(ctx, "/permissions/"+permissionID, accessToken, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// ReportLocation posts the location/device report. Fire-and-forget at the
// call site; the error is returned for logging only.
func (c *Client) ReportLocation(ctx context.Context, accessToken string, report TelemetryReport) error {
	return c.post(ctx, "/telemetry/location", accessToken, report, nil)
}

// ReportEvent posts a client-side telemetry event.
func (c *Client) ReportEvent(ctx context.Context, event interface{}) error {
	return c.post(ctx, "/telemetry/events", "", event, nil)
}

func (c *Client) post(ctx context.Context, path, accessToken string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody ErrorResponse
		if err := json.Unmarshal(data, &errBody); err != nil {
			slog.Debug("Non-JSON error body", "status", resp.StatusCode, "path", req.URL.Path)
		}
		return classifyError(resp.StatusCode, errBody)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
