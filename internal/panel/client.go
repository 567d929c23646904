// Package panel is a thin client for the Pterodactyl application API.
// Each operation issues one authenticated HTTP call and reports failures
// as *APIError; retry policy is left to the caller.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pterodactyl-service/internal/util"

	"go.uber.org/zap"
)

// APIError is a non-success response or transport failure from the panel
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("panel api error (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the Pterodactyl application API
type Client struct {
	baseURL    string
	apiKey     string
	ssoSecret  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a panel client. Credentials are injected here rather
// than read from ambient settings so the client stays testable.
func NewClient(baseURL, apiKey, ssoSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		ssoSecret: ssoSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: util.GetLogger(),
	}
}

// Server holds the panel-side attributes of a provisioned server
type Server struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	UUID       string `json:"uuid"`
	Name       string `json:"name"`
	Suspended  bool   `json:"suspended"`
	Allocation int64  `json:"allocation"`
	Node       int64  `json:"node"`
}

// User holds the panel-side attributes of a panel user
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Limits is the server resource envelope
type Limits struct {
	Memory int `json:"memory"`
	Swap   int `json:"swap"`
	Disk   int `json:"disk"`
	IO     int `json:"io"`
	CPU    int `json:"cpu"`
}

// FeatureLimits caps panel features per server
type FeatureLimits struct {
	Databases   int `json:"databases"`
	Backups     int `json:"backups"`
	Allocations int `json:"allocations"`
}

// Deploy targets server placement at creation time
type Deploy struct {
	Locations   []int64  `json:"locations"`
	DedicatedIP bool     `json:"dedicated_ip"`
	PortRange   []string `json:"port_range"`
}

// CreateServerRequest is the payload for server creation
type CreateServerRequest struct {
	Name           string            `json:"name"`
	User           int64             `json:"user"`
	Egg            int64             `json:"egg"`
	DockerImage    string            `json:"docker_image"`
	Startup        string            `json:"startup"`
	Environment    map[string]string `json:"environment"`
	Limits         Limits            `json:"limits"`
	FeatureLimits  FeatureLimits     `json:"feature_limits"`
	Deploy         Deploy            `json:"deploy"`
	ExternalID     string            `json:"external_id"`
	StartOnInstall bool              `json:"start_on_completion"`
}

// BuildServerRequest is the payload for resource envelope updates
type BuildServerRequest struct {
	Allocation    int64         `json:"allocation"`
	Limits        Limits        `json:"limits"`
	FeatureLimits FeatureLimits `json:"feature_limits"`
}

// CreateUserRequest is the payload for user creation
type CreateUserRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// UpdateUserRequest is the payload for user updates
type UpdateUserRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password,omitempty"`
}

// attributes is the panel's single-object response envelope
type attributes struct {
	Attributes json.RawMessage `json:"attributes"`
}

// list is the panel's collection response envelope
type list struct {
	Data []attributes `json:"data"`
}

// do issues one request and decodes the response body into out (when out
// is non-nil). Non-2xx responses become *APIError with the panel-supplied
// message when one is present.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	start := time.Now()
	status := "error"
	defer func() {
		util.PanelRequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Panel request failed",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w (body: %s)", err, string(respBody))
		}
	}

	return nil
}

// errorMessage pulls a human-readable message out of a panel error body
func errorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Errors  []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Errors) > 0 && envelope.Errors[0].Detail != "" {
			return envelope.Errors[0].Detail
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return "unexpected panel response"
}

// CreateServer creates a new server on the panel
func (c *Client) CreateServer(ctx context.Context, req *CreateServerRequest) (*Server, error) {
	var env attributes
	if err := c.do(ctx, "create_server", http.MethodPost, "/api/application/servers", req, &env); err != nil {
		return nil, err
	}

	var server Server
	if err := json.Unmarshal(env.Attributes, &server); err != nil {
		return nil, fmt.Errorf("decode server attributes: %w", err)
	}

	c.logger.Info("Server created on panel",
		zap.Int64("server_id", server.ID),
		zap.String("external_id", server.ExternalID))
	return &server, nil
}

// GetServerByExternalID looks up the server tied to an order. The order ID
// is stored as the panel-side external_id, keeping the mapping 1:1.
func (c *Client) GetServerByExternalID(ctx context.Context, orderID int64) (*Server, error) {
	var env attributes
	path := fmt.Sprintf("/api/application/servers/external/%d", orderID)
	if err := c.do(ctx, "get_server", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}

	var server Server
	if err := json.Unmarshal(env.Attributes, &server); err != nil {
		return nil, fmt.Errorf("decode server attributes: %w", err)
	}
	return &server, nil
}

// BuildServer updates a server's resource envelope
func (c *Client) BuildServer(ctx context.Context, serverID int64, req *BuildServerRequest) error {
	path := fmt.Sprintf("/api/application/servers/%d/build", serverID)
	return c.do(ctx, "build_server", http.MethodPatch, path, req, nil)
}

// SuspendServer suspends a server
func (c *Client) SuspendServer(ctx context.Context, serverID int64) error {
	path := fmt.Sprintf("/api/application/servers/%d/suspend", serverID)
	return c.do(ctx, "suspend_server", http.MethodPost, path, nil, nil)
}

// UnsuspendServer unsuspends a server
func (c *Client) UnsuspendServer(ctx context.Context, serverID int64) error {
	path := fmt.Sprintf("/api/application/servers/%d/unsuspend", serverID)
	return c.do(ctx, "unsuspend_server", http.MethodPost, path, nil, nil)
}

// DeleteServer deletes a server from the panel
func (c *Client) DeleteServer(ctx context.Context, serverID int64) error {
	path := fmt.Sprintf("/api/application/servers/%d", serverID)
	return c.do(ctx, "delete_server", http.MethodDelete, path, nil, nil)
}

// GetUserByEmail finds a panel user by email, or nil when absent
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var env list
	path := "/api/application/users?filter%5Bemail%5D=" + url.QueryEscape(email)
	if err := c.do(ctx, "get_user", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}

	if len(env.Data) == 0 {
		return nil, nil
	}

	var user User
	if err := json.Unmarshal(env.Data[0].Attributes, &user); err != nil {
		return nil, fmt.Errorf("decode user attributes: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new panel user
func (c *Client) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	var env attributes
	if err := c.do(ctx, "create_user", http.MethodPost, "/api/application/users", req, &env); err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(env.Attributes, &user); err != nil {
		return nil, fmt.Errorf("decode user attributes: %w", err)
	}

	c.logger.Info("User created on panel", zap.Int64("user_id", user.ID))
	return &user, nil
}

// UpdateUser updates a panel user
func (c *Client) UpdateUser(ctx context.Context, userID int64, req *UpdateUserRequest) error {
	path := fmt.Sprintf("/api/application/users/%d", userID)
	return c.do(ctx, "update_user", http.MethodPatch, path, req, nil)
}

// SSOLoginURL exchanges the shared secret for a one-time login URL for the
// given panel user. A success response without a redirect means the SSO
// addon is not installed on the panel.
func (c *Client) SSOLoginURL(ctx context.Context, panelUserID int64) (string, error) {
	query := url.Values{}
	query.Set("sso_secret", c.ssoSecret)
	query.Set("user_id", strconv.FormatInt(panelUserID, 10))

	var resp struct {
		Redirect string `json:"redirect"`
	}
	if err := c.do(ctx, "sso_login", http.MethodGet, "/sso-wemx?"+query.Encode(), nil, &resp); err != nil {
		return "", err
	}

	if resp.Redirect == "" {
		return "", &APIError{
			StatusCode: http.StatusNotImplemented,
			Message:    "the SSO addon is not installed or configured on the panel",
		}
	}

	return resp.Redirect, nil
}
