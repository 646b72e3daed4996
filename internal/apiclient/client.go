package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("service unavailable")
	// ErrAborted means no HTTP status was received: the request failed in
	// transport or was canceled.
	ErrAborted = errors.New("request aborted")
)

// StatusError is a failed request. Status is 0 when no response arrived.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("request aborted: %v", e.Err)
		}
		return "request aborted"
	}
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Is matches the sentinel for the status class.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrAborted:
		return e.Status == 0
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnavailable:
		return e.Status == http.StatusServiceUnavailable
	}
	return false
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// Client is an HTTP client for the street-design API.
type Client struct {
	// BaseURL ends in a slash; endpoint paths are appended to it.
	BaseURL string
	HTTP    *http.Client
}

// New creates a new API client.
func New(baseURL string, timeout time.Duration) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// BearerAuthorization returns the Authorization header value for token.
func BearerAuthorization(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

// --- User types ---

// UserResponse is the response from GET v1/users/{id}.
type UserResponse struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"displayName,omitempty"`
	ProfileImageURL string          `json:"profileImageUrl,omitempty"`
	Flags           map[string]bool `json:"flags"`
	Roles           []string        `json:"roles"`
}

// --- Street types ---

// StreetResponse represents a street from the server.
type StreetResponse struct {
	ID           string          `json:"id"`
	NamespacedID int             `json:"namespacedId"`
	CreatorID    string          `json:"creatorId,omitempty"`
	Name         string          `json:"name,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

// CreateStreetRequest is the body for POST v1/streets.
type CreateStreetRequest struct {
	Name             string          `json:"name,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
	OriginalStreetID string          `json:"originalStreetId,omitempty"`
	ClientUpdatedAt  string          `json:"clientUpdatedAt,omitempty"`
}

// --- User methods ---

// GetUser fetches a user's profile, roles, and flags.
func (c *Client) GetUser(ctx context.Context, userID, authorization string) (*UserResponse, error) {
	var resp UserResponse
	if err := c.do(ctx, http.MethodGet, "v1/users/"+url.PathEscape(userID), authorization, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteLoginToken revokes the user's login token. The response body is ignored.
func (c *Client) DeleteLoginToken(ctx context.Context, userID, authorization string) error {
	return c.do(ctx, http.MethodDelete, "v1/users/"+url.PathEscape(userID)+"/login-token", authorization, nil, nil)
}

// --- Street methods ---

// GetStreet fetches a street by id.
func (c *Client) GetStreet(ctx context.Context, streetID, authorization string) (*StreetResponse, error) {
	var resp StreetResponse
	if err := c.do(ctx, http.MethodGet, "v1/streets/"+url.PathEscape(streetID), authorization, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateStreet creates a new street owned by the authorized user (or
// anonymous when authorization is empty).
func (c *Client) CreateStreet(ctx context.Context, req *CreateStreetRequest, authorization string) (*StreetResponse, error) {
	var resp StreetResponse
	if err := c.do(ctx, http.MethodPost, "v1/streets", authorization, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path, authorization string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	// Empty when signed out
	req.Header.Set("Authorization", authorization)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &StatusError{Status: 0, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil {
			se.Code = apiErr.Code
			se.Message = apiErr.Message
		}
		return se
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
