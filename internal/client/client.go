package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nitj-alumni/alumni-erp-api/internal/dto"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
)

// Client calls the alumni API on behalf of one Session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
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

// New returns a client for the API rooted at baseURL, including any prefix.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

// SubmitResponse acknowledges a stored submission.
type SubmitResponse struct {
	Message string
	Result  dto.SubmitResult
}

// StatusUpdate is the result of a review decision.
type StatusUpdate struct {
	Message string
	Request models.Request
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// Login authenticates and stores the issued token in the session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var res models.LoginResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &res, false); err != nil {
		return nil, err
	}
	c.session.Set(res.Token, res.ExpiresAt)
	return &res, nil
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if _, err := c.do(ctx, http.MethodGet, "/auth/me", nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Submit sends the certificate request and feedback payload.
func (c *Client) Submit(ctx context.Context, payload dto.SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	msg, err := c.do(ctx, http.MethodPost, "/requests/submit", payload, &out.Result, true)
	if err != nil {
		return nil, err
	}
	out.Message = msg
	return &out, nil
}

// ListAssigned fetches the caller's assigned requests. An empty status lists all.
func (c *Client) ListAssigned(ctx context.Context, status string) ([]models.Request, error) {
	path := "/requests/admin-requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var requests []models.Request
	if _, err := c.do(ctx, http.MethodGet, path, nil, &requests, true); err != nil {
		return nil, err
	}
	return requests, nil
}

// GetDetail fetches the structured view of one request.
func (c *Client) GetDetail(ctx context.Context, id string) (*models.RequestDetail, error) {
	var detail models.RequestDetail
	if _, err := c.do(ctx, http.MethodGet, "/requests/"+url.PathEscape(id), nil, &detail, true); err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateStatus approves or rejects a request.
func (c *Client) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) (*StatusUpdate, error) {
	var out StatusUpdate
	msg, err := c.do(ctx, http.MethodPut, "/requests/"+url.PathEscape(id)+"/status", dto.UpdateStatusRequest{Status: string(status)}, &out.Request, true)
	if err != nil {
		return nil, err
	}
	out.Message = msg
	return &out, nil
}

// do sends one request and decodes the envelope's data into out, returning
// the envelope message. Calls are never retried.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authenticated bool) (string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token := c.session.Token()
		if token == "" {
			return "", errSignedOut
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s %s: %w", method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			if env.Error.Message != "" {
				apiErr.Message = env.Error.Message
			}
		}
		return "", apiErr
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return env.Message, nil
}
