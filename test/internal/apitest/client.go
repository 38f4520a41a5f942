package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Envelope matches the project's generic API envelope.
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// LoginResult mirrors the login/auto-signin payload.
type LoginResult struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Token    string `json:"token"`
	PhotoURL string `json:"photoUrl"`
	SignedIn bool   `json:"signedIn"`
}

// RegisterResponse is the register endpoint body.
type RegisterResponse struct {
	Envelope
	LoginResult *LoginResult `json:"loginResult"`
}

// LoginRequest is the login endpoint body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the login endpoint body.
type LoginResponse struct {
	Envelope
	LoginResult LoginResult `json:"loginResult"`
}

// ProfileResponse is the profile endpoint body.
type ProfileResponse struct {
	Envelope
	ProfileResult struct {
		Name     string `json:"name"`
		PhotoURL string `json:"photoUrl"`
	} `json:"profileResult"`
}

// Client is a lightweight HTTP helper for API tests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with sane defaults.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Status safely returns HTTP status code (0 if resp is nil).
func Status(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// PostJSON sends a JSON POST.
func PostJSON[T any, R any](ctx context.Context, c *Client, path string, payload T, token string) (*R, *http.Response, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode request: %w", err)
	}
	return do[R](ctx, c, http.MethodPost, path, bytes.NewReader(buf), "application/json", token)
}

// GetJSON sends a JSON GET.
func GetJSON[R any](ctx context.Context, c *Client, path string, token string) (*R, *http.Response, []byte, error) {
	return do[R](ctx, c, http.MethodGet, path, nil, "", token)
}

// PostForm sends a multipart form POST (register uses this shape).
func PostForm[R any](ctx context.Context, c *Client, path string, fields map[string]string) (*R, *http.Response, []byte, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, nil, nil, fmt.Errorf("encode form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, nil, nil, fmt.Errorf("encode form: %w", err)
	}
	return do[R](ctx, c, http.MethodPost, path, body, w.FormDataContentType(), "")
}

func do[R any](ctx context.Context, c *Client, method, path string, body io.Reader, contentType, token string) (*R, *http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resp, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, nil, fmt.Errorf("read response: %w", err)
	}

	var out R
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, resp, bodyBytes, fmt.Errorf("decode response: %w", err)
	}
	return &out, resp, bodyBytes, nil
}
