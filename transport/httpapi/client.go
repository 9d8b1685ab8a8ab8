// Package httpapi implements the chat transport against a REST gateway.
//
// The gateway exposes three routes per channel:
//
//	POST   {base}/channels/{channel}/messages          -> {"id": "..."}
//	PATCH  {base}/channels/{channel}/messages/{id}
//	DELETE {base}/channels/{channel}/messages/{id}
//
// Request bodies are JSON and signed with the signature package when a
// secret is configured.
package httpapi

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

	"github.com/xraph/wormhole/dispatch"
	"github.com/xraph/wormhole/message"
	"github.com/xraph/wormhole/signature"
)

// compile-time interface check.
var _ dispatch.Transport = (*Client)(nil)

const maxErrorBody = 1024 // 1KB cap on error bodies kept in errors

// DefaultTimeout bounds every gateway request.
const DefaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the gateway root, e.g. "https://gateway.internal/v1".
	BaseURL string

	// Secret signs request bodies. Empty disables signing.
	Secret string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds each request. 0 uses DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// StatusError is returned for non-2xx gateway responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpapi: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client is an HTTP implementation of dispatch.Transport.
type Client struct {
	base   string
	secret string
	token  string
	client *http.Client
	now    func() time.Time
}

// New creates a gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("httpapi: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("httpapi: parse base URL: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		secret: cfg.Secret,
		token:  cfg.Token,
		client: client,
		now:    time.Now,
	}, nil
}

type sendBody struct {
	Content     string               `json:"content"`
	Attachments []message.Attachment `json:"attachments,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// SendText posts a message and returns its gateway ID.
func (c *Client) SendText(ctx context.Context, channelID, text string, attachments []message.Attachment) (string, error) {
	var resp sendResponse
	err := c.do(ctx, http.MethodPost, messagesPath(channelID, ""), sendBody{Content: text, Attachments: attachments}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("httpapi: gateway returned no message id")
	}
	return resp.ID, nil
}

// EditText replaces the content of a message.
func (c *Client) EditText(ctx context.Context, channelID, messageID, text string) error {
	return c.do(ctx, http.MethodPatch, messagesPath(channelID, messageID), sendBody{Content: text}, nil)
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, messagesPath(channelID, messageID), nil, nil)
}

func messagesPath(channelID, messageID string) string {
	p := "/channels/" + url.PathEscape(channelID) + "/messages"
	if messageID != "" {
		p += "/" + url.PathEscape(messageID)
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpapi: marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpapi: create request: %w", err)
	}
	req.Header.Set("User-Agent", "Wormhole/1.0")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.secret != "" {
		signature.SignRequest(req, body, c.secret, c.now())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpapi: decode response: %w", err)
	}
	return nil
}
