// Package backend is the REST client for the presence backend's HTTP API.
package backend

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

	"github.com/matheus3301/tabsync/internal/credential"
	"go.uber.org/zap"
)

// ErrUnauthenticated is returned for authenticated calls with no stored credential.
var ErrUnauthenticated = errors.New("not authenticated")

// APIError is a response whose envelope reported success=false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// envelope is the response shape shared by every endpoint.
type envelope struct {
	Success           bool            `json:"success"`
	Data              json.RawMessage `json:"data"`
	Message           string          `json:"message"`
	Error             string          `json:"error"`
	ConversationID    string          `json:"conversationId"`
	IsNewConversation bool            `json:"isNewConversation"`
}

const maxResponseBytes = 8 << 20

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the backend's REST API. Authenticated calls read the bearer
// token from the credential source at call time.
type Client struct {
	base   string
	http   *http.Client
	creds  credential.Source
	logger *zap.Logger
}

// New creates a REST client.
func New(opts Options, creds credential.Source, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		http:   &http.Client{Timeout: opts.Timeout},
		creds:  creds,
		logger: logger,
	}
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

func (c *Client) do(ctx context.Context, req call, out any) (*envelope, error) {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.base + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.auth {
		cred, err := c.creds.Load()
		if err != nil {
			return nil, ErrUnauthenticated
		}
		httpReq.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("path", req.path), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decode %s response: %w", req.path, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		c.logger.Warn("backend rejected request",
			zap.String("path", req.path), zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", req.path, err)
		}
	}
	return &env, nil
}
