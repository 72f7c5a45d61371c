// Package api is the typed REST client for the task board backend.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID carries the per-request id the client generates
const HeaderRequestID = "X-Request-ID"

var codec = sonic.ConfigStd

// TokenSource supplies the bearer token for the current session. An empty
// token means no Authorization header is sent.
type TokenSource interface {
	Token() string
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     TokenSource
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// Client issues authenticated calls against the REST contract. It keeps no
// session state of its own; the token comes from Options.Tokens on every call.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger

	mu             sync.RWMutex
	onUnauthorized []func()
}

// New creates a client for the backend at opts.BaseURL
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		tokens:  opts.Tokens,
		logger:  logger,
	}, nil
}

// OnUnauthorized registers fn to run whenever an authenticated call comes
// back 401. This is the single place authorization failures are handled.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	handlers := append([]func(){}, c.onUnauthorized...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn()
	}
}

// request describes one call
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// public calls (login, register) never trigger the unauthorized handlers
	public bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := codec.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)

	log := c.logger.With(
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", r.method, r.path, err)
	}
	log.Debug("request completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			StatusCode: resp.StatusCode,
			Method:     r.method,
			Path:       r.path,
			Message:    serverMessage(data),
		}
		if resp.StatusCode == http.StatusUnauthorized && !r.public {
			log.Info("authorization rejected, ending session")
			c.unauthorized()
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := codec.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := codec.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

var (
	// ErrUnauthorized matches any 401 response
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches any 404 response
	ErrNotFound = errors.New("not found")
)

// Error is a non-2xx response from the backend
type Error struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Message returns the server's explanation for err, or fallback when there is none
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
