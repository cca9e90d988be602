package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	body = ansi.Truncate(body, 200, "...")
	if body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, body)
}

// Client talks to one analysis service. Each flow gets its own Client since
// the services behind the base URLs are not guaranteed to be the same.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "remote", "base_url", c.baseURL)
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	data, err := c.do(req, op)
	if err != nil {
		return err
	}
	return decode(op, data, out)
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	return c.do(req, op)
}

// decode unmarshals a reply body. A nil out discards it and an empty body
// leaves out untouched.
func decode(op string, data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: parse response: %w", op, err)
	}
	return nil
}

// do sends req exactly once and returns the body of a 2xx reply.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	id := c.newID()
	req.Header.Set(requestIDHeader, id)
	req.Header.Set("Accept", "application/json")

	log := c.logger.With("op", op, "request_id", id, "method", req.Method, "path", req.URL.Path)
	log.Debug("request started")
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("request failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("read response failed", "error", err, "status", resp.StatusCode)
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("request rejected", "status", resp.StatusCode, "duration", time.Since(start))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}
	log.Info("request completed", "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(data))
	return data, nil
}
