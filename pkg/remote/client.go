package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smkit/smkit/pkg/gateway"
)

// ErrClientClosed is returned by a closed client.
var ErrClientClosed = errors.New("remote client is closed")

// ClientOptions configures an HTTP engine client.
type ClientOptions struct {
	// HTTPClient sends the requests. Nil uses a client with Timeout.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil. Zero means 30s.
	Timeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client is a gateway.Engine that forwards commands to an HTTP engine server.
// It keeps the session ID the server issues, so each Client logs in on its
// own.
type Client struct {
	endpoint  string
	http      *http.Client
	userAgent string

	mu      sync.Mutex
	session string
	closed  bool
}

var _ gateway.Engine = (*Client)(nil)

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ClientOptions) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https, got %q", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:  u.String() + CommandPath,
		http:      hc,
		userAgent: opts.UserAgent,
	}, nil
}

// RunCommand posts command and returns the response body. Any status other
// than 200 is an error.
func (c *Client) RunCommand(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	closed, session := c.closed, c.session
	c.mu.Unlock()
	if closed {
		return "", ErrClientClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(command))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach engine: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read engine response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("engine returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if issued := resp.Header.Get(SessionHeader); issued != "" && session == "" {
		c.mu.Lock()
		if c.session == "" {
			c.session = issued
		}
		c.mu.Unlock()
	}
	return string(body), nil
}

// Close releases idle connections. Further calls fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.http.CloseIdleConnections()
	return nil
}
