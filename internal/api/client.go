// Package api is the client for the renewable-energy guide backend.
//
// Every call returns an Envelope. Transport failures, non-2xx responses and
// undecodable bodies are folded into an error Envelope; the only error that
// crosses the boundary is the caller's own context ending.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"renewguide/internal/jsonx"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultSearchK = 3

	PathHealth        = "/health"
	PathChat          = "/api/chat"
	PathChatbotStatus = "/api/chatbot/status"
	PathSystemInfo    = "/api/system/info"
	PathRAGSearch     = "/api/rag/search"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// Headers are merged into every request. Content-Type cannot be overridden.
	Headers    http.Header
	HTTPClient *http.Client
	Logger     core.Logger
}

// Client issues backend calls. It is safe for concurrent use.
type Client struct {
	baseURL string
	headers http.Header
	http    *http.Client
	log     core.Logger
}

// New creates a Client from opts, filling defaults.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	return &Client{
		baseURL: baseURL,
		headers: opts.Headers.Clone(),
		http:    httpClient,
		log:     log,
	}
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET for path.
func (c *Client) Get(ctx context.Context, path string) (Envelope, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

// Post issues a POST for path with body encoded as JSON. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body any) (Envelope, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (Envelope, error) {
	return c.Get(ctx, PathHealth)
}

// Chat sends one chat turn.
func (c *Client) Chat(ctx context.Context, message string) (Envelope, error) {
	return c.Post(ctx, PathChat, ChatRequest{Message: message})
}

// ChatbotStatus calls GET /api/chatbot/status.
func (c *Client) ChatbotStatus(ctx context.Context) (Envelope, error) {
	return c.Get(ctx, PathChatbotStatus)
}

// SystemInfo calls GET /api/system/info.
func (c *Client) SystemInfo(ctx context.Context) (Envelope, error) {
	return c.Get(ctx, PathSystemInfo)
}

// RAGSearch queries the retrieval index. k <= 0 uses DefaultSearchK.
func (c *Client) RAGSearch(ctx context.Context, query string, k int) (Envelope, error) {
	if k <= 0 {
		k = DefaultSearchK
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("k", strconv.Itoa(k))
	return c.Get(ctx, PathRAGSearch+"?"+params.Encode())
}

func (c *Client) request(ctx context.Context, method, path string, body any) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	env, err := c.roundTrip(ctx, method, path, body)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Envelope{}, ctxErr
	}
	if err != nil {
		c.log.Warnw("api request failed", "method", method, "path", path, "error", err.Error())
		return errorEnvelope("%s", err.Error()), nil
	}
	return env, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (Envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := jsonx.Marshal(body)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Envelope{}, fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("read response body: %w", err)
	}
	env, err := decodeEnvelope(payload)
	if err != nil {
		return Envelope{}, err
	}
	c.log.Debugw("api request ok", "method", method, "path", path, "status", string(env.Status))
	return env, nil
}
