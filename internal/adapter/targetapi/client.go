// Package targetapi is the HTTP client for the task API under test.
package targetapi

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	obs "github.com/fairyhunter13/queue-latency-bench/internal/adapter/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

const (
	opSubmit = "submit"
	opStatus = "status"
	opHealth = "health"
)

// Client implements domain.TargetAPI over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.TargetAPI = (*Client)(nil)

// New creates a client with an otelhttp-instrumented transport.
func New(baseURL string, timeout time.Duration) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("Target %s %s", r.Method, r.URL.Host)
		}),
	)
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout, Transport: transport})
}

// NewWithHTTPClient creates a client around an existing http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

type submitResponse struct {
	Task struct {
		ID string `json:"id"`
	} `json:"task"`
}

type statusResponse struct {
	ID     string            `json:"id"`
	Status domain.TaskStatus `json:"status"`
}

// Submit posts a task to /task/{kind}. Only 201 with a task id counts as accepted.
func (c *Client) Submit(ctx context.Context, kind domain.QueueKind, req domain.SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("op=targetapi.Submit: %w: %v", domain.ErrInvalidArgument, err)
	}
	u := fmt.Sprintf("%s/task/%s", c.baseURL, url.PathEscape(string(kind)))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("op=targetapi.Submit: %w: %v", domain.ErrSubmitFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, raw, err := c.do(httpReq, opSubmit)
	if err != nil {
		return "", fmt.Errorf("op=targetapi.Submit: %w: %v", domain.ErrSubmitFailed, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("op=targetapi.Submit: %w: status %d: %s", domain.ErrSubmitFailed, resp.StatusCode, snippet(raw))
	}
	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("op=targetapi.Submit: %w: decode response: %v", domain.ErrSubmitFailed, err)
	}
	if out.Task.ID == "" {
		return "", fmt.Errorf("op=targetapi.Submit: %w: response has no task id", domain.ErrSubmitFailed)
	}
	return out.Task.ID, nil
}

// Status fetches /task/{id}. Any non-200 answer is transient; the status
// string is returned verbatim.
func (c *Client) Status(ctx context.Context, id string) (domain.TaskStatus, error) {
	u := fmt.Sprintf("%s/task/%s", c.baseURL, url.PathEscape(id))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("op=targetapi.Status: %w: %v", domain.ErrCheckTransient, err)
	}
	resp, raw, err := c.do(httpReq, opStatus)
	if err != nil {
		return "", fmt.Errorf("op=targetapi.Status: %w: %v", domain.ErrCheckTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("op=targetapi.Status: %w: status %d", domain.ErrCheckTransient, resp.StatusCode)
	}
	var out statusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("op=targetapi.Status: %w: decode response: %v", domain.ErrCheckTransient, err)
	}
	return out.Status, nil
}

// Ping issues GET {base}{path} and succeeds on any 2xx answer.
func (c *Client) Ping(ctx context.Context, path string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("op=targetapi.Ping: %w", err)
	}
	resp, _, err := c.do(httpReq, opHealth)
	if err != nil {
		return fmt.Errorf("op=targetapi.Ping: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("op=targetapi.Ping: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(req *http.Request, operation string) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		obs.ObserveTargetRequest(operation, 0, time.Since(start))
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	obs.ObserveTargetRequest(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return resp, raw, nil
}

func snippet(b []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(b))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
