// Package viking is a thin typed client for the OpenViking store HTTP API.
package viking

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

	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	Endpoint string
	APIKey   string
	Headers  map[string]string
	Timeout  time.Duration
	// RequestsPerSecond paces outbound requests when > 0.
	RequestsPerSecond float64
	// HTTPClient overrides the default transport (tests).
	HTTPClient *http.Client
}

// Client talks to one store endpoint. Safe for concurrent use.
type Client struct {
	endpoint string
	apiKey   string
	headers  map[string]string
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
}

// New creates a Client. Trailing slashes are stripped from the endpoint so
// URL construction is deterministic.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		apiKey:   opts.APIKey,
		headers:  opts.Headers,
		timeout:  timeout,
		http:     httpClient,
		limiter:  limiter,
	}
}

// Endpoint returns the normalized store endpoint.
func (c *Client) Endpoint() string { return c.endpoint }

// do issues one request and unwraps the response envelope.
// Caller-supplied headers override static config headers.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, headers map[string]string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
	}

	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	hasBody := false
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("viking %s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
		hasBody = true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("viking %s: build request: %w", op, err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	// Empty body with 2xx is success with an empty result.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var env envelope
	envOK := json.Unmarshal(raw, &env) == nil && env.Status != ""

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := failureMessage(&env, envOK, raw, resp)
		if resp.StatusCode >= 500 {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("%s", msg)}
		}
		code := ""
		if envOK && env.Error != nil {
			code = env.Error.Code
		}
		return nil, &ProtocolError{Op: op, Code: code, Message: msg}
	}

	if !envOK {
		return nil, &ProtocolError{Op: op, Message: fmt.Sprintf("malformed response: %s", truncateBody(raw))}
	}
	if env.Status != "ok" {
		code := ""
		if env.Error != nil {
			code = env.Error.Code
		}
		return nil, &ProtocolError{Op: op, Code: code, Message: failureMessage(&env, true, raw, resp)}
	}

	return env.Result, nil
}

// failureMessage prefers error.message, then the raw body, then HTTP status text.
func failureMessage(env *envelope, envOK bool, raw []byte, resp *http.Response) string {
	if envOK && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	if body := truncateBody(raw); body != "" {
		return body
	}
	return http.StatusText(resp.StatusCode)
}

func truncateBody(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if len(body) > 512 {
		body = body[:512]
	}
	return body
}

// decode unmarshals a result payload, treating an empty result as the zero value.
func decode[T any](raw json.RawMessage, op string) (T, error) {
	var out T
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ProtocolError{Op: op, Message: fmt.Sprintf("decode result: %v", err)}
	}
	return out, nil
}

// Health checks store liveness.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, "health", http.MethodGet, "/health", nil, nil, nil)
	return err
}
