package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBody caps how much of an HTTP response is returned to the
// model.
const maxResponseBody = 1 << 20

// HTTPTool performs HTTP requests on behalf of the model.
//
// Input:
//   - url (string, required)
//   - method (string, optional; GET, POST, PUT, DELETE; default GET)
//   - headers (map of string, optional)
//   - body (string, optional)
//
// Output:
//   - status_code (int)
//   - headers (map)
//   - body (string, truncated at 1 MiB)
type HTTPTool struct {
	client *http.Client
}

// HTTPOption configures an HTTPTool.
type HTTPOption func(*HTTPTool)

// WithClient substitutes the underlying HTTP client, typically for
// tests or custom transports.
func WithClient(c *http.Client) HTTPOption {
	return func(t *HTTPTool) { t.client = c }
}

// NewHTTPTool creates an HTTP tool. Timeouts come from the request
// context.
func NewHTTPTool(opts ...HTTPOption) *HTTPTool {
	t := &HTTPTool{client: &http.Client{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTool) Name() string { return "http_request" }

func (t *HTTPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, fmt.Errorf("url parameter required")
	}

	method := http.MethodGet
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	var body io.Reader
	if s, ok := input["body"].(string); ok && s != "" {
		body = bytes.NewBufferString(s)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if headers, ok := input["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	respHeaders := make(map[string]interface{}, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) == 1 {
			respHeaders[k] = vals[0]
		} else {
			respHeaders[k] = vals
		}
	}

	return map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}, nil
}
