// Package httpx carries the HTTP plumbing shared by the provider
// collectors.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxRawBodyLen = 2048

// NewRequest builds a GET request with the standard auth header layout.
// Providers that authenticate differently (e.g. x-api-key) pass their own
// headers; Authorization is only defaulted when absent.
func NewRequest(ctx context.Context, url, apiKey string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for key, value := range headers {
		if value == "" {
			continue
		}
		req.Header.Set(key, value)
	}

	// An explicit empty Authorization entry suppresses the bearer default.
	if _, hasAuth := headers["Authorization"]; !hasAuth {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	return req, nil
}

// Do executes the request and returns the status code plus the full body.
// Callers decide how to treat non-2xx statuses; transport errors propagate.
func Do(client *http.Client, req *http.Request) (int, []byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// IsAuthStatus reports whether the status code means the key was rejected.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// TruncateBody shortens a raw payload for the diagnostics map.
func TruncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxRawBodyLen {
		return s[:maxRawBodyLen] + "..."
	}
	return s
}
