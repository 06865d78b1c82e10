package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/janekbaraniewski/tokendash/internal/core"
)

// Client talks to the daemon over its unix socket.
type Client struct {
	SocketPath string
	http       *http.Client
}

func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
		DisableCompression: true,
		DisableKeepAlives:  true,
	}
	return &Client{
		SocketPath: socketPath,
		http: &http.Client{
			Transport: transport,
			// Forced refreshes fan out to every provider; leave headroom
			// over the per-provider fetch timeout.
			Timeout: 90 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c == nil || strings.TrimSpace(c.SocketPath) == "" {
		return fmt.Errorf("daemon client is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix"+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("daemon %s: %s", path, payload.Error)
		}
		return fmt.Errorf("daemon %s: %s", path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode daemon response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) HealthInfo(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	if err := c.get(ctx, "/healthz", &out); err != nil {
		return HealthResponse{}, err
	}
	if strings.TrimSpace(out.Status) == "" {
		out.Status = "ok"
	}
	return out, nil
}

// Status triggers a fresh aggregation pass and returns its summary.
func (c *Client) Status(ctx context.Context) (core.DashboardSummary, error) {
	var out core.DashboardSummary
	err := c.get(ctx, "/"+APIVersion+"/status", &out)
	return out, err
}

// Cached returns the last published summary without touching any provider.
func (c *Client) Cached(ctx context.Context) (core.DashboardSummary, error) {
	var out core.DashboardSummary
	err := c.get(ctx, "/"+APIVersion+"/cached", &out)
	return out, err
}

func (c *Client) Providers(ctx context.Context) ([]ProviderDescriptor, error) {
	var out ProvidersResponse
	if err := c.get(ctx, "/"+APIVersion+"/providers", &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

// Usage returns one provider's status, optionally forcing a fresh fetch.
func (c *Client) Usage(ctx context.Context, provider string, refresh bool) (core.ProviderStatus, error) {
	path := fmt.Sprintf("/%s/usage?provider=%s", APIVersion, url.QueryEscape(strings.TrimSpace(provider)))
	if refresh {
		path += "&refresh=true"
	}
	var out UsageResponse
	if err := c.get(ctx, path, &out); err != nil {
		return core.ProviderStatus{}, err
	}
	return out.Status, nil
}

// VersionCompatible reports whether a client and daemon build can talk to
// each other. Dev builds are always accepted; released builds must share a
// semver major.
func VersionCompatible(clientVersion, daemonVersion string) bool {
	cv := canonicalVersion(clientVersion)
	dv := canonicalVersion(daemonVersion)
	if cv == "" || dv == "" {
		return true
	}
	return semver.Major(cv) == semver.Major(dv)
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || v == "dev" || v == "unknown" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
