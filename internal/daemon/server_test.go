package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/core"
	"github.com/janekbaraniewski/tokendash/internal/dashboard"
)

func shortSocketPath(t *testing.T, suffix string) string {
	t.Helper()
	return fmt.Sprintf("/tmp/tokendash-%d-%s.sock", time.Now().UnixNano(), strings.TrimSpace(suffix))
}

func TestEnsureSocketPathAvailable_ActiveSocketReturnsError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets are not supported in this test")
	}

	socketPath := shortSocketPath(t, "active")
	_ = os.Remove(socketPath)
	t.Cleanup(func() { _ = os.Remove(socketPath) })
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen unix socket: %v", err)
	}
	defer listener.Close()

	err = EnsureSocketPathAvailable(socketPath)
	if err == nil {
		t.Fatal("expected error for active daemon socket")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "already running") {
		t.Fatalf("error = %q, want already running message", err)
	}
}

func TestEnsureSocketPathAvailable_RemovesStaleSocket(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets are not supported in this test")
	}

	socketPath := shortSocketPath(t, "stale")
	_ = os.Remove(socketPath)
	t.Cleanup(func() { _ = os.Remove(socketPath) })
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen unix socket: %v", err)
	}
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}

	if err := EnsureSocketPathAvailable(socketPath); err != nil {
		t.Fatalf("ensure socket path available: %v", err)
	}
	if _, statErr := os.Stat(socketPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected stale socket to be removed, stat err = %v", statErr)
	}
}

func TestEnsureSocketPathAvailable_RejectsRegularFile(t *testing.T) {
	socketPath := shortSocketPath(t, "file")
	_ = os.Remove(socketPath)
	t.Cleanup(func() { _ = os.Remove(socketPath) })
	if err := os.WriteFile(socketPath, []byte("not-a-socket"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	err := EnsureSocketPathAvailable(socketPath)
	if err == nil {
		t.Fatal("expected error for regular file at socket path")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "not a socket") {
		t.Fatalf("error = %q, want not a socket message", err)
	}
}

// --- Handler tests ---

type stubCollector struct {
	id    string
	usage core.ProviderUsage
	err   error
}

func (s *stubCollector) ID() string                  { return s.id }
func (s *stubCollector) Describe() core.ProviderInfo { return core.ProviderInfo{Name: s.id} }
func (s *stubCollector) IsConfigured(cfg core.CollectorConfig) bool {
	return cfg.APIKey != ""
}
func (s *stubCollector) FetchUsage(_ context.Context, _ core.CollectorConfig) (core.ProviderUsage, error) {
	if s.err != nil {
		return core.ProviderUsage{}, s.err
	}
	u := s.usage
	u.Provider = s.id
	return u, nil
}

func newTestServer(cols []core.Collector, keys map[string]string) *Server {
	resolver := func(id string) core.CollectorConfig {
		return core.CollectorConfig{APIKey: keys[id], Enabled: keys[id] != ""}
	}
	agg := dashboard.NewAggregator(cols, resolver, config.Config{FetchTimeoutSeconds: 5}, dashboard.NewCache(), zap.NewNop())
	return &Server{
		cfg:    Config{},
		log:    zap.NewNop(),
		agg:    agg,
		poller: dashboard.NewPoller(agg, zap.NewNop()),
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(nil, nil)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "ok" || out.APIVersion != APIVersion {
		t.Errorf("health = %+v", out)
	}
}

func TestHandleStatus_RunsAggregation(t *testing.T) {
	col := &stubCollector{id: "alpha", usage: core.ProviderUsage{
		BalanceUSD: core.Float64Ptr(42),
	}}
	srv := newTestServer([]core.Collector{col}, map[string]string{"alpha": "k"})
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var summary core.DashboardSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TotalBalanceUSD == nil || *summary.TotalBalanceUSD != 42 {
		t.Errorf("TotalBalanceUSD = %v, want 42", summary.TotalBalanceUSD)
	}

	// The pass must also have warmed the cache.
	resp2, err := http.Get(ts.URL + "/v1/cached")
	if err != nil {
		t.Fatalf("GET /v1/cached: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("cached status = %d after refresh, want 200", resp2.StatusCode)
	}
}

func TestHandleCached_EmptyReturnsNotFound(t *testing.T) {
	srv := newTestServer(nil, nil)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/cached")
	if err != nil {
		t.Fatalf("GET /v1/cached: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before any pass", resp.StatusCode)
	}
}

func TestHandleUsage(t *testing.T) {
	col := &stubCollector{id: "alpha", usage: core.ProviderUsage{CostUSD: 1.5}}
	srv := newTestServer([]core.Collector{col}, map[string]string{"alpha": "k"})
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/usage?provider=alpha&refresh=true")
	if err != nil {
		t.Fatalf("GET /v1/usage: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out UsageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status.Provider != "alpha" || !out.Status.Reachable || out.Status.Usage == nil {
		t.Errorf("usage status = %+v", out.Status)
	}

	resp2, err := http.Get(ts.URL + "/v1/usage")
	if err != nil {
		t.Fatalf("GET /v1/usage without provider: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing provider", resp2.StatusCode)
	}

	resp3, err := http.Get(ts.URL + "/v1/usage?provider=nope&refresh=true")
	if err != nil {
		t.Fatalf("GET /v1/usage unknown provider: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown provider", resp3.StatusCode)
	}
}

func TestVersionCompatible(t *testing.T) {
	tests := []struct {
		client, daemon string
		want           bool
	}{
		{"dev", "1.2.3", true},
		{"1.2.3", "dev", true},
		{"1.2.3", "1.9.0", true},
		{"v1.2.3", "1.2.3", true},
		{"1.2.3", "2.0.0", false},
		{"garbage", "2.0.0", true},
	}
	for _, tc := range tests {
		if got := VersionCompatible(tc.client, tc.daemon); got != tc.want {
			t.Errorf("VersionCompatible(%q, %q) = %v, want %v", tc.client, tc.daemon, got, tc.want)
		}
	}
}
