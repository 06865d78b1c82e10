package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/janekbaraniewski/tokendash/internal/version"
)

// EnsureRunning returns a client for a healthy, version-compatible daemon,
// spawning one in the background when nothing is listening on the socket.
func EnsureRunning(ctx context.Context, socketPath string, verbose bool) (*Client, error) {
	socketPath = strings.TrimSpace(socketPath)
	if socketPath == "" {
		return nil, fmt.Errorf("daemon socket path is empty")
	}
	client := NewClient(socketPath)

	health, healthErr := WaitForHealthInfo(ctx, client, 1200*time.Millisecond)
	if healthErr == nil {
		if !HealthCurrent(health) {
			return nil, fmt.Errorf(
				"dashboard daemon at %s is incompatible (running=%s expected=%s); restart it",
				socketPath, HealthVersion(health), strings.TrimSpace(version.Version),
			)
		}
		return client, nil
	}

	if err := spawnDaemonProcess(socketPath, verbose); err != nil {
		return nil, fmt.Errorf("start dashboard daemon: %w", err)
	}
	if _, err := WaitForHealthInfo(ctx, client, 10*time.Second); err != nil {
		return nil, err
	}
	return client, nil
}

func HealthVersion(health HealthResponse) string {
	if v := strings.TrimSpace(health.DaemonVersion); v != "" {
		return v
	}
	return "unknown"
}

// HealthCurrent reports whether the daemon behind the health response can
// serve this client build.
func HealthCurrent(health HealthResponse) bool {
	apiVersion := strings.TrimSpace(health.APIVersion)
	if apiVersion != "" && apiVersion != APIVersion {
		return false
	}
	return VersionCompatible(version.Version, health.DaemonVersion)
}

// WaitForHealthInfo polls /healthz until the daemon answers or the timeout
// elapses.
func WaitForHealthInfo(ctx context.Context, client *Client, timeout time.Duration) (HealthResponse, error) {
	if client == nil {
		return HealthResponse{}, fmt.Errorf("daemon client is nil")
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if pingCtx.Err() != nil {
			break
		}
		hc, hcCancel := context.WithTimeout(pingCtx, 700*time.Millisecond)
		health, err := client.HealthInfo(hc)
		hcCancel()
		if err == nil {
			return health, nil
		}
		lastErr = err
		time.Sleep(220 * time.Millisecond)
	}
	if pingCtx.Err() != nil && pingCtx.Err() != context.Canceled {
		return HealthResponse{}, pingCtx.Err()
	}
	if lastErr != nil {
		return HealthResponse{}, fmt.Errorf("dashboard daemon did not become ready at %s: %w", client.SocketPath, lastErr)
	}
	return HealthResponse{}, fmt.Errorf("dashboard daemon did not become ready at %s", client.SocketPath)
}

// spawnDaemonProcess re-execs this binary's daemon subcommand detached from
// the caller's terminal.
func spawnDaemonProcess(socketPath string, verbose bool) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"daemon", "--socket", socketPath}
	if verbose {
		args = append(args, "--verbose")
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	// Detach: the daemon outlives this invocation.
	return cmd.Process.Release()
}
