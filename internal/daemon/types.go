package daemon

import (
	"errors"
	"path/filepath"

	"github.com/janekbaraniewski/tokendash/internal/config"
	"github.com/janekbaraniewski/tokendash/internal/core"
)

const APIVersion = "v1"

var ErrDaemonUnavailable = errors.New("dashboard daemon unavailable")

// Config carries the daemon's startup options. Zero values fall back to the
// defaults under the user config directory.
type Config struct {
	SocketPath string
	ConfigPath string
	Verbose    bool
}

func DefaultSocketPath() string {
	return filepath.Join(config.ConfigDir(), "tokendash.sock")
}

type HealthResponse struct {
	Status        string `json:"status"`
	DaemonVersion string `json:"daemon_version,omitempty"`
	APIVersion    string `json:"api_version,omitempty"`
}

// ProviderDescriptor is one row of the provider listing: registry metadata
// plus whether credentials resolve for it right now.
type ProviderDescriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Configured   bool     `json:"configured"`
	Capabilities []string `json:"capabilities,omitempty"`
	DocURL       string   `json:"doc_url,omitempty"`
}

type ProvidersResponse struct {
	Providers []ProviderDescriptor `json:"providers"`
}

type UsageResponse struct {
	Status core.ProviderStatus `json:"status"`
}
