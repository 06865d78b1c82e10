package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/janekbaraniewski/tokendash/internal/core"
)

// APIKeyEnvVars is the fixed provider id → env var mapping the host resolves
// credentials from. Values in credentials.json take precedence.
var APIKeyEnvVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"moonshot":   "MOONSHOT_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

type Credentials struct {
	Keys map[string]string `json:"keys"` // provider ID → API key
}

// credMu guards read-modify-write cycles on the credentials file.
var credMu sync.Mutex

func CredentialsPath() string {
	return filepath.Join(ConfigDir(), "credentials.json")
}

func LoadCredentials() (Credentials, error) {
	return LoadCredentialsFrom(CredentialsPath())
}

func LoadCredentialsFrom(path string) (Credentials, error) {
	creds := Credentials{Keys: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return creds, fmt.Errorf("reading credentials: %w", err)
	}

	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{Keys: make(map[string]string)}, fmt.Errorf("parsing credentials %s: %w", path, err)
	}

	if creds.Keys == nil {
		creds.Keys = make(map[string]string)
	}

	return creds, nil
}

func SaveCredential(providerID, apiKey string) error {
	return SaveCredentialTo(CredentialsPath(), providerID, apiKey)
}

func SaveCredentialTo(path, providerID, apiKey string) error {
	credMu.Lock()
	defer credMu.Unlock()

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		creds = Credentials{Keys: make(map[string]string)}
	}

	creds.Keys[providerID] = apiKey

	return writeCredentials(path, creds)
}

func DeleteCredential(providerID string) error {
	return DeleteCredentialFrom(CredentialsPath(), providerID)
}

func DeleteCredentialFrom(path, providerID string) error {
	credMu.Lock()
	defer credMu.Unlock()

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		return err
	}

	delete(creds.Keys, providerID)

	return writeCredentials(path, creds)
}

func writeCredentials(path string, creds Credentials) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Resolver builds a core.ConfigResolver from the dashboard config and the
// stored credentials. Env vars fill keys the credentials file doesn't hold.
func Resolver(cfg Config, creds Credentials) core.ConfigResolver {
	return func(providerID string) core.CollectorConfig {
		key := creds.Keys[providerID]
		if key == "" {
			if envVar, ok := APIKeyEnvVars[providerID]; ok {
				key = os.Getenv(envVar)
			}
		}
		return core.CollectorConfig{
			APIKey:  key,
			BaseURL: cfg.BaseURLs[providerID],
			Enabled: key != "",
		}
	}
}
