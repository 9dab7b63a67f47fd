package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when a credential reference has no secret
var ErrNotFound = errors.New("secret not found")

// VaultConfig configures the Vault-backed credential store
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	KVVersion int
	Timeout   time.Duration
}

// LoadVaultConfigFromEnv reads Vault settings from the environment
func LoadVaultConfigFromEnv() VaultConfig {
	enabled := strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true")
	mount := os.Getenv("VAULT_MOUNT")
	if mount == "" {
		mount = "secret"
	}
	kvVersion := 2
	if val := os.Getenv("VAULT_KV_VERSION"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			kvVersion = parsed
		}
	}
	timeout := 5 * time.Second
	if val := os.Getenv("VAULT_TIMEOUT_MS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			timeout = time.Duration(parsed) * time.Millisecond
		}
	}

	return VaultConfig{
		Enabled:   enabled,
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     mount,
		KVVersion: kvVersion,
		Timeout:   timeout,
	}
}

// VaultStore resolves credential references against a Vault KV mount.
// A credential reference is the KV path under the configured mount, e.g.
// "tenants/42/calendar".
type VaultStore struct {
	cfg    VaultConfig
	client *http.Client
}

// NewVaultStore creates a Vault credential store
func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	if cfg.Addr == "" || cfg.Token == "" {
		return nil, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN)")
	}
	return &VaultStore{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Resolve fetches the secret material stored under credentialRef
func (s *VaultStore) Resolve(ctx context.Context, credentialRef string) (map[string]string, error) {
	url, err := buildVaultURL(s.cfg.Addr, s.cfg.Mount, credentialRef, s.cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", s.cfg.Token)
	if s.cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", s.cfg.Namespace)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, credentialRef)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	data, err := extractVaultData(payload, s.cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	secrets := make(map[string]string, len(data))
	for key, value := range data {
		secrets[key] = stringifyVaultValue(value)
	}
	return secrets, nil
}

// StaticStore is a map-backed credential store for development and tests
type StaticStore struct {
	secrets map[string]map[string]string
}

// NewStaticStore creates a static credential store
func NewStaticStore(secrets map[string]map[string]string) *StaticStore {
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	return &StaticStore{secrets: secrets}
}

// Resolve returns the static secret for credentialRef
func (s *StaticStore) Resolve(ctx context.Context, credentialRef string) (map[string]string, error) {
	secret, ok := s.secrets[credentialRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, credentialRef)
	}
	return secret, nil
}

func buildVaultURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

func extractVaultData(payload map[string]interface{}, kvVersion int) (map[string]interface{}, error) {
	if kvVersion == 1 {
		if data, ok := payload["data"].(map[string]interface{}); ok {
			return data, nil
		}
		return nil, errors.New("vault response missing data for KV v1")
	}

	if data, ok := payload["data"].(map[string]interface{}); ok {
		if inner, ok := data["data"].(map[string]interface{}); ok {
			return inner, nil
		}
	}
	return nil, errors.New("vault response missing data for KV v2")
}

func stringifyVaultValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
