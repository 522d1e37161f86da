package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// VersionPrefix is the accepted config version
const VersionPrefix = "v0.1"

// minEncryptionKeyLength is the minimum master key length in bytes
const minEncryptionKeyLength = 32

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, VersionPrefix) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig requires secrets to be env references before anything is resolved
func validateRawConfig(rawConfig map[string]any) error {
	secrets := []struct {
		section  string
		name     string
		required bool
	}{
		{"session", "encryptionKey", true},
		{"steam", "apiKey", false},
	}

	for _, secret := range secrets {
		section, _ := rawConfig[secret.section].(map[string]any)
		value, exists := section[secret.name]
		if !exists {
			if secret.required {
				return fmt.Errorf("%s.%s is required", secret.section, secret.name)
			}
			continue
		}
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s.%s must use environment variable reference for security", secret.section, secret.name)
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("%s.%s must use {\"$env\": \"VAR_NAME\"} format", secret.section, secret.name)
			}
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if config.Server.BaseURL != "" {
		if err := validateOrigin(config.Server.BaseURL); err != nil {
			return fmt.Errorf("server.baseURL: %w", err)
		}
	}
	for _, origin := range config.Server.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("server.allowedOrigins: %w", err)
		}
	}

	if err := validateSteamConfig(&config.Steam); err != nil {
		return fmt.Errorf("steam config: %w", err)
	}

	if len(config.Session.EncryptionKey) < minEncryptionKeyLength {
		return fmt.Errorf("session.encryptionKey must be at least %d characters (got %d). Generate with: fantasy-league -generate-key", minEncryptionKeyLength, len(config.Session.EncryptionKey))
	}
	if config.Session.TTL < time.Minute {
		return fmt.Errorf("session.ttl must be at least 1m")
	}

	switch config.Storage.Kind {
	case StorageKindMemory:
	case StorageKindFirestore:
		if config.Storage.GCPProject == "" {
			return fmt.Errorf("storage.gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("storage.kind must be %q or %q, got %q", StorageKindMemory, StorageKindFirestore, config.Storage.Kind)
	}

	return nil
}

func validateSteamConfig(steam *SteamConfig) error {
	for name, endpoint := range map[string]string{
		"openIdEndpoint":       steam.OpenIDEndpoint,
		"verificationEndpoint": steam.VerificationEndpoint,
		"webApiBaseURL":        steam.WebAPIBaseURL,
	} {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, endpoint)
		}
	}
	if steam.PersonaCacheSize < 0 {
		return fmt.Errorf("personaCacheSize cannot be negative")
	}
	return nil
}

// validateOrigin accepts scheme://host[:port] with no path, query or fragment
func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", origin, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%q must be an absolute http(s) URL", origin)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%q must be an origin without path or query", origin)
	}
	return nil
}
