package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the user directory backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// Defaults applied when a field is omitted
const (
	DefaultAddr                = ":8080"
	DefaultName                = "dota-fantasy-league"
	DefaultOpenIDEndpoint      = "https://steamcommunity.com/openid/login"
	DefaultWebAPIBaseURL       = "https://api.steampowered.com"
	DefaultVerifyTimeout       = 10 * time.Second
	DefaultPersonaTimeout      = 5 * time.Second
	DefaultPersonaCacheTTL     = 10 * time.Minute
	DefaultPersonaCacheSize    = 1024
	DefaultSessionTTL          = 14 * 24 * time.Hour
	DefaultFirestoreCollection = "dfl_users"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// BaseURL is the public origin. When empty it is derived from each request.
	BaseURL        string   `json:"baseURL"`
	Addr           string   `json:"addr"`
	Name           string   `json:"name"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

// SteamConfig configures the OpenID endpoints and the Web API persona lookup
type SteamConfig struct {
	// APIKey is optional; persona lookup is disabled without it.
	APIKey               Secret        `json:"apiKey"`
	OpenIDEndpoint       string        `json:"openIdEndpoint"`
	VerificationEndpoint string        `json:"verificationEndpoint"`
	WebAPIBaseURL        string        `json:"webApiBaseURL"`
	VerifyTimeout        time.Duration `json:"verifyTimeout"`
	PersonaTimeout       time.Duration `json:"personaTimeout"`
	PersonaCacheTTL      time.Duration `json:"personaCacheTtl"`
	PersonaCacheSize     int           `json:"personaCacheSize"`
}

// SessionConfig configures the state and session cookie keys
type SessionConfig struct {
	EncryptionKey Secret        `json:"encryptionKey"`
	TTL           time.Duration `json:"ttl"`
}

// StorageConfig configures the user directory
type StorageConfig struct {
	Kind                StorageKind `json:"kind"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Server  ServerConfig  `json:"server"`
	Steam   SteamConfig   `json:"steam"`
	Session SessionConfig `json:"session"`
	Storage StorageConfig `json:"storage"`
}

// EnvNotSetError is returned when a {"$env": ...} reference names an unset variable
type EnvNotSetError struct {
	Name string
}

func (e *EnvNotSetError) Error() string {
	return fmt.Sprintf("environment variable %s not set", e.Name)
}

// ParseConfigValue parses a JSON value that is either a string or an
// {"$env": "VAR"} reference, resolving the reference immediately.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", &EnvNotSetError{Name: envVar}
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}

// isEnvNotSet reports whether err came from an unset $env reference
func isEnvNotSet(err error) bool {
	var notSet *EnvNotSetError
	return errors.As(err, &notSet)
}
