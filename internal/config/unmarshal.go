package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
)

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}

func parseStringField(field string, raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", nil
	}
	value, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", field, err)
	}
	return value, nil
}

// UnmarshalJSON implements custom unmarshaling for ServerConfig
func (s *ServerConfig) UnmarshalJSON(data []byte) error {
	type rawServer struct {
		BaseURL        json.RawMessage `json:"baseURL"`
		Addr           json.RawMessage `json:"addr"`
		Name           string          `json:"name"`
		AllowedOrigins []string        `json:"allowedOrigins"`
	}

	var raw rawServer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	baseURL, err := parseStringField("baseURL", raw.BaseURL)
	if err != nil {
		return err
	}
	addr, err := parseStringField("addr", raw.Addr)
	if err != nil {
		return err
	}

	s.BaseURL = strings.TrimSuffix(baseURL, "/")
	s.Addr = addr
	s.Name = raw.Name
	s.AllowedOrigins = raw.AllowedOrigins
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SteamConfig.
// An apiKey referencing an unset variable disables persona lookup instead of failing.
func (s *SteamConfig) UnmarshalJSON(data []byte) error {
	type rawSteam struct {
		APIKey               json.RawMessage `json:"apiKey,omitempty"`
		OpenIDEndpoint       string          `json:"openIdEndpoint"`
		VerificationEndpoint string          `json:"verificationEndpoint"`
		WebAPIBaseURL        string          `json:"webApiBaseURL"`
		VerifyTimeout        string          `json:"verifyTimeout"`
		PersonaTimeout       string          `json:"personaTimeout"`
		PersonaCacheTTL      string          `json:"personaCacheTtl"`
		PersonaCacheSize     int             `json:"personaCacheSize"`
	}

	var raw rawSteam
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.APIKey != nil {
		key, err := ParseConfigValue(raw.APIKey)
		switch {
		case err == nil:
			s.APIKey = Secret(key)
		case isEnvNotSet(err):
			log.LogWarnWithFields("config", "Steam Web API key not set, persona lookup disabled", map[string]any{
				"error": err.Error(),
			})
		default:
			return fmt.Errorf("parsing apiKey: %w", err)
		}
	}

	s.OpenIDEndpoint = raw.OpenIDEndpoint
	s.VerificationEndpoint = raw.VerificationEndpoint
	s.WebAPIBaseURL = strings.TrimSuffix(raw.WebAPIBaseURL, "/")
	s.PersonaCacheSize = raw.PersonaCacheSize

	var err error
	if s.VerifyTimeout, err = parseDuration("verifyTimeout", raw.VerifyTimeout); err != nil {
		return err
	}
	if s.PersonaTimeout, err = parseDuration("personaTimeout", raw.PersonaTimeout); err != nil {
		return err
	}
	if s.PersonaCacheTTL, err = parseDuration("personaCacheTtl", raw.PersonaCacheTTL); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSession struct {
		EncryptionKey json.RawMessage `json:"encryptionKey"`
		TTL           string          `json:"ttl"`
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	key, err := parseStringField("encryptionKey", raw.EncryptionKey)
	if err != nil {
		return err
	}
	s.EncryptionKey = Secret(key)

	if s.TTL, err = parseDuration("ttl", raw.TTL); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind                StorageKind     `json:"kind"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	project, err := parseStringField("gcpProject", raw.GCPProject)
	if err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.GCPProject = project
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection
	return nil
}

// applyDefaults fills in omitted fields
func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Name == "" {
		c.Server.Name = DefaultName
	}
	if c.Steam.OpenIDEndpoint == "" {
		c.Steam.OpenIDEndpoint = DefaultOpenIDEndpoint
	}
	if c.Steam.VerificationEndpoint == "" {
		c.Steam.VerificationEndpoint = DefaultOpenIDEndpoint
	}
	if c.Steam.WebAPIBaseURL == "" {
		c.Steam.WebAPIBaseURL = DefaultWebAPIBaseURL
	}
	if c.Steam.VerifyTimeout == 0 {
		c.Steam.VerifyTimeout = DefaultVerifyTimeout
	}
	if c.Steam.PersonaTimeout == 0 {
		c.Steam.PersonaTimeout = DefaultPersonaTimeout
	}
	if c.Steam.PersonaCacheTTL == 0 {
		c.Steam.PersonaCacheTTL = DefaultPersonaCacheTTL
	}
	if c.Steam.PersonaCacheSize == 0 {
		c.Steam.PersonaCacheSize = DefaultPersonaCacheSize
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = StorageKindMemory
	}
	if c.Storage.Kind == StorageKindFirestore && c.Storage.FirestoreCollection == "" {
		c.Storage.FirestoreCollection = DefaultFirestoreCollection
	}
}
