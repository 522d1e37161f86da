package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name          string
		config        string
		wantErrors    []string
		wantWarnings  []string
		wantErrCount  int
		wantWarnCount int
	}{
		{
			name: "valid_full_config",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com", "addr": ":8080"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}, "verifyTimeout": "10s"},
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}, "ttl": "336h"},
				"storage": {"kind": "firestore", "gcpProject": "dfl-prod"}
			}`,
			wantErrCount:  0,
			wantWarnCount: 0,
		},
		{
			name: "minimal_config",
			config: `{
				"version": "v0.1",
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}}
			}`,
			wantWarnings:  []string{"server section missing", "steam section missing"},
			wantErrCount:  0,
			wantWarnCount: 2,
		},
		{
			name:          "invalid_json",
			config:        `{"version": `,
			wantErrors:    []string{"invalid JSON"},
			wantErrCount:  1,
			wantWarnCount: 0,
		},
		{
			name: "missing_version",
			config: `{
				"server": {"baseURL": "https://league.example.com"},
				"steam": {},
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}}
			}`,
			wantErrors:    []string{"version field is required"},
			wantWarnings:  []string{"apiKey not set"},
			wantErrCount:  1,
			wantWarnCount: 1,
		},
		{
			name: "unsupported_version",
			config: `{
				"version": "v1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}},
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}}
			}`,
			wantErrors:   []string{"unsupported version 'v1'"},
			wantErrCount: 1,
		},
		{
			name: "missing_session",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}}
			}`,
			wantErrors:   []string{"session field is required"},
			wantErrCount: 1,
		},
		{
			name: "plain_text_secrets",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": "ABCDEF"},
				"session": {"encryptionKey": "plain-text-key-that-is-long-enough"}
			}`,
			wantErrors:   []string{"apiKey must use environment variable reference", "encryptionKey must use environment variable reference"},
			wantErrCount: 2,
		},
		{
			name: "bash_style_secret",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}},
				"session": {"encryptionKey": "$SESSION_ENCRYPTION_KEY"}
			}`,
			wantErrors:    []string{"found bash-style syntax"},
			wantWarnings:  []string{"found bash-style syntax"},
			wantErrCount:  1,
			wantWarnCount: 1,
		},
		{
			name: "bad_durations",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}, "verifyTimeout": "fast", "personaTimeout": 5},
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}, "ttl": "two weeks"}
			}`,
			wantErrors:   []string{"invalid duration 'fast'", "personaTimeout must be a duration string", "invalid duration 'two weeks'"},
			wantErrCount: 3,
		},
		{
			name: "firestore_without_project",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}},
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}},
				"storage": {"kind": "firestore"}
			}`,
			wantErrors:   []string{"gcpProject is required"},
			wantErrCount: 1,
		},
		{
			name: "memory_storage_warns",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}},
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}},
				"storage": {"kind": "memory"}
			}`,
			wantWarnings:  []string{"memory storage forgets"},
			wantWarnCount: 1,
		},
		{
			name: "unknown_storage_kind",
			config: `{
				"version": "v0.1",
				"server": {"baseURL": "https://league.example.com"},
				"steam": {"apiKey": {"$env": "STEAM_API_KEY"}},
				"session": {"encryptionKey": {"$env": "SESSION_ENCRYPTION_KEY"}},
				"storage": {"kind": "redis"}
			}`,
			wantErrors:   []string{"invalid storage kind 'redis'"},
			wantErrCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateFile(writeConfig(t, tt.config))
			require.NoError(t, err)

			assert.Len(t, result.Errors, tt.wantErrCount, "errors: %v", result.Errors)
			assert.Len(t, result.Warnings, tt.wantWarnCount, "warnings: %v", result.Warnings)
			assert.Equal(t, tt.wantErrCount == 0, result.IsValid())

			for _, want := range tt.wantErrors {
				assert.True(t, containsMessage(result.Errors, want), "expected error containing %q in %v", want, result.Errors)
			}
			for _, want := range tt.wantWarnings {
				assert.True(t, containsMessage(result.Warnings, want), "expected warning containing %q in %v", want, result.Warnings)
			}
		})
	}
}

func TestValidateFile_MissingFile(t *testing.T) {
	_, err := ValidateFile("/nonexistent/config.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func containsMessage(issues []ValidationError, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue.Message, substr) {
			return true
		}
	}
	return false
}
