package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user doesn't exist
var ErrUserNotFound = errors.New("user not found")

// UserInfo represents a player who has signed in with Steam
type UserInfo struct {
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// Storage is the user directory. It records who signed in and when; it holds no sessions.
type Storage interface {
	// UpsertUser records a sign-in. An empty displayName keeps the stored one.
	UpsertUser(ctx context.Context, externalID, displayName string) error
	GetUser(ctx context.Context, externalID string) (*UserInfo, error)
	Close() error
}
