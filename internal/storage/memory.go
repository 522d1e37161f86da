package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps users in process memory
type MemoryStorage struct {
	usersMutex sync.RWMutex
	users      map[string]*UserInfo
	now        func() time.Time
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new in-memory user directory
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]*UserInfo),
		now:   time.Now,
	}
}

// UpsertUser creates or updates a user's last seen time
func (s *MemoryStorage) UpsertUser(ctx context.Context, externalID, displayName string) error {
	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	now := s.now()
	if user, exists := s.users[externalID]; exists {
		user.LastSeen = now
		if displayName != "" {
			user.DisplayName = displayName
		}
		return nil
	}

	s.users[externalID] = &UserInfo{
		ExternalID:  externalID,
		DisplayName: displayName,
		FirstSeen:   now,
		LastSeen:    now,
	}
	return nil
}

// GetUser returns a copy of the stored user
func (s *MemoryStorage) GetUser(ctx context.Context, externalID string) (*UserInfo, error) {
	s.usersMutex.RLock()
	defer s.usersMutex.RUnlock()

	user, exists := s.users[externalID]
	if !exists {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// Close is a no-op for memory storage
func (s *MemoryStorage) Close() error {
	return nil
}
