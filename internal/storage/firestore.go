package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage keeps the user directory in a Firestore collection,
// one document per external id.
type FirestoreStorage struct {
	client     *firestore.Client
	projectID  string
	collection string
}

var _ Storage = (*FirestoreStorage)(nil)

// UserDoc represents a user document in Firestore
type UserDoc struct {
	ExternalID  string    `firestore:"external_id"`
	DisplayName string    `firestore:"display_name"`
	FirstSeen   time.Time `firestore:"first_seen"`
	LastSeen    time.Time `firestore:"last_seen"`
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string, opts ...option.ClientOption) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	opts = append([]option.ClientOption{option.WithUserAgent("dota-fantasy-league")}, opts...)

	var client *firestore.Client
	var err error
	if database != "" && database != firestore.DefaultDatabaseID {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	} else {
		client, err = firestore.NewClient(ctx, projectID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Firestore", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStorage{
		client:     client,
		projectID:  projectID,
		collection: collection,
	}, nil
}

// UpsertUser creates or updates a user's last seen time
func (s *FirestoreStorage) UpsertUser(ctx context.Context, externalID, displayName string) error {
	ref := s.client.Collection(s.collection).Doc(externalID)
	now := time.Now()

	_, err := ref.Get(ctx)
	if err == nil {
		updates := []firestore.Update{{Path: "last_seen", Value: now}}
		if displayName != "" {
			updates = append(updates, firestore.Update{Path: "display_name", Value: displayName})
		}
		_, err = ref.Update(ctx, updates)
		return err
	}

	if status.Code(err) == codes.NotFound {
		_, err = ref.Set(ctx, UserDoc{
			ExternalID:  externalID,
			DisplayName: displayName,
			FirstSeen:   now,
			LastSeen:    now,
		})
		return err
	}

	return fmt.Errorf("failed to get user from Firestore: %w", err)
}

// GetUser fetches a user document
func (s *FirestoreStorage) GetUser(ctx context.Context, externalID string) (*UserInfo, error) {
	doc, err := s.client.Collection(s.collection).Doc(externalID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user from Firestore: %w", err)
	}

	var userDoc UserDoc
	if err := doc.DataTo(&userDoc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	user := UserInfo(userDoc)
	return &user, nil
}

// Close closes the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
