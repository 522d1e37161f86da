package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tniemenmaa/dota-fantasy-league/internal/crypto"
)

// StatePurpose scopes the state codec key. It must differ from every other
// use of the master key.
const StatePurpose = "SteamAuthenticationState"

// ErrInvalidState is returned for state tokens that are malformed, foreign or tampered
var ErrInvalidState = errors.New("invalid state parameter")

// StateCodec seals the post-login return path into an opaque token
type StateCodec interface {
	Seal(returnPath string) (string, error)
	Open(token string) (string, error)
}

// EncryptedStateCodec implements StateCodec with an AEAD encryptor
type EncryptedStateCodec struct {
	encryptor crypto.Encryptor
}

var _ StateCodec = (*EncryptedStateCodec)(nil)

// NewStateCodec derives the state key from masterKey
func NewStateCodec(masterKey []byte) (*EncryptedStateCodec, error) {
	encryptor, err := crypto.NewPurposeEncryptor(masterKey, StatePurpose)
	if err != nil {
		return nil, fmt.Errorf("failed to create state encryptor: %w", err)
	}
	return &EncryptedStateCodec{encryptor: encryptor}, nil
}

// Seal returns a URL-safe token carrying returnPath
func (c *EncryptedStateCodec) Seal(returnPath string) (string, error) {
	data, err := json.Marshal(AuthorizationState{ReturnPath: returnPath})
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	token, err := c.encryptor.Encrypt(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to seal state: %w", err)
	}
	return token, nil
}

// Open recovers the return path from a token produced by Seal
func (c *EncryptedStateCodec) Open(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidState
	}

	plaintext, err := c.encryptor.Decrypt(token)
	if err != nil {
		return "", ErrInvalidState
	}

	var state AuthorizationState
	if err := json.Unmarshal([]byte(plaintext), &state); err != nil {
		return "", ErrInvalidState
	}
	return state.ReturnPath, nil
}
