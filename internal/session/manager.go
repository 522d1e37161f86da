package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tniemenmaa/dota-fantasy-league/internal/cookie"
	"github.com/tniemenmaa/dota-fantasy-league/internal/crypto"
	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
	"github.com/tniemenmaa/dota-fantasy-league/internal/steam"
)

// CookiePurpose scopes the session cookie key
const CookiePurpose = "SteamSessionCookie"

// DefaultTTL is the session lifetime when none is configured
const DefaultTTL = 14 * 24 * time.Hour

// ErrUnauthenticated is returned when the request carries no usable session
var ErrUnauthenticated = errors.New("not authenticated")

// Manager issues, reads and clears the session cookie
type Manager struct {
	encryptor crypto.Encryptor
	ttl       time.Duration
	now       func() time.Time
}

// NewManager derives the cookie key from masterKey
func NewManager(masterKey []byte, ttl time.Duration) (*Manager, error) {
	encryptor, err := crypto.NewPurposeEncryptor(masterKey, CookiePurpose)
	if err != nil {
		return nil, fmt.Errorf("failed to create session encryptor: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		encryptor: encryptor,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// NewPrincipal maps a verified identity to a principal.
// Without a persona name the external id doubles as the name.
func NewPrincipal(identity steam.Identity) Principal {
	name := identity.DisplayName
	if name == "" {
		name = identity.ExternalID
	}
	return Principal{
		Subject: identity.ExternalID,
		Name:    name,
		Issuer:  steam.Issuer,
	}
}

// Issue establishes a session for identity
func (m *Manager) Issue(w http.ResponseWriter, identity steam.Identity) (Principal, error) {
	if identity.ExternalID == "" {
		return Principal{}, fmt.Errorf("identity has no external id")
	}

	principal := NewPrincipal(identity)
	data, err := json.Marshal(BrowserCookie{
		Subject: principal.Subject,
		Name:    principal.Name,
		Issuer:  principal.Issuer,
		Expires: m.now().Add(m.ttl),
	})
	if err != nil {
		return Principal{}, fmt.Errorf("failed to marshal session: %w", err)
	}

	encrypted, err := m.encryptor.Encrypt(string(data))
	if err != nil {
		return Principal{}, fmt.Errorf("failed to encrypt session: %w", err)
	}

	cookie.SetSession(w, encrypted, m.ttl)
	return principal, nil
}

// Introspect returns the principal of a valid session cookie
func (m *Manager) Introspect(r *http.Request) (Principal, error) {
	value, err := cookie.GetSession(r)
	if err != nil || value == "" {
		return Principal{}, ErrUnauthenticated
	}

	decrypted, err := m.encryptor.Decrypt(value)
	if err != nil {
		log.LogDebugWithFields("session", "Invalid session cookie", map[string]any{
			"error": err.Error(),
		})
		return Principal{}, ErrUnauthenticated
	}

	var data BrowserCookie
	if err := json.Unmarshal([]byte(decrypted), &data); err != nil {
		log.LogDebugWithFields("session", "Malformed session cookie", map[string]any{
			"error": err.Error(),
		})
		return Principal{}, ErrUnauthenticated
	}

	if !m.now().Before(data.Expires) {
		log.LogDebugWithFields("session", "Session cookie expired", map[string]any{
			"subject": data.Subject,
			"expired": data.Expires,
		})
		return Principal{}, ErrUnauthenticated
	}

	if data.Subject == "" || data.Issuer != steam.Issuer {
		return Principal{}, ErrUnauthenticated
	}

	return Principal{Subject: data.Subject, Name: data.Name, Issuer: data.Issuer}, nil
}

// Terminate clears the session and returns where to send the browser
func (m *Manager) Terminate(w http.ResponseWriter, returnPath string) string {
	cookie.ClearSession(w)
	return RedirectTarget(returnPath)
}
