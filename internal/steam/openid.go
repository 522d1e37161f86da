// Package steam speaks the two OpenID 2.0 messages Steam needs
// (checkid_setup and check_authentication) and the Web API persona lookup.
package steam

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultOpenIDEndpoint serves both checkid_setup and check_authentication
	DefaultOpenIDEndpoint = "https://steamcommunity.com/openid/login"
	// DefaultWebAPIBaseURL is the Steam Web API root
	DefaultWebAPIBaseURL = "https://api.steampowered.com"

	// Issuer names the identity provider on issued principals
	Issuer = "Steam"

	NamespaceOpenID2   = "http://specs.openid.net/auth/2.0"
	IdentifierSelect   = "http://specs.openid.net/auth/2.0/identifier_select"
	ModeCheckIDSetup   = "checkid_setup"
	ModeIDRes          = "id_res"
	ModeCheckAuth      = "check_authentication"
	openIDParamPrefix  = "openid."
	paramMode          = "openid.mode"
	paramClaimedID     = "openid.claimed_id"
	validAssertionBody = "is_valid:true"
)

// AuthenticationURL builds the checkid_setup redirect for the given return_to and realm
func AuthenticationURL(endpoint, returnTo, realm string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid OpenID endpoint: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("invalid OpenID endpoint: %q is not absolute", endpoint)
	}

	q := u.Query()
	q.Set("openid.ns", NamespaceOpenID2)
	q.Set(paramMode, ModeCheckIDSetup)
	q.Set("openid.return_to", returnTo)
	q.Set("openid.realm", realm)
	q.Set("openid.identity", IdentifierSelect)
	q.Set(paramClaimedID, IdentifierSelect)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Assertion is the set of openid.* fields returned by Steam on the callback.
// Only the first value of a repeated field is considered.
type Assertion struct {
	fields url.Values
}

// NewAssertion keeps the openid.* fields of the callback query
func NewAssertion(query url.Values) Assertion {
	fields := make(url.Values)
	for key, values := range query {
		if strings.HasPrefix(key, openIDParamPrefix) && len(values) > 0 {
			fields.Set(key, values[0])
		}
	}
	return Assertion{fields: fields}
}

// Get returns the value of an openid.* field
func (a Assertion) Get(key string) string {
	return a.fields.Get(key)
}

// Mode returns openid.mode
func (a Assertion) Mode() string {
	return a.fields.Get(paramMode)
}

// ClaimedID returns openid.claimed_id
func (a Assertion) ClaimedID() string {
	return a.fields.Get(paramClaimedID)
}

// CheckAuthenticationForm copies the assertion with openid.mode replaced
// by check_authentication. The assertion itself is not modified.
func (a Assertion) CheckAuthenticationForm() url.Values {
	form := make(url.Values, len(a.fields))
	for key, values := range a.fields {
		form[key] = append([]string(nil), values...)
	}
	form.Set(paramMode, ModeCheckAuth)
	return form
}
