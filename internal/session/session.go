// Package session seals login state and issues the Steam session cookie.
package session

import "time"

// Principal is the signed-in user as seen by handlers
type Principal struct {
	Subject string `json:"subject"`
	Name    string `json:"name"`
	Issuer  string `json:"issuer"`
}

// BrowserCookie represents the data stored in the encrypted session cookie
type BrowserCookie struct {
	Subject string    `json:"sub"`
	Name    string    `json:"name"`
	Issuer  string    `json:"iss"`
	Expires time.Time `json:"expires"`
}

// AuthorizationState is carried through the provider round trip in the state parameter
type AuthorizationState struct {
	ReturnPath string `json:"return_path"`
}
