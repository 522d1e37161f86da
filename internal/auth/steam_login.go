// Package auth runs the Steam OpenID 2.0 sign-in flow from redirect to verified identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
	"github.com/tniemenmaa/dota-fantasy-league/internal/metrics"
	"github.com/tniemenmaa/dota-fantasy-league/internal/session"
	"github.com/tniemenmaa/dota-fantasy-league/internal/steam"
)

// CallbackPath is where Steam sends the browser back
const CallbackPath = "/auth/signin/steam/callback"

var (
	// ErrMissingState means the callback had no state parameter
	ErrMissingState = errors.New("missing state parameter")
	// ErrInvalidState means the state parameter did not open
	ErrInvalidState = errors.New("invalid state parameter")
	// ErrAssertionRejected means Steam did not confirm the assertion
	ErrAssertionRejected = errors.New("steam assertion rejected")
	// ErrMissingIdentity means the claimed id carried no usable external id
	ErrMissingIdentity = errors.New("missing steam identifier")
	// ErrVerificationInterrupted means the caller went away during verification
	ErrVerificationInterrupted = errors.New("verification interrupted")
)

// SteamLogin builds the Steam redirect and validates the callback
type SteamLogin struct {
	codec          session.StateCodec
	verifier       steam.Verifier
	personas       steam.PersonaResolver
	openIDEndpoint string
	metrics        *metrics.Metrics
}

// NewSteamLogin wires the flow. An empty openIDEndpoint means Steam's.
func NewSteamLogin(codec session.StateCodec, verifier steam.Verifier, personas steam.PersonaResolver, openIDEndpoint string, m *metrics.Metrics) *SteamLogin {
	if openIDEndpoint == "" {
		openIDEndpoint = steam.DefaultOpenIDEndpoint
	}
	return &SteamLogin{
		codec:          codec,
		verifier:       verifier,
		personas:       personas,
		openIDEndpoint: openIDEndpoint,
		metrics:        m,
	}
}

// Initiate returns the Steam URL for a login that ends at returnPath.
// origin is scheme://host of this service without a trailing slash.
func (l *SteamLogin) Initiate(returnPath, origin string) (string, error) {
	normalized := session.NormalizeReturnPath(returnPath)

	state, err := l.codec.Seal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to seal state: %w", err)
	}

	callback := origin + CallbackPath + "?" + url.Values{"state": {state}}.Encode()
	realm := origin + "/"

	authURL, err := steam.AuthenticationURL(l.openIDEndpoint, callback, realm)
	if err != nil {
		return "", err
	}

	log.LogDebugWithFields("auth", "Steam login initiated", map[string]any{
		"returnPath": normalized,
		"realm":      realm,
	})
	return authURL, nil
}

// Complete validates a callback query and returns the verified identity and
// the return path sealed at Initiate. The persona lookup only runs once
// Steam has confirmed the assertion.
func (l *SteamLogin) Complete(ctx context.Context, query url.Values) (steam.Identity, string, error) {
	state := query.Get("state")
	if state == "" {
		return steam.Identity{}, "", ErrMissingState
	}

	returnPath, err := l.codec.Open(state)
	if err != nil {
		log.LogWarnWithFields("auth", "Rejected callback with invalid state", map[string]any{
			"error": err.Error(),
		})
		return steam.Identity{}, "", fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	assertion := steam.NewAssertion(query)

	start := time.Now()
	err = l.verifier.Verify(ctx, assertion)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			l.metrics.ObserveVerification(metrics.VerificationCancelled, elapsed)
			log.LogInfoWithFields("auth", "Steam verification cancelled", map[string]any{
				"error": err.Error(),
			})
			return steam.Identity{}, "", fmt.Errorf("%w: %w", ErrVerificationInterrupted, err)
		}
		l.metrics.ObserveVerification(metrics.VerificationRejected, elapsed)
		log.LogWarnWithFields("auth", "Steam assertion rejected", map[string]any{
			"mode":  assertion.Mode(),
			"error": err.Error(),
		})
		return steam.Identity{}, "", fmt.Errorf("%w: %w", ErrAssertionRejected, err)
	}
	l.metrics.ObserveVerification(metrics.VerificationValid, elapsed)

	externalID, ok := steam.ExtractExternalID(assertion.ClaimedID())
	if !ok {
		log.LogWarnWithFields("auth", "Verified assertion has no usable claimed id", map[string]any{
			"claimedId": assertion.ClaimedID(),
		})
		return steam.Identity{}, "", ErrMissingIdentity
	}

	displayName := l.personas.ResolveDisplayName(ctx, externalID)
	if err := ctx.Err(); err != nil {
		log.LogInfoWithFields("auth", "Steam login cancelled during persona lookup", map[string]any{
			"externalId": externalID,
		})
		return steam.Identity{}, "", fmt.Errorf("%w: %w", ErrVerificationInterrupted, err)
	}

	return steam.Identity{
		ExternalID:  externalID,
		DisplayName: displayName,
	}, returnPath, nil
}

// LoginOutcome maps a Complete error to its metrics label
func LoginOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrMissingState):
		return metrics.OutcomeMissingState
	case errors.Is(err, ErrInvalidState):
		return metrics.OutcomeInvalidState
	case errors.Is(err, ErrVerificationInterrupted):
		return metrics.OutcomeCancelled
	case errors.Is(err, ErrAssertionRejected):
		return metrics.OutcomeAssertionRejected
	case errors.Is(err, ErrMissingIdentity):
		return metrics.OutcomeMissingIdentity
	default:
		return metrics.OutcomeSessionError
	}
}
