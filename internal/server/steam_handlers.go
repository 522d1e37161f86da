package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/tniemenmaa/dota-fantasy-league/internal/auth"
	jsonwriter "github.com/tniemenmaa/dota-fantasy-league/internal/json"
	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
	"github.com/tniemenmaa/dota-fantasy-league/internal/metrics"
	"github.com/tniemenmaa/dota-fantasy-league/internal/session"
	"github.com/tniemenmaa/dota-fantasy-league/internal/storage"
)

// SteamHandlers serves the sign-in, callback, current user and sign-out endpoints
type SteamHandlers struct {
	login    *auth.SteamLogin
	sessions *session.Manager
	users    storage.Storage
	baseURL  string
	metrics  *metrics.Metrics
}

// MeResponse is the body of GET /auth/me
type MeResponse struct {
	UserName    string     `json:"userName"`
	ExternalID  string     `json:"externalId"`
	MemberSince *time.Time `json:"memberSince,omitempty"`
}

// NewSteamHandlers creates the handlers. An empty baseURL derives the origin
// from each request; users may be nil.
func NewSteamHandlers(login *auth.SteamLogin, sessions *session.Manager, users storage.Storage, baseURL string, m *metrics.Metrics) *SteamHandlers {
	return &SteamHandlers{
		login:    login,
		sessions: sessions,
		users:    users,
		baseURL:  baseURL,
		metrics:  m,
	}
}

// SignInHandler redirects the browser to Steam
func (h *SteamHandlers) SignInHandler(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.login.Initiate(r.URL.Query().Get("returnUrl"), h.origin(r))
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to start Steam login", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to start Steam login")
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// CallbackHandler verifies the Steam assertion and signs the user in
func (h *SteamHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, returnPath, err := h.login.Complete(ctx, r.URL.Query())
	if err != nil {
		h.metrics.RecordLogin(auth.LoginOutcome(err))
		writeLoginError(w, err)
		return
	}

	principal, err := h.sessions.Issue(w, identity)
	if err != nil {
		h.metrics.RecordLogin(auth.LoginOutcome(err))
		log.LogErrorWithFields("auth", "Failed to issue session", map[string]any{
			"externalId": identity.ExternalID,
			"error":      err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to create session")
		return
	}

	if h.users != nil {
		if err := h.users.UpsertUser(ctx, principal.Subject, identity.DisplayName); err != nil {
			log.LogWarnWithFields("auth", "Failed to record user", map[string]any{
				"externalId": principal.Subject,
				"error":      err.Error(),
			})
		}
	}

	h.metrics.RecordLogin(metrics.OutcomeSuccess)
	log.LogInfoWithFields("auth", "Steam login succeeded", map[string]any{
		"externalId": principal.Subject,
		"name":       principal.Name,
	})

	http.Redirect(w, r, session.RedirectTarget(returnPath), http.StatusFound)
}

// MeHandler reports the signed-in user
func (h *SteamHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	principal, err := h.sessions.Introspect(r)
	if err != nil {
		jsonwriter.WriteUnauthorized(w, "Not signed in")
		return
	}
	resp := MeResponse{
		UserName:   principal.Name,
		ExternalID: principal.Subject,
	}
	if h.users != nil {
		user, err := h.users.GetUser(r.Context(), principal.Subject)
		if err != nil {
			log.LogDebugWithFields("auth", "No user record for session", map[string]any{
				"externalId": principal.Subject,
				"error":      err.Error(),
			})
		} else {
			firstSeen := user.FirstSeen
			resp.MemberSince = &firstSeen
		}
	}
	_ = jsonwriter.Write(w, resp)
}

// SignOutHandler clears the session and redirects to returnUrl
func (h *SteamHandlers) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	target := h.sessions.Terminate(w, r.URL.Query().Get("returnUrl"))
	http.Redirect(w, r, target, http.StatusFound)
}

// origin returns scheme://host of this service
func (h *SteamHandlers) origin(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingState):
		jsonwriter.WriteError(w, http.StatusBadRequest, metrics.OutcomeMissingState, "Missing state parameter")
	case errors.Is(err, auth.ErrInvalidState):
		jsonwriter.WriteError(w, http.StatusBadRequest, metrics.OutcomeInvalidState, "Invalid state parameter")
	case errors.Is(err, auth.ErrVerificationInterrupted):
		jsonwriter.WriteServiceUnavailable(w, "Steam verification was interrupted")
	case errors.Is(err, auth.ErrAssertionRejected):
		jsonwriter.WriteError(w, http.StatusUnauthorized, metrics.OutcomeAssertionRejected, "Steam did not confirm the login")
	case errors.Is(err, auth.ErrMissingIdentity):
		jsonwriter.WriteError(w, http.StatusUnauthorized, metrics.OutcomeMissingIdentity, "Steam returned no usable identifier")
	default:
		log.LogErrorWithFields("auth", "Steam login failed", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Login failed")
	}
}
