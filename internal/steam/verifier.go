package steam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tniemenmaa/dota-fantasy-league/internal/ioutil"
	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
)

const maxVerificationBody = 64 << 10

var (
	// ErrUnexpectedMode means the callback did not carry openid.mode=id_res
	ErrUnexpectedMode = errors.New("unexpected openid.mode")
	// ErrVerificationUnavailable means the verification request could not complete
	ErrVerificationUnavailable = errors.New("verification request failed")
	// ErrProviderStatus means the provider answered with a non-2xx status
	ErrProviderStatus = errors.New("provider returned non-success status")
	// ErrAssertionInvalid means the provider did not confirm the assertion
	ErrAssertionInvalid = errors.New("provider did not confirm assertion")
)

// Verifier confirms a callback assertion directly with the provider.
// A nil error means the assertion is authentic. Context cancellation is
// returned as the context error so callers can tell it apart from a rejection.
type Verifier interface {
	Verify(ctx context.Context, assertion Assertion) error
}

// OpenIDVerifier implements Verifier with a check_authentication round trip
type OpenIDVerifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewOpenIDVerifier creates a verifier posting to endpoint.
// Redirects are never followed and each request is bounded by timeout.
func NewOpenIDVerifier(endpoint string, timeout time.Duration) *OpenIDVerifier {
	return &OpenIDVerifier{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

var _ Verifier = (*OpenIDVerifier)(nil)

// Verify implements Verifier
func (v *OpenIDVerifier) Verify(ctx context.Context, assertion Assertion) error {
	if mode := assertion.Mode(); mode != ModeIDRes {
		return fmt.Errorf("%w: %q", ErrUnexpectedMode, mode)
	}

	form := assertion.CheckAuthenticationForm()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.LogWarnWithFields("steam", "check_authentication returned non-success status", map[string]any{
			"status": resp.StatusCode,
			"body":   ioutil.Snippet(resp.Body, 256),
		})
		return fmt.Errorf("%w: status %d", ErrProviderStatus, resp.StatusCode)
	}

	body, err := ioutil.ReadAtMost(resp.Body, maxVerificationBody)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: reading body: %v", ErrVerificationUnavailable, err)
	}

	if !strings.Contains(strings.ToLower(string(body)), validAssertionBody) {
		return ErrAssertionInvalid
	}
	return nil
}
