package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tniemenmaa/dota-fantasy-league/internal/ioutil"
	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
	"github.com/tniemenmaa/dota-fantasy-league/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPersonaTimeout   = 5 * time.Second
	defaultPersonaCacheTTL  = 10 * time.Minute
	defaultPersonaCacheSize = 1024
)

var errPersonaNotFound = errors.New("persona not found")

// PersonaResolver looks up a display name for an external id.
// It is best effort: every failure yields "".
type PersonaResolver interface {
	ResolveDisplayName(ctx context.Context, externalID string) string
}

// WebAPIConfig configures WebAPIClient
type WebAPIConfig struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
	Metrics   *metrics.Metrics
}

// WebAPIClient resolves persona names with ISteamUser/GetPlayerSummaries.
// Found names are cached and concurrent lookups for one id share a request.
type WebAPIClient struct {
	apiKey     string
	apiBaseURL string // defaults to https://api.steampowered.com, can be overridden for testing
	timeout    time.Duration
	httpClient *http.Client
	cache      *lru.LRU[string, string]
	group      singleflight.Group
	metrics    *metrics.Metrics
}

type playerSummariesResponse struct {
	Response struct {
		Players []struct {
			SteamID     string `json:"steamid"`
			PersonaName string `json:"personaname"`
		} `json:"players"`
	} `json:"response"`
}

var _ PersonaResolver = (*WebAPIClient)(nil)

// NewWebAPIClient creates a persona resolver. An empty APIKey disables lookups.
func NewWebAPIClient(cfg WebAPIConfig) *WebAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWebAPIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPersonaTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultPersonaCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultPersonaCacheSize
	}

	return &WebAPIClient{
		apiKey:     cfg.APIKey,
		apiBaseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		cache:      lru.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		metrics:    cfg.Metrics,
	}
}

// ResolveDisplayName implements PersonaResolver
func (c *WebAPIClient) ResolveDisplayName(ctx context.Context, externalID string) string {
	if c.apiKey == "" {
		c.metrics.RecordPersonaLookup(metrics.PersonaDisabled)
		log.LogDebugWithFields("steam", "Persona lookup disabled, no Web API key configured", map[string]any{
			"externalId": externalID,
		})
		return ""
	}

	if name, ok := c.cache.Get(externalID); ok {
		c.metrics.RecordPersonaLookup(metrics.PersonaCacheHit)
		return name
	}

	v, err, _ := c.group.Do(externalID, func() (any, error) {
		// The flight is shared, so one caller going away must not fail the others.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.fetchPersonaName(lookupCtx, externalID)
	})
	if err != nil {
		if errors.Is(err, errPersonaNotFound) {
			c.metrics.RecordPersonaLookup(metrics.PersonaNotFound)
			log.LogDebugWithFields("steam", "No persona name for player", map[string]any{
				"externalId": externalID,
			})
			return ""
		}
		c.metrics.RecordPersonaLookup(metrics.PersonaError)
		log.LogWarnWithFields("steam", "Persona lookup failed", map[string]any{
			"externalId": externalID,
			"error":      err.Error(),
		})
		return ""
	}

	name := v.(string)
	c.cache.Add(externalID, name)
	c.metrics.RecordPersonaLookup(metrics.PersonaFound)
	return name
}

func (c *WebAPIClient) fetchPersonaName(ctx context.Context, externalID string) (string, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("steamids", externalID)
	endpoint := c.apiBaseURL + "/ISteamUser/GetPlayerSummaries/v0002/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build player summaries request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the API key, so only the cause is kept.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("failed to get player summaries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get player summaries: status %d: %s", resp.StatusCode, ioutil.Snippet(resp.Body, 256))
	}

	var summaries playerSummariesResponse
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return "", fmt.Errorf("failed to decode player summaries: %w", err)
	}

	if len(summaries.Response.Players) == 0 {
		return "", errPersonaNotFound
	}
	name := summaries.Response.Players[0].PersonaName
	if strings.TrimSpace(name) == "" {
		return "", errPersonaNotFound
	}
	return name, nil
}
