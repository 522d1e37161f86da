package steam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tniemenmaa/dota-fantasy-league/internal/metrics"
)

const testSteamID = "76561197960287930"

func playerSummaries(names ...string) playerSummariesResponse {
	var resp playerSummariesResponse
	for _, name := range names {
		resp.Response.Players = append(resp.Response.Players, struct {
			SteamID     string `json:"steamid"`
			PersonaName string `json:"personaname"`
		}{SteamID: testSteamID, PersonaName: name})
	}
	return resp
}

func TestWebAPIClient_ResolveDisplayName(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       any
		rawBody    string
		wantName   string
		wantResult string
	}{
		{
			name:       "found",
			status:     http.StatusOK,
			body:       playerSummaries("Gabe"),
			wantName:   "Gabe",
			wantResult: metrics.PersonaFound,
		},
		{
			name:       "first player wins",
			status:     http.StatusOK,
			body:       playerSummaries("First", "Second"),
			wantName:   "First",
			wantResult: metrics.PersonaFound,
		},
		{
			name:       "no players",
			status:     http.StatusOK,
			body:       playerSummaries(),
			wantResult: metrics.PersonaNotFound,
		},
		{
			name:       "blank persona name",
			status:     http.StatusOK,
			body:       playerSummaries("  "),
			wantResult: metrics.PersonaNotFound,
		},
		{
			name:       "missing response object",
			status:     http.StatusOK,
			rawBody:    `{}`,
			wantResult: metrics.PersonaNotFound,
		},
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			rawBody:    `oops`,
			wantResult: metrics.PersonaError,
		},
		{
			name:       "forbidden key",
			status:     http.StatusForbidden,
			rawBody:    `<html>Forbidden</html>`,
			wantResult: metrics.PersonaError,
		},
		{
			name:       "malformed json",
			status:     http.StatusOK,
			rawBody:    `{"response":`,
			wantResult: metrics.PersonaError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/ISteamUser/GetPlayerSummaries/v0002/", r.URL.Path)
				assert.Equal(t, "test-key", r.URL.Query().Get("key"))
				assert.Equal(t, testSteamID, r.URL.Query().Get("steamids"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				if tt.rawBody != "" {
					_, _ = w.Write([]byte(tt.rawBody))
					return
				}
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			m := metrics.NewMetrics(prometheus.NewRegistry())
			client := NewWebAPIClient(WebAPIConfig{APIKey: "test-key", Metrics: m})
			client.apiBaseURL = srv.URL

			got := client.ResolveDisplayName(context.Background(), testSteamID)
			assert.Equal(t, tt.wantName, got)
			assert.Equal(t, float64(1), testutil.ToFloat64(m.PersonaLookupsTotal.WithLabelValues(tt.wantResult)))
		})
	}
}

func TestWebAPIClient_DisabledWithoutKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	client := NewWebAPIClient(WebAPIConfig{BaseURL: srv.URL, Metrics: m})

	assert.Empty(t, client.ResolveDisplayName(context.Background(), testSteamID))
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersonaLookupsTotal.WithLabelValues(metrics.PersonaDisabled)))
}

func TestWebAPIClient_CachesFoundNames(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(playerSummaries("Gabe"))
	}))
	defer srv.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	client := NewWebAPIClient(WebAPIConfig{APIKey: "k", BaseURL: srv.URL, Metrics: m})

	assert.Equal(t, "Gabe", client.ResolveDisplayName(context.Background(), testSteamID))
	assert.Equal(t, "Gabe", client.ResolveDisplayName(context.Background(), testSteamID))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersonaLookupsTotal.WithLabelValues(metrics.PersonaCacheHit)))
}

func TestWebAPIClient_DoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(playerSummaries("Gabe"))
	}))
	defer srv.Close()

	client := NewWebAPIClient(WebAPIConfig{APIKey: "k", BaseURL: srv.URL})

	assert.Empty(t, client.ResolveDisplayName(context.Background(), testSteamID))
	assert.Equal(t, "Gabe", client.ResolveDisplayName(context.Background(), testSteamID))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebAPIClient_SharesConcurrentLookups(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(playerSummaries("Gabe"))
	}))
	defer srv.Close()

	client := NewWebAPIClient(WebAPIConfig{APIKey: "k", BaseURL: srv.URL})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = client.ResolveDisplayName(context.Background(), testSteamID)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, name := range results {
		assert.Equal(t, "Gabe", name)
	}
}

func TestWebAPIClient_SharedLookupSurvivesCancelledCaller(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(playerSummaries("Gabe"))
	}))
	defer srv.Close()

	client := NewWebAPIClient(WebAPIConfig{APIKey: "k", BaseURL: srv.URL})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	var wg sync.WaitGroup
	var first, second string
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = client.ResolveDisplayName(firstCtx, testSteamID)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		second = client.ResolveDisplayName(context.Background(), testSteamID)
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "Gabe", second)
	assert.Equal(t, "Gabe", first)
}

func TestWebAPIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewWebAPIClient(WebAPIConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	assert.Empty(t, client.ResolveDisplayName(context.Background(), testSteamID))
	assert.Less(t, time.Since(start), 2*time.Second)
}
