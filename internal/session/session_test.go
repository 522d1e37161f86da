package session

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserCookie_MarshalUnmarshal(t *testing.T) {
	original := BrowserCookie{
		Subject: "76561197960287930",
		Name:    "Gabe",
		Issuer:  "Steam",
		Expires: time.Now().Add(24 * time.Hour).Truncate(time.Second),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var unmarshaled BrowserCookie
	require.NoError(t, json.Unmarshal(data, &unmarshaled))

	assert.Equal(t, original.Subject, unmarshaled.Subject)
	assert.Equal(t, original.Name, unmarshaled.Name)
	assert.Equal(t, original.Issuer, unmarshaled.Issuer)
	assert.WithinDuration(t, original.Expires, unmarshaled.Expires, time.Second)
}

func TestNormalizeReturnPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "/"},
		{"/", "/"},
		{"/leagues/42", "/leagues/42"},
		{"/leagues?tab=teams#top", "/leagues?tab=teams#top"},
		{"~/", "~/"},
		{"~/leagues", "~/leagues"},
		{"https://evil.example/", "/"},
		{"http://evil.example", "/"},
		{"javascript:alert(1)", "/"},
		{"leagues", "/"},
		{"~leagues", "/"},
		{"//evil.example/path", "/"},
		{"/\\evil.example", "/"},
		{"~//evil.example", "/"},
		{"~/\\evil.example", "/"},
		{"/\t/evil.example", "/"},
		{"/\t\\evil.example", "/"},
		{"~/\t/evil.example", "/"},
		{"/\n/evil.example", "/"},
		{"/\r\n//evil.example", "/"},
		{"/leagues\x00", "/"},
		{"/\x7f/evil.example", "/"},
		{"/leagues/\tteams", "/"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeReturnPath(tt.input))
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	assert.Equal(t, "/leagues", RedirectTarget("~/leagues"))
	assert.Equal(t, "/", RedirectTarget("~/"))
	assert.Equal(t, "/me", RedirectTarget("/me"))
	assert.Equal(t, "/", RedirectTarget("https://evil.example"))
	assert.Equal(t, "/", RedirectTarget("~/\t/evil.example"))
}
