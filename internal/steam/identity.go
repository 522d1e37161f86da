package steam

import (
	"net/url"
	"strings"
)

// Identity is the result of a verified login.
// An empty DisplayName means no persona name could be resolved.
type Identity struct {
	ExternalID  string
	DisplayName string
}

// ExtractExternalID returns the final path segment of an absolute claimed id,
// for example 76561197960287930 from https://steamcommunity.com/openid/id/76561197960287930.
func ExtractExternalID(claimedID string) (string, bool) {
	if claimedID == "" {
		return "", false
	}

	u, err := url.Parse(claimedID)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}

	// The last segment may carry one trailing slash; "id//" has an empty last segment.
	path := strings.TrimSuffix(u.Path, "/")
	segment := path[strings.LastIndex(path, "/")+1:]
	if segment == "" {
		return "", false
	}
	return segment, true
}
