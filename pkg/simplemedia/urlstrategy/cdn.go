package urlstrategy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// CDNStrategy generates URLs that point directly to a CDN. A version, when
// set, is appended as a query parameter so a redeploy can bust edge caches.
type CDNStrategy struct {
	CDNBaseURL string // e.g., "https://cdn.example.com"
	Version    string
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(cdnBaseURL string) *CDNStrategy {
	return &CDNStrategy{CDNBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

func (s *CDNStrategy) PublicURL(ctx context.Context, objectKey string) (string, error) {
	if s.CDNBaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	if err := requireKey(objectKey); err != nil {
		return "", err
	}
	u := joinURL(s.CDNBaseURL, objectKey)
	if s.Version != "" {
		u += "?v=" + url.QueryEscape(s.Version)
	}
	return u, nil
}
