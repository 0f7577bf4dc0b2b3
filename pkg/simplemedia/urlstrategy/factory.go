package urlstrategy

import (
	"fmt"
)

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// CDN strategy for direct CDN URLs
	StrategyTypeCDN URLStrategyType = "cdn"

	// Static strategy for URLs served by the site's own web server
	StrategyTypeStatic URLStrategyType = "static"

	// Storage-delegated strategy asks the blob store
	StrategyTypeStorageDelegated URLStrategyType = "storage-delegated"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type       URLStrategyType
	CDNBaseURL string
	Version    string
	BasePath   string
	Store      BlobStore
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (URLStrategy, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN base URL is required for CDN strategy")
		}
		s := NewCDNStrategy(config.CDNBaseURL)
		s.Version = config.Version
		return s, nil

	case StrategyTypeStatic:
		return NewStaticStrategy(config.BasePath), nil

	case StrategyTypeStorageDelegated:
		if config.Store == nil {
			return nil, fmt.Errorf("blob store is required for storage-delegated strategy")
		}
		return NewStorageDelegatedStrategy(config.Store), nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}

// NewRecommendedStrategy uses the CDN in production when one is configured
// and the storage link everywhere else.
func NewRecommendedStrategy(environment, cdnURL string) URLStrategy {
	if environment == "production" && cdnURL != "" {
		return NewCDNStrategy(cdnURL)
	}
	return NewStaticStrategy("")
}
