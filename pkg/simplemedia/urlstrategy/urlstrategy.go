// Package urlstrategy maps storage keys of media and derivatives to the
// public URLs rendered into pages.
package urlstrategy

import (
	"context"
	"fmt"
	"strings"
)

// URLStrategy defines the interface for URL generation strategies
type URLStrategy interface {
	PublicURL(ctx context.Context, objectKey string) (string, error)
}

func joinURL(base, objectKey string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(objectKey, "/")
}

func requireKey(objectKey string) error {
	if objectKey == "" {
		return fmt.Errorf("object key is required")
	}
	return nil
}
