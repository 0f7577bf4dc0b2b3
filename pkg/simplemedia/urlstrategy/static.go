package urlstrategy

import (
	"context"
	"strings"
)

// StaticStrategy serves keys below a path of the web server itself, e.g. the
// public storage link: "/storage/media/division/2024/06/x.jpg".
type StaticStrategy struct {
	BasePath string
}

// NewStaticStrategy creates a new static path strategy
func NewStaticStrategy(basePath string) *StaticStrategy {
	if basePath == "" {
		basePath = "/storage"
	}
	return &StaticStrategy{BasePath: strings.TrimSuffix(basePath, "/")}
}

func (s *StaticStrategy) PublicURL(ctx context.Context, objectKey string) (string, error) {
	if err := requireKey(objectKey); err != nil {
		return "", err
	}
	return joinURL(s.BasePath, objectKey), nil
}
