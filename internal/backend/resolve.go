package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// baseURLKey is the fixed cache key for the most recently configured
	// backend base URL.
	baseURLKey = "mcqtutor:backend_api_url"

	defaultBaseURL = "http://localhost:8000/api"

	resolveTimeout = 5 * time.Second
)

// ResolveBaseURL picks the backend base URL. An explicitly configured URL
// wins and is written back to the cache so later runs without configuration
// keep talking to the same deployment. Otherwise the cached value is used,
// falling back to the local default. The cache is optional; rc may be nil.
func ResolveBaseURL(ctx context.Context, configured string, rc redis.UniversalClient) string {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	if configured != "" {
		if rc != nil {
			if err := rc.Set(ctx, baseURLKey, configured, 0).Err(); err != nil {
				slog.WarnContext(ctx, "backend: cache base URL failed", "error", err)
			}
		}
		return configured
	}

	if rc != nil {
		cached, err := rc.Get(ctx, baseURLKey).Result()
		if err == nil && cached != "" {
			slog.InfoContext(ctx, fmt.Sprintf("backend: using cached base URL %s", cached))
			return cached
		}
	}

	return defaultBaseURL
}
