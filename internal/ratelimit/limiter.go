// Package ratelimit provides sliding-window request limiting for the
// download endpoint. The window slides over real timestamps rather than
// fixed buckets so a burst straddling a bucket boundary cannot double the
// effective limit.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result reports one limiter decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter is implemented by the in-memory store for single-node deployments
// and the Redis store when the counter must be shared across replicas.
type Limiter interface {
	// Allow records one hit against key and reports whether it fit inside
	// the window. A denied hit is not recorded.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// DownloadKey builds the limiter key for one client downloading one item.
func DownloadKey(itemID, ipHash string) string {
	return fmt.Sprintf("download:%s:%s", itemID, ipHash)
}
