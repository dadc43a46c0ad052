// Package oracle reads the gold spot price from an external price feed.
// Prices are signed 8-decimal fixed-point integers per troy ounce; the
// adapter validates every reading before the core is allowed to use it.
package oracle

import (
	"context"
	"sync"
	"time"
)

// PriceFeed is the external price-feed collaborator. Implementations
// return the most recent answer they hold together with the time it was
// observed. A zero time means the feed does not track freshness.
type PriceFeed interface {
	// LatestPrice returns the current gold price per troy ounce,
	// 8-decimal fixed point. The answer is returned as read: it may be
	// zero or negative when the upstream feed is broken.
	LatestPrice(ctx context.Context) (answer int64, updatedAt time.Time, err error)
}

// StaticFeed is a settable in-process feed, used by tests and local runs.
type StaticFeed struct {
	mu        sync.RWMutex
	answer    int64
	updatedAt time.Time
}

// NewStaticFeed creates a feed with an initial answer.
func NewStaticFeed(answer int64) *StaticFeed {
	return &StaticFeed{answer: answer, updatedAt: time.Now()}
}

// LatestPrice returns the current answer.
func (f *StaticFeed) LatestPrice(_ context.Context) (int64, time.Time, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.answer, f.updatedAt, nil
}

// UpdateAnswer replaces the answer and refreshes the observation time.
func (f *StaticFeed) UpdateAnswer(answer int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = answer
	f.updatedAt = time.Now()
}

// Compile-time interface check.
var _ PriceFeed = (*StaticFeed)(nil)
