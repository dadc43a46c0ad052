package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidGoldPrice is returned when the feed answers zero or a
	// negative value. The enclosing call must abort; the submitter
	// resubmits once the feed recovers.
	ErrInvalidGoldPrice = errors.New("oracle: invalid gold price")

	// ErrStalePrice is returned when staleness checking is enabled and
	// the feed's answer is older than the configured window.
	ErrStalePrice = errors.New("oracle: price observation too old")
)

// Adapter validates raw feed readings before they reach the mint path.
//
// MaxAge is optional hardening: the upstream design only rejects
// non-positive answers and carries no freshness check, so the window is
// off (zero) unless explicitly configured. A feed reporting a zero
// observation time is never considered stale.
type Adapter struct {
	feed   PriceFeed
	maxAge time.Duration
	now    func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMaxAge enables the staleness window.
func WithMaxAge(maxAge time.Duration) Option {
	return func(a *Adapter) { a.maxAge = maxAge }
}

// withClock overrides the wall clock, for tests.
func withClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter wraps a feed.
func NewAdapter(feed PriceFeed, opts ...Option) *Adapter {
	a := &Adapter{feed: feed, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CurrentPrice reads the feed once and validates the answer. Callers read
// one price per mint batch and reuse it for every coin in the batch.
func (a *Adapter) CurrentPrice(ctx context.Context) (int64, error) {
	answer, updatedAt, err := a.feed.LatestPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("read price feed: %w", err)
	}
	if answer <= 0 {
		return 0, ErrInvalidGoldPrice
	}
	if a.maxAge > 0 && !updatedAt.IsZero() {
		if age := a.now().Sub(updatedAt); age > a.maxAge {
			return 0, fmt.Errorf("%w: age %s exceeds %s", ErrStalePrice, age, a.maxAge)
		}
	}
	return answer, nil
}
