// Package ratelimit bounds how many requests an actor may make against an
// endpoint within a window.
//
// With a store that implements store.Incrementer the bound is strict. With any
// other store the check and the increment are separate calls, so concurrent
// callers can both read the same count and the limiter may admit slightly
// more than the maximum in a window. That race is accepted: the limiter
// protects the remote API from runaway loops, it is not a quota system.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/store"
)

const keyPrefix = "ratelimit:"

type counter struct {
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Limiter is a fixed-window counter per (endpoint, actor) pair.
type Limiter struct {
	store store.Store
	log   logging.Logger
	now   func() time.Time
}

func New(s store.Store, log logging.Logger) *Limiter {
	return &Limiter{store: s, log: log, now: time.Now}
}

// Key returns the store key for an endpoint/actor pair.
func Key(endpoint, actorKey string) string {
	sum := sha256.Sum256([]byte(endpoint + "|" + actorKey))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Allow reports whether one more request may be made. Store failures admit
// the request.
//
// On stores without an Incrementer a denied request leaves the counter
// untouched. With an Incrementer the counter is bumped before the decision,
// so denied requests are counted too; at most maxRequests are still admitted
// per window.
func (l *Limiter) Allow(ctx context.Context, endpoint, actorKey string, maxRequests int, window time.Duration) bool {
	if maxRequests <= 0 {
		return false
	}
	key := Key(endpoint, actorKey)

	if inc, ok := l.store.(store.Incrementer); ok {
		return l.allowAtomic(ctx, inc, key, endpoint, maxRequests, window)
	}

	raw, err := l.store.Get(ctx, key)
	if err != nil {
		l.log.Warn(ctx, "rate limit counter unreadable, allowing", "endpoint", endpoint, "error", err)
		return true
	}

	now := l.now()
	var c counter
	if raw == nil || json.Unmarshal(raw, &c) != nil || !now.Before(c.ExpiresAt) {
		l.save(ctx, key, counter{Count: 1, ExpiresAt: now.Add(window)}, window)
		return true
	}

	if c.Count >= maxRequests {
		l.log.Debug(ctx, "rate limit reached", "endpoint", endpoint, "count", c.Count)
		return false
	}

	c.Count++
	l.save(ctx, key, c, c.ExpiresAt.Sub(now))
	return true
}

// allowAtomic counts first and decides after, so the counter can run past
// maxRequests; it still expires with the window.
func (l *Limiter) allowAtomic(ctx context.Context, inc store.Incrementer, key, endpoint string, maxRequests int, window time.Duration) bool {
	n, err := inc.IncrWithExpiry(ctx, key, window)
	if err != nil {
		l.log.Warn(ctx, "rate limit counter unavailable, allowing", "endpoint", endpoint, "error", err)
		return true
	}
	if n > int64(maxRequests) {
		l.log.Debug(ctx, "rate limit reached", "endpoint", endpoint, "count", n)
		return false
	}
	return true
}

func (l *Limiter) save(ctx context.Context, key string, c counter, ttl time.Duration) {
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := l.store.Set(ctx, key, data, ttl); err != nil {
		l.log.Warn(ctx, "rate limit counter not saved", "error", err)
	}
}
