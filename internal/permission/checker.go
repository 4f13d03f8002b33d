// Package permission resolves forum capabilities for a user. The forum core
// only asks yes/no questions; role tables live behind Checker.
package permission

import (
	"context"
	"time"

	"github.com/bluele/gcache"
)

// Checker answers capability questions for the forum core
type Checker interface {
	CanModerate(ctx context.Context, userID uint64) (bool, error)
	CanPost(ctx context.Context, userID, boardID uint64) (bool, error)
}

// ConfigChecker resolves capabilities from static configuration
type ConfigChecker struct {
	moderators     map[uint64]struct{}
	readOnlyBoards map[uint64]struct{}
}

// NewConfigChecker creates a ConfigChecker. Read-only boards accept posts from moderators only.
func NewConfigChecker(moderatorIDs, readOnlyBoards []uint64) *ConfigChecker {
	c := &ConfigChecker{
		moderators:     make(map[uint64]struct{}, len(moderatorIDs)),
		readOnlyBoards: make(map[uint64]struct{}, len(readOnlyBoards)),
	}
	for _, id := range moderatorIDs {
		c.moderators[id] = struct{}{}
	}
	for _, id := range readOnlyBoards {
		c.readOnlyBoards[id] = struct{}{}
	}
	return c
}

// CanModerate reports whether the user is a configured moderator
func (c *ConfigChecker) CanModerate(_ context.Context, userID uint64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	_, ok := c.moderators[userID]
	return ok, nil
}

// CanPost reports whether the user may create topics or replies in a board
func (c *ConfigChecker) CanPost(ctx context.Context, userID, boardID uint64) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	if _, readOnly := c.readOnlyBoards[boardID]; readOnly {
		return c.CanModerate(ctx, userID)
	}
	return true, nil
}

// Cached memoizes CanModerate answers in a local LRU
type Cached struct {
	next  Checker
	cache gcache.Cache
}

// NewCached wraps next with an LRU of the given size whose entries expire after ttl
func NewCached(next Checker, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: gcache.New(size).LRU().Expiration(ttl).Build(),
	}
}

// CanModerate answers from the cache, asking next on a miss
func (c *Cached) CanModerate(ctx context.Context, userID uint64) (bool, error) {
	if v, err := c.cache.GetIFPresent(userID); err == nil {
		return v.(bool), nil
	}

	ok, err := c.next.CanModerate(ctx, userID)
	if err != nil {
		return false, err
	}
	_ = c.cache.Set(userID, ok)
	return ok, nil
}

// CanPost is not cached since it depends on the board
func (c *Cached) CanPost(ctx context.Context, userID, boardID uint64) (bool, error) {
	return c.next.CanPost(ctx, userID, boardID)
}

// Invalidate drops a cached answer, e.g. after a role change
func (c *Cached) Invalidate(userID uint64) {
	c.cache.Remove(userID)
}
