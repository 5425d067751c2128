package usecase

import (
	"fmt"

	"wardrate-engine/pkg/cache"
	"wardrate-engine/pkg/logger"
)

// Invalidator flushes match-cache entries after rule mutations.
//
// Invalidation is coarse on purpose: the engine does not track which
// (ward, bucket) pairs were derived from a given rule, so any mutation
// flushes the whole instance group. Flushes are fire-and-forget relative
// to in-flight resolves — a resolve that already missed the cache may
// still write a stale result that lives until TTL expiry.
type Invalidator struct {
	cache cache.CacheService
}

func NewInvalidator(cache cache.CacheService) *Invalidator {
	return &Invalidator{cache: cache}
}

// FlushInstance drops every cached resolution for one shipping instance.
func (inv *Invalidator) FlushInstance(instanceID int64) {
	inv.cache.DeleteByPrefix(fmt.Sprintf("%s:%d:", matchGroup, instanceID))
	logger.Debug().Int64("instance_id", instanceID).Msg("Match cache flushed")
}

// FlushAll drops the entire match-cache group.
func (inv *Invalidator) FlushAll() {
	inv.cache.FlushGroup(matchGroup)
	logger.Debug().Msg("Match cache flushed (all instances)")
}
