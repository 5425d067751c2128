package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"wardrate-engine/config"
	"wardrate-engine/internal/domain"
	"wardrate-engine/pkg/cache"
	"wardrate-engine/pkg/logger"
)

// matchGroup is the cache key group for resolution results. Keys are
// "match:{instanceID}:{wardCode}:{bucket}".
const matchGroup = "match"

// ResolveUsecase is the rate resolution engine: cache lookup, rule fetch,
// first-match-wins scan, cache population. Stateless — concurrent calls
// share nothing but the cache, and duplicate misses for the same key just
// recompute the same (pure) result.
type ResolveUsecase struct {
	rateRepo domain.RateRepository
	cache    cache.CacheService
	cfg      *config.Config
}

func NewResolveUsecase(rateRepo domain.RateRepository, cache cache.CacheService, cfg *config.Config) *ResolveUsecase {
	return &ResolveUsecase{
		rateRepo: rateRepo,
		cache:    cache,
		cfg:      cfg,
	}
}

// Resolve computes the shipping cost for a cart. The result is a pure
// function of (instanceID, wardCode, subtotal, current rule set), which is
// what makes caching it safe.
//
// Store failures propagate to the caller and are never cached; the cache
// itself is best-effort.
func (uc *ResolveUsecase) Resolve(ctx context.Context, instanceID int64, wardCode string, subtotal float64) (*domain.ResolutionResult, error) {
	start := time.Now()

	// Malformed input never reaches the cache or the store
	if wardCode == "" || subtotal < 0 {
		result := noRateResult()
		result.Meta.Reason = domain.ReasonInvalidInput
		result.TimeMs = elapsedMs(start)
		return result, nil
	}

	key := uc.cacheKey(instanceID, wardCode, subtotal)

	if cached, found := uc.cache.Get(key); found {
		if stored, ok := cached.(*domain.ResolutionResult); ok {
			// Copy before annotating: cached entries are immutable
			result := *stored
			result.CacheHit = true
			result.TimeMs = elapsedMs(start)
			logger.Resolution(instanceID, wardCode, true, time.Since(start))
			return &result, nil
		}
	}

	rates, err := uc.rateRepo.RatesForWard(ctx, wardCode, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}

	if len(rates) == 0 {
		// Negative-cache with a shorter TTL so newly bound wards show up fast
		result := noRateResult()
		uc.cache.Set(key, result, uc.cfg.NegativeCacheTTL)
		out := *result
		out.TimeMs = elapsedMs(start)
		return &out, nil
	}

	result := firstMatchWins(rates, subtotal)

	uc.cache.Set(key, result, uc.cfg.MatchCacheTTL)

	out := *result
	out.TimeMs = elapsedMs(start)
	logger.Resolution(instanceID, wardCode, false, time.Since(start))
	return &out, nil
}

// firstMatchWins scans rates (already sorted by priority) and picks the
// terminal result.
//
// A block rule match ends the scan immediately: shipping unavailable. A
// cost match with stopProcessing set ends the scan with that cost. A cost
// match without stopProcessing is kept as a pending fallback — later
// matches replace it, and it becomes the result if the scan reaches the
// end of the list without a terminal stop.
func firstMatchWins(rates []domain.Rate, subtotal float64) *domain.ResolutionResult {
	var pending *domain.ResolutionResult

	for i := range rates {
		rate := &rates[i]

		if rate.IsBlockRule {
			return &domain.ResolutionResult{
				RateID:  rate.ID,
				Label:   rate.Label,
				Cost:    0,
				Blocked: true,
				Meta:    domain.ResultMeta{Reason: domain.ReasonBlocked},
			}
		}

		cost, matched := rate.Evaluate(subtotal)
		if !matched {
			continue
		}

		result := &domain.ResolutionResult{
			RateID:  rate.ID,
			Label:   rate.Label,
			Cost:    math.Max(0, cost),
			Blocked: false,
			Meta: domain.ResultMeta{
				Priority:       rate.Priority,
				BaseCost:       rate.BaseCost,
				ConditionMatch: true,
			},
		}

		if rate.StopProcessing {
			return result
		}

		pending = result
	}

	if pending != nil {
		return pending
	}

	return noRateResult()
}

// cacheKey buckets the subtotal down to a fixed-size band so carts in the
// same band reuse one cached result.
func (uc *ResolveUsecase) cacheKey(instanceID int64, wardCode string, subtotal float64) string {
	bucket := int64(math.Floor(subtotal/float64(uc.cfg.SubtotalBucket))) * uc.cfg.SubtotalBucket
	return fmt.Sprintf("%s:%d:%s:%d", matchGroup, instanceID, wardCode, bucket)
}

func noRateResult() *domain.ResolutionResult {
	return &domain.ResolutionResult{
		RateID:  0,
		Label:   "",
		Cost:    0,
		Blocked: false,
		Meta:    domain.ResultMeta{Reason: domain.ReasonNoMatch},
	}
}

func elapsedMs(start time.Time) float64 {
	return math.Round(float64(time.Since(start).Microseconds())/10) / 100
}
