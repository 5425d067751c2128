package usecase

import (
	"context"
	"fmt"

	"wardrate-engine/config"
	"wardrate-engine/internal/domain"
	"wardrate-engine/pkg/logger"

	"golang.org/x/time/rate"
)

// preheatSubtotals are the common cart bands warmed per ward. One resolve
// per bucket is enough — bucketing collapses everything inside a band to
// the same cache key.
var preheatSubtotals = []float64{100000, 250000, 500000, 1000000, 2000000}

// Preheater warms the match cache for popular wards. It is a hook: the
// periodic scheduling that calls it belongs to the surrounding service.
type Preheater struct {
	resolver *ResolveUsecase
	source   domain.PopularWardSource
	limiter  *rate.Limiter
	topWards int
}

func NewPreheater(resolver *ResolveUsecase, source domain.PopularWardSource, cfg *config.Config) *Preheater {
	return &Preheater{
		resolver: resolver,
		source:   source,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PreheatRatePerSec), cfg.PreheatBurst),
		topWards: cfg.PreheatTopWards,
	}
}

// Preheat resolves every (target, subtotal band) combination, paced by the
// limiter so a large ward list doesn't saturate the store. Returns the
// number of resolves performed; per-target failures are logged and
// skipped.
func (p *Preheater) Preheat(ctx context.Context) (int, error) {
	targets, err := p.source.PopularWards(ctx, p.topWards)
	if err != nil {
		return 0, fmt.Errorf("failed to load popular wards: %w", err)
	}

	warmed := 0
	for _, target := range targets {
		for _, subtotal := range preheatSubtotals {
			if err := p.limiter.Wait(ctx); err != nil {
				return warmed, err
			}

			if _, err := p.resolver.Resolve(ctx, target.InstanceID, target.WardCode, subtotal); err != nil {
				logger.Warn().
					Err(err).
					Str("ward_code", target.WardCode).
					Int64("instance_id", target.InstanceID).
					Msg("Preheat resolve failed")
				continue
			}
			warmed++
		}
	}

	logger.Info().
		Int("targets", len(targets)).
		Int("warmed", warmed).
		Msg("Match cache preheat finished")

	return warmed, nil
}
