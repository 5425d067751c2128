package usecase

import (
	"context"
	"fmt"

	"wardrate-engine/internal/domain"
	"wardrate-engine/pkg/utils"
)

// RateAdminUsecase handles admin rate management operations.
// Every mutation flushes the instance's match-cache group.
type RateAdminUsecase struct {
	rateRepo    domain.RateRepository
	invalidator *Invalidator
}

func NewRateAdminUsecase(rateRepo domain.RateRepository, invalidator *Invalidator) *RateAdminUsecase {
	return &RateAdminUsecase{
		rateRepo:    rateRepo,
		invalidator: invalidator,
	}
}

// CreateRateRequest represents the input for creating a rate.
type CreateRateRequest struct {
	ZoneID         int64              `json:"zoneId"`
	InstanceID     int64              `json:"instanceId"`
	Priority       *int               `json:"priority"`
	Label          string             `json:"label"`
	BaseCost       float64            `json:"baseCost"`
	IsBlockRule    bool               `json:"isBlockRule"`
	StopProcessing *bool              `json:"stopProcessing"`
	Conditions     []domain.Condition `json:"conditions"`
	WardCodes      []string           `json:"wardCodes"`
	CreatedBy      string             `json:"createdBy"`
}

// CreateRate creates a new rate with validation.
// A rate with no ward codes is allowed — it is inert until bound.
func (uc *RateAdminUsecase) CreateRate(ctx context.Context, req CreateRateRequest) (*domain.Rate, error) {
	if req.InstanceID <= 0 {
		return nil, fmt.Errorf("instanceId is required")
	}
	if req.BaseCost < 0 {
		return nil, fmt.Errorf("base cost must not be negative")
	}
	if err := validateConditions(req.Conditions); err != nil {
		return nil, err
	}

	// stopProcessing defaults to true: plain first-match-wins
	stopProcessing := true
	if req.StopProcessing != nil {
		stopProcessing = *req.StopProcessing
	}

	priority := 0
	if req.Priority != nil {
		priority = *req.Priority
	} else {
		next, err := uc.nextPriority(ctx, req.InstanceID)
		if err != nil {
			return nil, err
		}
		priority = next
	}

	rate := &domain.Rate{
		ZoneID:         req.ZoneID,
		InstanceID:     req.InstanceID,
		Priority:       priority,
		Label:          req.Label,
		BaseCost:       req.BaseCost,
		IsBlockRule:    req.IsBlockRule,
		StopProcessing: stopProcessing,
		Conditions:     req.Conditions,
		WardCodes:      normalizeCodes(req.WardCodes),
		CreatedBy:      req.CreatedBy,
	}

	if _, err := uc.rateRepo.Create(ctx, rate); err != nil {
		return nil, fmt.Errorf("failed to create rate: %w", err)
	}

	uc.invalidator.FlushInstance(rate.InstanceID)

	return rate, nil
}

// UpdateRateRequest represents the input for updating a rate.
// Nil fields are left untouched; WardCodes non-nil replaces the full
// binding set.
type UpdateRateRequest struct {
	Priority       *int                `json:"priority"`
	Label          *string             `json:"label"`
	BaseCost       *float64            `json:"baseCost"`
	IsBlockRule    *bool               `json:"isBlockRule"`
	StopProcessing *bool               `json:"stopProcessing"`
	Conditions     *[]domain.Condition `json:"conditions"`
	WardCodes      []string            `json:"wardCodes"`
	ModifiedBy     string              `json:"modifiedBy"`
}

// UpdateRate applies a partial update to an existing rate.
func (uc *RateAdminUsecase) UpdateRate(ctx context.Context, id int64, req UpdateRateRequest) error {
	// The repository surfaces not-found on its own, but we need the
	// instance id for the cache flush anyway.
	existing, err := uc.rateRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if req.BaseCost != nil && *req.BaseCost < 0 {
		return fmt.Errorf("base cost must not be negative")
	}
	if req.Conditions != nil {
		if err := validateConditions(*req.Conditions); err != nil {
			return err
		}
	}

	patch := domain.RatePatch{
		Priority:       req.Priority,
		Label:          req.Label,
		BaseCost:       req.BaseCost,
		IsBlockRule:    req.IsBlockRule,
		StopProcessing: req.StopProcessing,
		Conditions:     req.Conditions,
	}
	if req.ModifiedBy != "" {
		patch.ModifiedBy = &req.ModifiedBy
	}

	if err := uc.rateRepo.Update(ctx, id, patch); err != nil {
		return err
	}

	// The update has landed. Flush even if the rebind below fails, so a
	// partial mutation never keeps serving pre-update cached results.
	defer uc.invalidator.FlushInstance(existing.InstanceID)

	if req.WardCodes != nil {
		if err := uc.rateRepo.Rebind(ctx, id, normalizeCodes(req.WardCodes)); err != nil {
			return err
		}
	}

	return nil
}

// DeleteRate deletes a rate and its bindings.
func (uc *RateAdminUsecase) DeleteRate(ctx context.Context, id int64) error {
	existing, err := uc.rateRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := uc.rateRepo.Delete(ctx, id); err != nil {
		return err
	}

	uc.invalidator.FlushInstance(existing.InstanceID)

	return nil
}

// GetRate returns a single rate with its ward bindings.
func (uc *RateAdminUsecase) GetRate(ctx context.Context, id int64) (*domain.Rate, error) {
	return uc.rateRepo.GetByID(ctx, id)
}

// ListRates returns all rates for an instance in scan order.
func (uc *RateAdminUsecase) ListRates(ctx context.Context, instanceID int64) ([]domain.Rate, error) {
	if instanceID <= 0 {
		return nil, fmt.Errorf("instanceId is required")
	}
	return uc.rateRepo.ListByInstance(ctx, instanceID)
}

// ReorderRates renumbers an instance's priorities to match the given id
// order.
func (uc *RateAdminUsecase) ReorderRates(ctx context.Context, instanceID int64, orderedIDs []int64) error {
	if instanceID <= 0 {
		return fmt.Errorf("instanceId is required")
	}
	if len(orderedIDs) == 0 {
		return fmt.Errorf("rate ids are required")
	}

	if err := uc.rateRepo.Reorder(ctx, instanceID, orderedIDs); err != nil {
		return err
	}

	uc.invalidator.FlushInstance(instanceID)

	return nil
}

// BulkAction applies a named bulk action (block/unblock) to a set of rates
// within one instance.
func (uc *RateAdminUsecase) BulkAction(ctx context.Context, instanceID int64, action string, ids []int64) error {
	if instanceID <= 0 {
		return fmt.Errorf("instanceId is required")
	}
	if len(ids) == 0 {
		return fmt.Errorf("rate ids are required")
	}

	var blocked bool
	switch action {
	case domain.BulkActionBlock:
		blocked = true
	case domain.BulkActionUnblock:
		blocked = false
	default:
		return fmt.Errorf("unknown bulk action '%s'", action)
	}

	if err := uc.rateRepo.SetBlocked(ctx, instanceID, ids, blocked); err != nil {
		return err
	}

	uc.invalidator.FlushInstance(instanceID)

	return nil
}

func (uc *RateAdminUsecase) nextPriority(ctx context.Context, instanceID int64) (int, error) {
	rates, err := uc.rateRepo.ListByInstance(ctx, instanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next priority: %w", err)
	}

	next := 0
	for _, r := range rates {
		if r.Priority >= next {
			next = r.Priority + 1
		}
	}
	return next, nil
}

// validateConditions checks band costs and bounds. Overlaps and gaps are
// deliberately NOT rejected — evaluation is first-match by list order.
func validateConditions(conditions []domain.Condition) error {
	for i, c := range conditions {
		if c.Cost < 0 {
			return fmt.Errorf("condition %d: cost must not be negative", i)
		}
		if c.MinTotal != nil && c.MaxTotal != nil && *c.MinTotal > *c.MaxTotal {
			return fmt.Errorf("condition %d: minTotal exceeds maxTotal", i)
		}
	}
	return nil
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = utils.NormalizeWardCode(c)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
