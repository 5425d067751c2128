package domain

import (
	"context"
	"math"
	"time"
)

// Condition is a single subtotal band of a rate. Bands are evaluated in
// list order; the first band containing the subtotal wins. Overlapping or
// gapped bands are allowed — order decides, not range precedence.
type Condition struct {
	MinTotal *float64 `json:"minTotal,omitempty"`
	MaxTotal *float64 `json:"maxTotal,omitempty"`
	Cost     float64  `json:"cost"`
}

// Min returns the lower bound of the band (0 when absent).
func (c Condition) Min() float64 {
	if c.MinTotal != nil {
		return *c.MinTotal
	}
	return 0
}

// Max returns the upper bound of the band (+inf when absent).
func (c Condition) Max() float64 {
	if c.MaxTotal != nil {
		return *c.MaxTotal
	}
	return math.MaxFloat64
}

// Rate is an administrator-defined pricing rule bound to one or more ward
// codes. Rates are scoped to a shipping-method instance and scanned in
// ascending Priority order (ties broken by ID).
type Rate struct {
	ID             int64       `json:"id"`
	ZoneID         int64       `json:"zoneId"`
	InstanceID     int64       `json:"instanceId"`
	Priority       int         `json:"priority"`
	Label          string      `json:"label"`
	BaseCost       float64     `json:"baseCost"`
	IsBlockRule    bool        `json:"isBlockRule"`
	StopProcessing bool        `json:"stopProcessing"`
	Conditions     []Condition `json:"conditions"`
	WardCodes      []string    `json:"wardCodes"`
	CreatedBy      string      `json:"createdBy,omitempty"`
	ModifiedBy     string      `json:"modifiedBy,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Evaluate returns the shipping cost this rate assigns to the given cart
// subtotal. A rate with no conditions always matches with its base cost.
// Pure function: no store, no cache, no side effects.
func (r *Rate) Evaluate(subtotal float64) (cost float64, matched bool) {
	if len(r.Conditions) == 0 {
		return r.BaseCost, true
	}

	for _, c := range r.Conditions {
		if subtotal >= c.Min() && subtotal <= c.Max() {
			return c.Cost, true
		}
	}

	return 0, false
}

// Resolution reasons carried in ResultMeta.
const (
	ReasonNoMatch      = "no_match"
	ReasonBlocked      = "blocked_by_rule"
	ReasonInvalidInput = "invalid_input"
)

// ResultMeta carries diagnostic fields alongside a resolution.
type ResultMeta struct {
	Reason         string  `json:"reason,omitempty"`
	Priority       int     `json:"priority,omitempty"`
	BaseCost       float64 `json:"baseCost,omitempty"`
	ConditionMatch bool    `json:"conditionMatch,omitempty"`
}

// ResolutionResult is the outcome of a single resolve call. It is written
// once to cache and never mutated afterwards; cached entries are replaced,
// not patched.
type ResolutionResult struct {
	RateID   int64      `json:"rateId"`
	Label    string     `json:"label"`
	Cost     float64    `json:"cost"`
	Blocked  bool       `json:"blocked"`
	Meta     ResultMeta `json:"meta"`
	CacheHit bool       `json:"cacheHit"`
	TimeMs   float64    `json:"timeMs"`
}

// RatePatch is a partial update for a rate. Nil fields are left untouched.
type RatePatch struct {
	Priority       *int
	Label          *string
	BaseCost       *float64
	IsBlockRule    *bool
	StopProcessing *bool
	Conditions     *[]Condition
	ModifiedBy     *string
}

// RateRepository owns persistence of rates and their ward bindings.
// Pure data access — no pricing logic lives here.
type RateRepository interface {
	// RatesForWard returns the rates bound to wardCode for the given
	// instance, sorted by priority ASC, id ASC.
	RatesForWard(ctx context.Context, wardCode string, instanceID int64) ([]Rate, error)

	Create(ctx context.Context, rate *Rate) (int64, error)
	// Update applies a partial update. Returns ErrRateNotFound for an
	// unknown id — callers must not assume a prior existence check.
	Update(ctx context.Context, id int64, patch RatePatch) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Rate, error)
	ListByInstance(ctx context.Context, instanceID int64) ([]Rate, error)

	// Rebind replaces the full ward binding set for a rate. Duplicate
	// codes collapse to a set; idempotent.
	Rebind(ctx context.Context, id int64, wardCodes []string) error
	// Reorder renumbers priorities for an instance to match the given id
	// order, keeping them unique.
	Reorder(ctx context.Context, instanceID int64, orderedIDs []int64) error
	// SetBlocked flips the block flag on a set of rates within one instance.
	SetBlocked(ctx context.Context, instanceID int64, ids []int64, blocked bool) error
}
