package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fp(f float64) *float64 { return &f }

func TestEvaluate_NoConditionsReturnsBaseCost(t *testing.T) {
	rate := Rate{BaseCost: 25000}

	cost, matched := rate.Evaluate(123456)

	assert.True(t, matched)
	assert.Equal(t, 25000.0, cost)
}

func TestEvaluate_Bands(t *testing.T) {
	rate := Rate{
		BaseCost: 30000,
		Conditions: []Condition{
			{MinTotal: fp(0), MaxTotal: fp(100000), Cost: 20000},
			{MinTotal: fp(100001), Cost: 0}, // free shipping, open-ended
		},
	}

	tests := []struct {
		name     string
		subtotal float64
		cost     float64
		matched  bool
	}{
		{"inside first band", 50000, 20000, true},
		{"lower bound inclusive", 0, 20000, true},
		{"upper bound inclusive", 100000, 20000, true},
		{"open-ended second band", 200000, 0, true},
		{"gap between bands", 100000.5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, matched := rate.Evaluate(tt.subtotal)
			assert.Equal(t, tt.matched, matched)
			if tt.matched {
				assert.Equal(t, tt.cost, cost)
			}
		})
	}
}

func TestEvaluate_OverlappingBandsResolvedByOrder(t *testing.T) {
	rate := Rate{
		Conditions: []Condition{
			{MinTotal: fp(0), MaxTotal: fp(500000), Cost: 15000},
			{MinTotal: fp(0), MaxTotal: fp(100000), Cost: 99999}, // shadowed by the first band
		},
	}

	cost, matched := rate.Evaluate(50000)

	assert.True(t, matched)
	assert.Equal(t, 15000.0, cost)
}

func TestEvaluate_DefaultBounds(t *testing.T) {
	rate := Rate{
		Conditions: []Condition{
			{Cost: 12000}, // no bounds: matches everything
		},
	}

	for _, subtotal := range []float64{0, 1, 9999999999} {
		cost, matched := rate.Evaluate(subtotal)
		assert.True(t, matched)
		assert.Equal(t, 12000.0, cost)
	}
}

func TestEvaluate_NoBandMatches(t *testing.T) {
	rate := Rate{
		BaseCost: 30000,
		Conditions: []Condition{
			{MinTotal: fp(100000), MaxTotal: fp(200000), Cost: 10000},
		},
	}

	_, matched := rate.Evaluate(50000)

	assert.False(t, matched)
}
