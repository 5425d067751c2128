package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"wardrate-engine/internal/domain"
	infracache "wardrate-engine/internal/infrastructure/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adminFixture wires the admin usecase and the resolution engine onto the
// same cache, so invalidation is observable end to end.
type adminFixture struct {
	repo    *fakeRateRepo
	admin   *RateAdminUsecase
	resolve *ResolveUsecase
}

func newAdminFixture() *adminFixture {
	repo := newFakeRateRepo()
	mem := infracache.NewMemoryCache(time.Minute, time.Minute)
	return &adminFixture{
		repo:    repo,
		admin:   NewRateAdminUsecase(repo, NewInvalidator(mem)),
		resolve: NewResolveUsecase(repo, mem, testConfig()),
	}
}

func TestCreateRate_Validation(t *testing.T) {
	fx := newAdminFixture()

	tests := []struct {
		name string
		req  CreateRateRequest
	}{
		{"missing instance", CreateRateRequest{BaseCost: 1000}},
		{"negative base cost", CreateRateRequest{InstanceID: 1, BaseCost: -1}},
		{"negative band cost", CreateRateRequest{
			InstanceID: 1,
			Conditions: []domain.Condition{{Cost: -500}},
		}},
		{"inverted band bounds", CreateRateRequest{
			InstanceID: 1,
			Conditions: []domain.Condition{{MinTotal: fp(5000), MaxTotal: fp(100), Cost: 10}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.admin.CreateRate(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestCreateRate_Defaults(t *testing.T) {
	fx := newAdminFixture()
	fx.repo.seed(domain.Rate{InstanceID: 1, Priority: 0})
	fx.repo.seed(domain.Rate{InstanceID: 1, Priority: 4})

	rate, err := fx.admin.CreateRate(context.Background(), CreateRateRequest{
		InstanceID: 1,
		Label:      "Appended",
		BaseCost:   12000,
		WardCodes:  []string{" vn-01-00001 ", "VN-01-00001", "vn-01-00002"},
	})
	require.NoError(t, err)

	// Appended after the current maximum priority
	assert.Equal(t, 5, rate.Priority)
	// stopProcessing defaults to true
	assert.True(t, rate.StopProcessing)
	// Codes are normalized; the repository dedupes on bind
	assert.Equal(t, []string{"VN-01-00001", "VN-01-00001", "VN-01-00002"}, rate.WardCodes)
}

func TestUpdateRate_NotFound(t *testing.T) {
	fx := newAdminFixture()

	err := fx.admin.UpdateRate(context.Background(), 42, UpdateRateRequest{})
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestUpdateRate_InvalidatesCachedResolutions(t *testing.T) {
	fx := newAdminFixture()
	id := fx.repo.seed(domain.Rate{
		InstanceID:     1,
		Priority:       0,
		Label:          "Standard",
		BaseCost:       20000,
		StopProcessing: true,
		WardCodes:      []string{"W1"},
	})

	result, err := fx.resolve.Resolve(context.Background(), 1, "W1", 50000)
	require.NoError(t, err)
	assert.Equal(t, 20000.0, result.Cost)

	// Warm: same call is now served from cache
	result, err = fx.resolve.Resolve(context.Background(), 1, "W1", 50000)
	require.NoError(t, err)
	assert.True(t, result.CacheHit)

	newCost := 35000.0
	err = fx.admin.UpdateRate(context.Background(), id, UpdateRateRequest{BaseCost: &newCost})
	require.NoError(t, err)

	// The mutation flushed the instance: fresh fetch, fresh cost
	result, err = fx.resolve.Resolve(context.Background(), 1, "W1", 50000)
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 35000.0, result.Cost)
}

func TestUpdateRate_FlushesEvenWhenRebindFails(t *testing.T) {
	fx := newAdminFixture()
	id := fx.repo.seed(domain.Rate{
		InstanceID:     1,
		Priority:       0,
		Label:          "Standard",
		BaseCost:       20000,
		StopProcessing: true,
		WardCodes:      []string{"W1"},
	})

	// Warm the cache
	_, err := fx.resolve.Resolve(context.Background(), 1, "W1", 50000)
	require.NoError(t, err)
	result, err := fx.resolve.Resolve(context.Background(), 1, "W1", 50000)
	require.NoError(t, err)
	require.True(t, result.CacheHit)

	// The cost update lands, then the rebind fails
	fx.repo.rebindErr = errors.New("deadlock detected")
	newCost := 35000.0
	err = fx.admin.UpdateRate(context.Background(), id, UpdateRateRequest{
		BaseCost:  &newCost,
		WardCodes: []string{"W1"},
	})
	require.Error(t, err)

	rate, err := fx.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 35000.0, rate.BaseCost)

	// The partial mutation still flushed: no stale pre-update hit
	result, err = fx.resolve.Resolve(context.Background(), 1, "W1", 50000)
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 35000.0, result.Cost)
}

func TestUpdateRate_RebindReplacesWardSet(t *testing.T) {
	fx := newAdminFixture()
	id := fx.repo.seed(domain.Rate{
		InstanceID:     1,
		BaseCost:       10000,
		StopProcessing: true,
		WardCodes:      []string{"W1", "W2"},
	})

	err := fx.admin.UpdateRate(context.Background(), id, UpdateRateRequest{
		WardCodes: []string{"w3"},
	})
	require.NoError(t, err)

	rate, err := fx.admin.GetRate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"W3"}, rate.WardCodes)

	// The old wards no longer resolve to this rate
	result, err := fx.resolve.Resolve(context.Background(), 1, "W1", 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoMatch, result.Meta.Reason)
}

func TestDeleteRate_FlushesInstance(t *testing.T) {
	fx := newAdminFixture()
	id := fx.repo.seed(domain.Rate{
		InstanceID:     1,
		BaseCost:       10000,
		StopProcessing: true,
		WardCodes:      []string{"W1"},
	})

	_, err := fx.resolve.Resolve(context.Background(), 1, "W1", 1000)
	require.NoError(t, err)

	require.NoError(t, fx.admin.DeleteRate(context.Background(), id))

	result, err := fx.resolve.Resolve(context.Background(), 1, "W1", 1000)
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, domain.ReasonNoMatch, result.Meta.Reason)

	err = fx.admin.DeleteRate(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestReorderRates_RenumbersPriorities(t *testing.T) {
	fx := newAdminFixture()
	a := fx.repo.seed(domain.Rate{InstanceID: 1, Priority: 0, Label: "a"})
	b := fx.repo.seed(domain.Rate{InstanceID: 1, Priority: 3, Label: "b"})
	c := fx.repo.seed(domain.Rate{InstanceID: 1, Priority: 7, Label: "c"})

	err := fx.admin.ReorderRates(context.Background(), 1, []int64{c, a, b})
	require.NoError(t, err)

	rates, err := fx.admin.ListRates(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "c", rates[0].Label)
	assert.Equal(t, "a", rates[1].Label)
	assert.Equal(t, "b", rates[2].Label)
	for i, r := range rates {
		assert.Equal(t, i, r.Priority)
	}
}

func TestReorderRates_UnknownIDFails(t *testing.T) {
	fx := newAdminFixture()
	a := fx.repo.seed(domain.Rate{InstanceID: 1, Priority: 0})

	err := fx.admin.ReorderRates(context.Background(), 1, []int64{a, 999})
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestBulkAction_BlockAndUnblock(t *testing.T) {
	fx := newAdminFixture()
	id := fx.repo.seed(domain.Rate{
		InstanceID:     1,
		BaseCost:       15000,
		StopProcessing: true,
		WardCodes:      []string{"W1"},
	})

	err := fx.admin.BulkAction(context.Background(), 1, domain.BulkActionBlock, []int64{id})
	require.NoError(t, err)

	result, err := fx.resolve.Resolve(context.Background(), 1, "W1", 1000)
	require.NoError(t, err)
	assert.True(t, result.Blocked)

	err = fx.admin.BulkAction(context.Background(), 1, domain.BulkActionUnblock, []int64{id})
	require.NoError(t, err)

	result, err = fx.resolve.Resolve(context.Background(), 1, "W1", 1000)
	require.NoError(t, err)
	assert.False(t, result.Blocked)
	assert.Equal(t, 15000.0, result.Cost)
}

func TestBulkAction_DuplicateIDs(t *testing.T) {
	fx := newAdminFixture()
	id := fx.repo.seed(domain.Rate{
		InstanceID:     1,
		BaseCost:       15000,
		StopProcessing: true,
		WardCodes:      []string{"W1"},
	})

	// A repeated id is not a missing id
	err := fx.admin.BulkAction(context.Background(), 1, domain.BulkActionBlock, []int64{id, id})
	require.NoError(t, err)

	result, err := fx.resolve.Resolve(context.Background(), 1, "W1", 1000)
	require.NoError(t, err)
	assert.True(t, result.Blocked)
}

func TestBulkAction_UnknownAction(t *testing.T) {
	fx := newAdminFixture()
	id := fx.repo.seed(domain.Rate{InstanceID: 1})

	err := fx.admin.BulkAction(context.Background(), 1, "archive", []int64{id})
	assert.Error(t, err)
}
