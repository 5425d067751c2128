package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"wardrate-engine/config"
	"wardrate-engine/internal/domain"
	"wardrate-engine/pkg/cache"
)

func testConfig() *config.Config {
	return &config.Config{
		MatchCacheTTL:     10 * time.Minute,
		NegativeCacheTTL:  2 * time.Minute,
		SubtotalBucket:    10000,
		PreheatRatePerSec: 1000, // keep tests fast
		PreheatBurst:      100,
		PreheatTopWards:   50,
	}
}

func fp(f float64) *float64 { return &f }

// fakeRateRepo is an in-memory domain.RateRepository with call counters.
type fakeRateRepo struct {
	mu        sync.Mutex
	rates     map[int64]domain.Rate
	nextID    int64
	wardCalls int
	failWith  error
	rebindErr error
}

func newFakeRateRepo() *fakeRateRepo {
	return &fakeRateRepo{rates: make(map[int64]domain.Rate)}
}

func (f *fakeRateRepo) seed(rate domain.Rate) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rate.ID == 0 {
		f.nextID++
		rate.ID = f.nextID
	} else if rate.ID > f.nextID {
		f.nextID = rate.ID
	}
	f.rates[rate.ID] = cloneRate(rate)
	return rate.ID
}

func (f *fakeRateRepo) RatesForWard(_ context.Context, wardCode string, instanceID int64) ([]domain.Rate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.wardCalls++

	var out []domain.Rate
	for _, r := range f.rates {
		if r.InstanceID != instanceID {
			continue
		}
		for _, code := range r.WardCodes {
			if code == wardCode {
				out = append(out, cloneRate(r))
				break
			}
		}
	}
	sortRates(out)
	return out, nil
}

func (f *fakeRateRepo) Create(_ context.Context, rate *domain.Rate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rate.ID = f.nextID
	f.rates[rate.ID] = cloneRate(*rate)
	return rate.ID, nil
}

func (f *fakeRateRepo) Update(_ context.Context, id int64, patch domain.RatePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rates[id]
	if !ok {
		return domain.ErrRateNotFound
	}
	if patch.Priority != nil {
		r.Priority = *patch.Priority
	}
	if patch.Label != nil {
		r.Label = *patch.Label
	}
	if patch.BaseCost != nil {
		r.BaseCost = *patch.BaseCost
	}
	if patch.IsBlockRule != nil {
		r.IsBlockRule = *patch.IsBlockRule
	}
	if patch.StopProcessing != nil {
		r.StopProcessing = *patch.StopProcessing
	}
	if patch.Conditions != nil {
		r.Conditions = append([]domain.Condition(nil), (*patch.Conditions)...)
	}
	if patch.ModifiedBy != nil {
		r.ModifiedBy = *patch.ModifiedBy
	}
	f.rates[id] = r
	return nil
}

func (f *fakeRateRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rates[id]; !ok {
		return domain.ErrRateNotFound
	}
	delete(f.rates, id)
	return nil
}

func (f *fakeRateRepo) GetByID(_ context.Context, id int64) (*domain.Rate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rates[id]
	if !ok {
		return nil, domain.ErrRateNotFound
	}
	out := cloneRate(r)
	return &out, nil
}

func (f *fakeRateRepo) ListByInstance(_ context.Context, instanceID int64) ([]domain.Rate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Rate
	for _, r := range f.rates {
		if r.InstanceID == instanceID {
			out = append(out, cloneRate(r))
		}
	}
	sortRates(out)
	return out, nil
}

func (f *fakeRateRepo) Rebind(_ context.Context, id int64, wardCodes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rebindErr != nil {
		return f.rebindErr
	}
	r, ok := f.rates[id]
	if !ok {
		return domain.ErrRateNotFound
	}
	seen := make(map[string]struct{})
	r.WardCodes = nil
	for _, code := range wardCodes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		r.WardCodes = append(r.WardCodes, code)
	}
	f.rates[id] = r
	return nil
}

func (f *fakeRateRepo) Reorder(_ context.Context, instanceID int64, orderedIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range orderedIDs {
		r, ok := f.rates[id]
		if !ok || r.InstanceID != instanceID {
			return domain.ErrRateNotFound
		}
	}
	for pos, id := range orderedIDs {
		r := f.rates[id]
		r.Priority = pos
		f.rates[id] = r
	}
	return nil
}

func (f *fakeRateRepo) SetBlocked(_ context.Context, instanceID int64, ids []int64, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		r, ok := f.rates[id]
		if !ok || r.InstanceID != instanceID {
			return domain.ErrRateNotFound
		}
		r.IsBlockRule = blocked
		f.rates[id] = r
	}
	return nil
}

func cloneRate(r domain.Rate) domain.Rate {
	r.Conditions = append([]domain.Condition(nil), r.Conditions...)
	r.WardCodes = append([]string(nil), r.WardCodes...)
	return r
}

func sortRates(rates []domain.Rate) {
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Priority != rates[j].Priority {
			return rates[i].Priority < rates[j].Priority
		}
		return rates[i].ID < rates[j].ID
	})
}

// countingCache wraps a CacheService and counts accesses.
type countingCache struct {
	inner cache.CacheService
	gets  int
	sets  int
}

func (c *countingCache) Get(key string) (interface{}, bool) {
	c.gets++
	return c.inner.Get(key)
}

func (c *countingCache) Set(key string, value interface{}, d time.Duration) {
	c.sets++
	c.inner.Set(key, value, d)
}

func (c *countingCache) Delete(key string) { c.inner.Delete(key) }

func (c *countingCache) DeleteByPrefix(prefix string) { c.inner.DeleteByPrefix(prefix) }

func (c *countingCache) FlushGroup(group string) { c.inner.FlushGroup(group) }

func (c *countingCache) Flush() { c.inner.Flush() }

// brokenCache simulates an unavailable cache backend: every read misses,
// every write is dropped.
type brokenCache struct{}

func (brokenCache) Get(string) (interface{}, bool) { return nil, false }

func (brokenCache) Set(string, interface{}, time.Duration) {}

func (brokenCache) Delete(string) {}

func (brokenCache) DeleteByPrefix(string) {}

func (brokenCache) FlushGroup(string) {}

func (brokenCache) Flush() {}

// staticWardSource returns a fixed preheat target list.
type staticWardSource struct {
	targets []domain.PreheatTarget
}

func (s staticWardSource) PopularWards(context.Context, int) ([]domain.PreheatTarget, error) {
	return s.targets, nil
}

// fakeSnapshotStore records the last uploaded object.
type fakeSnapshotStore struct {
	key  string
	data []byte
}

func (s *fakeSnapshotStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.key = key
	s.data = append([]byte(nil), data...)
	return "https://snapshots.example.com/" + key, nil
}
