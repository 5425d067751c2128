package domain

import "context"

// Location is a single node of the location taxonomy. Ward codes are the
// atomic unit rates bind to; ParentCode points at the district level.
type Location struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentCode string `json:"parentCode,omitempty"`
}

// LocationRepository is the lookup side of the location taxonomy. It is
// consumed by the delivery layer for validation and display only — the
// resolution engine itself never touches it.
type LocationRepository interface {
	Lookup(ctx context.Context, code string) (*Location, error)
}
