package domain

import "context"

// PreheatTarget is one (instance, ward) pair worth warming.
type PreheatTarget struct {
	InstanceID int64  `json:"instanceId"`
	WardCode   string `json:"wardCode"`
}

// PopularWardSource supplies the wards worth preheating, typically ranked
// by order volume. Lives outside the engine (analytics concern).
type PopularWardSource interface {
	PopularWards(ctx context.Context, limit int) ([]PreheatTarget, error)
}
