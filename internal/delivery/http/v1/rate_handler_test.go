package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"wardrate-engine/internal/domain"

	"github.com/stretchr/testify/assert"
)

type fakeLocationRepo struct {
	locations map[string]domain.Location
}

func (f fakeLocationRepo) Lookup(_ context.Context, code string) (*domain.Location, error) {
	if loc, ok := f.locations[code]; ok {
		return &loc, nil
	}
	return nil, domain.ErrLocationNotFound
}

func locationMux(repo domain.LocationRepository) *http.ServeMux {
	handler := NewRateHandler(nil, repo)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/locations/{code}", handler.GetLocation)
	return mux
}

func TestGetLocation(t *testing.T) {
	mux := locationMux(fakeLocationRepo{locations: map[string]domain.Location{
		"VN-01-00256": {Code: "VN-01-00256", Name: "Ward 256", ParentCode: "VN-01"},
	}})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"known ward", "/api/v1/locations/VN-01-00256", http.StatusOK},
		{"lowercase is normalized", "/api/v1/locations/vn-01-00256", http.StatusOK},
		{"unknown ward", "/api/v1/locations/VN-01-99999", http.StatusNotFound},
		{"malformed code", "/api/v1/locations/BADCODE", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
