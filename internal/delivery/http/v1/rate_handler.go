package v1

import (
	"errors"
	"net/http"

	"wardrate-engine/internal/domain"
	"wardrate-engine/internal/usecase"
	"wardrate-engine/pkg/utils"

	"github.com/goccy/go-json"
)

// RateHandler serves the public checkout-facing endpoints.
type RateHandler struct {
	resolveUC    *usecase.ResolveUsecase
	locationRepo domain.LocationRepository
}

func NewRateHandler(resolveUC *usecase.ResolveUsecase, locationRepo domain.LocationRepository) *RateHandler {
	return &RateHandler{resolveUC: resolveUC, locationRepo: locationRepo}
}

type resolveRequest struct {
	InstanceID   int64   `json:"instanceId"`
	WardCode     string  `json:"wardCode"`
	CartSubtotal float64 `json:"cartSubtotal"`
}

// ResolveRate handles POST /api/v1/rates/resolve
func (h *RateHandler) ResolveRate(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.WardCode = utils.NormalizeWardCode(req.WardCode)

	result, err := h.resolveUC.Resolve(r.Context(), req.InstanceID, req.WardCode, req.CartSubtotal)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "rate resolution failed")
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

// GetLocation handles GET /api/v1/locations/{code} — display/validation
// helper for checkout selects; not part of resolution.
func (h *RateHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	code := utils.NormalizeWardCode(r.PathValue("code"))
	if !utils.IsValidWardCode(code) {
		utils.WriteError(w, http.StatusBadRequest, "invalid location code")
		return
	}

	loc, err := h.locationRepo.Lookup(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			utils.WriteError(w, http.StatusNotFound, "location not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "location lookup failed")
		return
	}

	utils.WriteJSON(w, http.StatusOK, loc)
}
