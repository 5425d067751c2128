package v1

import (
	"errors"
	"net/http"
	"strconv"

	"wardrate-engine/internal/domain"
	"wardrate-engine/internal/usecase"
	"wardrate-engine/pkg/utils"

	"github.com/goccy/go-json"
)

// AdminRateHandler serves rate management endpoints. Authentication is
// applied by the surrounding service's middleware chain, not here.
type AdminRateHandler struct {
	adminUC    *usecase.RateAdminUsecase
	transferUC *usecase.TransferUsecase
	preheater  *usecase.Preheater
}

func NewAdminRateHandler(adminUC *usecase.RateAdminUsecase, transferUC *usecase.TransferUsecase, preheater *usecase.Preheater) *AdminRateHandler {
	return &AdminRateHandler{
		adminUC:    adminUC,
		transferUC: transferUC,
		preheater:  preheater,
	}
}

// ListRates handles GET /api/v1/admin/rates?instanceId=N
func (h *AdminRateHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	instanceID := utils.ParseInt64(r.URL.Query().Get("instanceId"), 0)

	rates, err := h.adminUC.ListRates(r.Context(), instanceID)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, rates)
}

// GetRate handles GET /api/v1/admin/rates/{id}
func (h *AdminRateHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid rate ID")
		return
	}

	rate, err := h.adminUC.GetRate(r.Context(), id)
	if err != nil {
		writeRateError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, rate)
}

// CreateRate handles POST /api/v1/admin/rates
func (h *AdminRateHandler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rate, err := h.adminUC.CreateRate(r.Context(), req)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusCreated, rate)
}

// UpdateRate handles PATCH /api/v1/admin/rates/{id}
func (h *AdminRateHandler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid rate ID")
		return
	}

	var req usecase.UpdateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.adminUC.UpdateRate(r.Context(), id, req); err != nil {
		writeRateError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteRate handles DELETE /api/v1/admin/rates/{id}
func (h *AdminRateHandler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid rate ID")
		return
	}

	if err := h.adminUC.DeleteRate(r.Context(), id); err != nil {
		writeRateError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	InstanceID int64   `json:"instanceId"`
	RateIDs    []int64 `json:"rateIds"`
}

// ReorderRates handles POST /api/v1/admin/rates/reorder
func (h *AdminRateHandler) ReorderRates(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.adminUC.ReorderRates(r.Context(), req.InstanceID, req.RateIDs); err != nil {
		writeRateError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type bulkRequest struct {
	InstanceID int64   `json:"instanceId"`
	Action     string  `json:"action"`
	RateIDs    []int64 `json:"rateIds"`
}

// BulkAction handles POST /api/v1/admin/rates/bulk
func (h *AdminRateHandler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.adminUC.BulkAction(r.Context(), req.InstanceID, req.Action, req.RateIDs); err != nil {
		writeRateError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportRates handles GET /api/v1/admin/rates/export?instanceId=N&instanceId=M
// With upload=true the document is also stored as a snapshot.
func (h *AdminRateHandler) ExportRates(w http.ResponseWriter, r *http.Request) {
	var instanceIDs []int64
	for _, raw := range r.URL.Query()["instanceId"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, "invalid instanceId")
			return
		}
		instanceIDs = append(instanceIDs, id)
	}

	if r.URL.Query().Get("upload") == "true" {
		url, err := h.transferUC.ExportToStorage(r.Context(), instanceIDs)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}

	doc, err := h.transferUC.Export(r.Context(), instanceIDs)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, doc)
}

type importRequest struct {
	Document *usecase.ExportDocument `json:"document"`
	Options  usecase.ImportOptions   `json:"options"`
}

// ImportRates handles POST /api/v1/admin/rates/import
func (h *AdminRateHandler) ImportRates(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.transferUC.Import(r.Context(), req.Document, req.Options)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

// Preheat handles POST /api/v1/admin/cache/preheat — manual trigger for
// the warmup the periodic job normally runs.
func (h *AdminRateHandler) Preheat(w http.ResponseWriter, r *http.Request) {
	warmed, err := h.preheater.Preheat(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]int{"warmed": warmed})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeRateError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrRateNotFound) {
		utils.WriteError(w, http.StatusNotFound, "rate not found")
		return
	}
	utils.WriteError(w, http.StatusBadRequest, err.Error())
}
