package httpapi

import (
	"net/http"

	"bloodbank/internal/domain"
	"bloodbank/internal/service"
)

// SurplusHandler dashboard reads. The services never fail these; an unavailable
// backend shows up as an empty list or zero summary.
type SurplusHandler struct {
	inventory *service.InventoryService
	surplus   *service.SurplusService
}

func NewSurplusHandler(inventory *service.InventoryService, surplus *service.SurplusService) *SurplusHandler {
	return &SurplusHandler{inventory: inventory, surplus: surplus}
}

func (h *SurplusHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	writeJSON(w, http.StatusOK, Ok(h.surplus.FindSurplusAlerts(r.Context(), claims.HospitalID)))
}

func (h *SurplusHandler) Needing(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	writeJSON(w, http.StatusOK, Ok(h.surplus.FindHospitalsNeedingSurplus(r.Context(), claims.HospitalID)))
}

func (h *SurplusHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	writeJSON(w, http.StatusOK, Ok(h.surplus.Summarize(r.Context(), claims.HospitalID)))
}

// Buckets GET /api/v1/inventory/buckets?component_type=
func (h *SurplusHandler) Buckets(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	ct, err := domain.ParseComponentType(r.URL.Query().Get("component_type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.inventory.Aggregate(r.Context(), claims.HospitalID, ct)))
}
