package httpapi

import (
	"net/http"

	"bloodbank/internal/service"
)

type HospitalHandler struct {
	hospitals *service.HospitalService
}

func NewHospitalHandler(hospitals *service.HospitalService) *HospitalHandler {
	return &HospitalHandler{hospitals: hospitals}
}

func (h *HospitalHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.hospitals.ListHospitals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(items))
}
