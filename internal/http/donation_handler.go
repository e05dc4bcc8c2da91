package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"bloodbank/internal/domain"
	"bloodbank/internal/repository"
	"bloodbank/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// DonationHandler donation CRUD, scoped to the session's hospital.
type DonationHandler struct {
	donations *service.DonationService
	logger    *zap.Logger
}

func NewDonationHandler(donations *service.DonationService, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{donations: donations, logger: logger}
}

// donationRequest add/update body. component_type is read on add only; the path
// carries it on update.
type donationRequest struct {
	ComponentType  string `json:"component_type"`
	DonorName      string `json:"donor_name"`
	BloodType      string `json:"blood_type"`
	Rh             string `json:"rh"`
	AmountMl       int    `json:"amount_ml"`
	ExpirationDate string `json:"expiration_date"`
}

func (req donationRequest) fields() (domain.DonationFields, error) {
	bt, err := domain.ParseBloodType(req.BloodType)
	if err != nil {
		return domain.DonationFields{}, err
	}
	rh, err := domain.ParseRh(req.Rh)
	if err != nil {
		return domain.DonationFields{}, err
	}
	var exp time.Time
	if s := strings.TrimSpace(req.ExpirationDate); s != "" {
		exp, err = time.Parse(domain.DateLayout, s)
		if err != nil {
			return domain.DonationFields{}, domain.NewValidationError("parse_expiration_date",
				fmt.Sprintf("expiration_date must be %s", domain.DateLayout))
		}
	}
	return domain.DonationFields{
		DonorName:      req.DonorName,
		BloodType:      bt,
		Rh:             rh,
		AmountMl:       req.AmountMl,
		ExpirationDate: exp,
	}, nil
}

func (h *DonationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var req donationRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body", err.Error()))
		return
	}
	ct, err := domain.ParseComponentType(req.ComponentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMutation(w, http.StatusCreated, h.donations.Add(r.Context(), claims.HospitalID, ct, fields))
}

// Item dispatches /api/v1/donations/{component}/{bagId}[/soft-delete|/restore].
func (h *DonationHandler) Item(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/donations/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || len(parts) > 3 {
		writeJSON(w, http.StatusNotFound, Fail("not found", ""))
		return
	}
	ct, err := domain.ParseComponentType(parts[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	bagID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || bagID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("invalid bag id", parts[1]))
		return
	}

	claims, _ := claimsFrom(r.Context())
	ctx := r.Context()

	if len(parts) == 3 {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[2] {
		case "soft-delete":
			writeMutation(w, http.StatusOK, h.donations.SoftDelete(ctx, claims.HospitalID, ct, bagID))
		case "restore":
			writeMutation(w, http.StatusOK, h.donations.Restore(ctx, claims.HospitalID, ct, bagID))
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found", ""))
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req donationRequest
		if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid body", err.Error()))
			return
		}
		fields, err := req.fields()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeMutation(w, http.StatusOK, h.donations.Update(ctx, claims.HospitalID, ct, bagID, fields))
	case http.MethodDelete:
		writeMutation(w, http.StatusOK, h.donations.HardDelete(ctx, claims.HospitalID, ct, bagID))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func parseFilter(r *http.Request) (repository.DonationsFilter, error) {
	q := r.URL.Query()
	ct, err := domain.ParseComponentType(q.Get("component_type"))
	if err != nil {
		return repository.DonationsFilter{}, err
	}
	filter := repository.DonationsFilter{
		ComponentType:   ct,
		Donor:           strings.TrimSpace(q.Get("donor")),
		IncludeInactive: parseBool(q.Get("include_inactive")),
		OnlyInactive:    parseBool(q.Get("only_inactive")),
	}
	if s := q.Get("blood_type"); s != "" {
		if filter.BloodType, err = domain.ParseBloodType(s); err != nil {
			return repository.DonationsFilter{}, err
		}
	}
	if s := q.Get("rh"); s != "" && ct.HasRh() {
		if filter.Rh, err = domain.ParseRh(s); err != nil {
			return repository.DonationsFilter{}, err
		}
	}
	return filter, nil
}

type searchResponse struct {
	Items []domain.DonationRecord `json:"items"`
	Total int                     `json:"total"`
	Page  int                     `json:"page"`
	Size  int                     `json:"size"`
}

func (h *DonationHandler) Search(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := parseInt(r.URL.Query().Get("page"), 1)
	if page < 1 {
		page = 1
	}
	size := parseInt(r.URL.Query().Get("size"), defaultPageSize)
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}

	items, total, err := h.donations.Search(r.Context(), claims.HospitalID, filter, page, size)
	if err != nil {
		if domain.KindOf(err) != domain.KindValidation {
			h.logger.Error("Donation search failed", zap.Int64("hospital_id", claims.HospitalID), zap.Error(err))
		}
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.DonationRecord{}
	}
	writeJSON(w, http.StatusOK, Ok(searchResponse{Items: items, Total: total, Page: page, Size: size}))
}

// Export GET /api/v1/donations/export: the search result as an .xlsx download.
func (h *DonationHandler) Export(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := h.donations.ExportAll(r.Context(), claims.HospitalID, filter)
	if err != nil {
		h.logger.Error("Donation export failed", zap.Int64("hospital_id", claims.HospitalID), zap.Error(err))
		writeError(w, r, err)
		return
	}

	data, err := GenerateDonationExport(filter.ComponentType, records)
	if err != nil {
		h.logger.Error("Failed to generate donation export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export", ""))
		return
	}

	filename := fmt.Sprintf("%s_inventory_%s.xlsx", filter.ComponentType.Slug(), time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
