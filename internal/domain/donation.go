package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ComponentType blood component; each type lives in its own table
type ComponentType string

const (
	ComponentRedBlood  ComponentType = "RedBlood"
	ComponentPlasma    ComponentType = "Plasma"
	ComponentPlatelets ComponentType = "Platelets"
)

// ComponentTypes iteration order used by aggregation and matching.
var ComponentTypes = []ComponentType{ComponentRedBlood, ComponentPlasma, ComponentPlatelets}

// ParseComponentType accepts the canonical names plus the snake/lower forms used in URLs.
func ParseComponentType(s string) (ComponentType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "redblood", "red", "redbloodcells", "rbc":
		return ComponentRedBlood, nil
	case "plasma":
		return ComponentPlasma, nil
	case "platelets", "platelet":
		return ComponentPlatelets, nil
	}
	return "", NewValidationError("parse_component_type", fmt.Sprintf("invalid component type: %q", s))
}

// HasRh plasma is tracked without an Rh dimension.
func (c ComponentType) HasRh() bool {
	return c != ComponentPlasma
}

// Table returns the inventory table for the component. The result is one of three
// constants and is the only identifier ever formatted into SQL.
func (c ComponentType) Table() string {
	switch c {
	case ComponentRedBlood:
		return "red_blood_inventory"
	case ComponentPlasma:
		return "plasma_inventory"
	case ComponentPlatelets:
		return "platelets_inventory"
	}
	return ""
}

// Valid reports whether c is one of the known component types.
func (c ComponentType) Valid() bool {
	return c.Table() != ""
}

// Slug URL form ("red_blood", "plasma", "platelets").
func (c ComponentType) Slug() string {
	switch c {
	case ComponentRedBlood:
		return "red_blood"
	case ComponentPlasma:
		return "plasma"
	case ComponentPlatelets:
		return "platelets"
	}
	return ""
}

// BloodType ABO group
type BloodType string

const (
	BloodTypeA  BloodType = "A"
	BloodTypeB  BloodType = "B"
	BloodTypeAB BloodType = "AB"
	BloodTypeO  BloodType = "O"
)

// ParseBloodType is case-insensitive.
func ParseBloodType(s string) (BloodType, error) {
	switch BloodType(strings.ToUpper(strings.TrimSpace(s))) {
	case BloodTypeA:
		return BloodTypeA, nil
	case BloodTypeB:
		return BloodTypeB, nil
	case BloodTypeAB:
		return BloodTypeAB, nil
	case BloodTypeO:
		return BloodTypeO, nil
	}
	return "", NewValidationError("parse_blood_type", fmt.Sprintf("invalid blood type: %q", s))
}

// Rh factor; empty for plasma
type Rh string

const (
	RhPositive Rh = "+"
	RhNegative Rh = "-"
	RhNone     Rh = ""
)

// ParseRh accepts "+", "-", "pos", "neg" and the words positive/negative.
func ParseRh(s string) (Rh, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+", "pos", "positive":
		return RhPositive, nil
	case "-", "neg", "negative":
		return RhNegative, nil
	case "":
		return RhNone, nil
	}
	return "", NewValidationError("parse_rh", fmt.Sprintf("invalid rh factor: %q", s))
}

// Amount bounds accepted when a bag is entered or edited. Stored rows are not re-validated.
const (
	MinDonationAmountMl = 100
	MaxDonationAmountMl = 500
)

// DateLayout wire and form format for expiration dates.
const DateLayout = "2006-01-02"

// DonationRecord one physical blood-component bag.
// HospitalID never changes after creation; Active=false means soft-deleted.
type DonationRecord struct {
	BagID          int64         `json:"bag_id"`
	ComponentType  ComponentType `json:"component_type"`
	DonorName      string        `json:"donor_name"`
	BloodType      BloodType     `json:"blood_type"`
	Rh             Rh            `json:"rh"`
	AmountMl       int           `json:"amount_ml"`
	ExpirationDate time.Time     `json:"expiration_date"`
	HospitalID     int64         `json:"hospital_id"`
	Active         bool          `json:"active"`
}

// Counts reports whether the record contributes to inventory on the given day.
func (r DonationRecord) Counts(today time.Time) bool {
	return r.Active && Day(r.ExpirationDate).After(Day(today))
}

// DonationFields editable part of a record (add/update input).
type DonationFields struct {
	DonorName      string
	BloodType      BloodType
	Rh             Rh
	AmountMl       int
	ExpirationDate time.Time
}

// Validate checks entry-time constraints for the component type and normalises Rh
// (always empty for plasma).
func (f *DonationFields) Validate(ct ComponentType) error {
	const op = "validate_donation"
	if !ct.Valid() {
		return NewValidationError(op, "invalid component type")
	}
	f.DonorName = strings.TrimSpace(f.DonorName)
	if f.DonorName == "" {
		return NewValidationError(op, "donor_name is required")
	}
	if _, err := ParseBloodType(string(f.BloodType)); err != nil {
		return NewValidationError(op, fmt.Sprintf("invalid blood type: %q", f.BloodType))
	}
	if ct.HasRh() {
		if f.Rh != RhPositive && f.Rh != RhNegative {
			return NewValidationError(op, "rh must be '+' or '-'")
		}
	} else {
		f.Rh = RhNone
	}
	if f.AmountMl < MinDonationAmountMl || f.AmountMl > MaxDonationAmountMl {
		return NewValidationError(op, fmt.Sprintf("amount must be between %d and %d ml", MinDonationAmountMl, MaxDonationAmountMl))
	}
	if f.ExpirationDate.IsZero() {
		return NewValidationError(op, "expiration_date is required")
	}
	f.ExpirationDate = Day(f.ExpirationDate)
	return nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InventoryBucket derived (count, total) for one (hospital, component, blood type, rh).
type InventoryBucket struct {
	HospitalID    int64         `json:"hospital_id"`
	ComponentType ComponentType `json:"component_type"`
	BloodType     BloodType     `json:"blood_type"`
	Rh            Rh            `json:"rh"`
	Count         int           `json:"count"`
	TotalAmountMl int           `json:"total_amount_ml"`
}

// Level classifies the bucket volume.
func (b InventoryBucket) Level() SurplusLevel {
	return Classify(b.TotalAmountMl)
}

type bucketKey struct {
	hospitalID int64
	component  ComponentType
	bloodType  BloodType
	rh         Rh
}

// AggregateRecords groups active, unexpired records by (hospital, component, blood type, rh).
// Plasma rh is always empty. Output is sorted by hospital, component, blood type, then
// rh ("+" before "-").
func AggregateRecords(records []DonationRecord, today time.Time) []InventoryBucket {
	idx := map[bucketKey]int{}
	out := []InventoryBucket{}
	for _, r := range records {
		if !r.Counts(today) {
			continue
		}
		rh := r.Rh
		if !r.ComponentType.HasRh() {
			rh = RhNone
		}
		k := bucketKey{r.HospitalID, r.ComponentType, r.BloodType, rh}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, InventoryBucket{
				HospitalID:    r.HospitalID,
				ComponentType: r.ComponentType,
				BloodType:     r.BloodType,
				Rh:            rh,
			})
		}
		out[i].Count++
		out[i].TotalAmountMl += r.AmountMl
	}
	SortBuckets(out)
	return out
}

// SortBuckets natural grouping order: blood type then rh, alphabetically.
func SortBuckets(b []InventoryBucket) {
	sort.SliceStable(b, func(i, j int) bool {
		if b[i].HospitalID != b[j].HospitalID {
			return b[i].HospitalID < b[j].HospitalID
		}
		if b[i].ComponentType != b[j].ComponentType {
			return b[i].ComponentType < b[j].ComponentType
		}
		if b[i].BloodType != b[j].BloodType {
			return b[i].BloodType < b[j].BloodType
		}
		return b[i].Rh < b[j].Rh
	})
}
