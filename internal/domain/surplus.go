package domain

import "encoding/json"

// SurplusLevel ordered volume band: critical-low < low < optimal < surplus < high-surplus
type SurplusLevel int

const (
	LevelCriticalLow SurplusLevel = iota
	LevelLow
	LevelOptimal
	LevelSurplus
	LevelHighSurplus
)

// Classifier band upper bounds (exclusive, ml).
const (
	CriticalLowBelowMl = 500
	LowBelowMl         = 1500
	OptimalBelowMl     = 3000
	SurplusBelowMl     = 8000
)

// Matching cutoffs. These are deliberately independent of the classifier bands:
// a hospital is only offered as a transfer source above DonorWorthyAboveMl, and is
// only listed as needing stock below NeedyBelowMl. Both comparisons are strict.
const (
	DonorWorthyAboveMl = 5000
	NeedyBelowMl       = 1500
)

var levelNames = [...]string{"critical-low", "low", "optimal", "surplus", "high-surplus"}

// Classify maps a total volume to its band; first matching bound wins.
// Negative totals are treated as empty.
func Classify(totalAmountMl int) SurplusLevel {
	switch {
	case totalAmountMl < CriticalLowBelowMl:
		return LevelCriticalLow
	case totalAmountMl < LowBelowMl:
		return LevelLow
	case totalAmountMl < OptimalBelowMl:
		return LevelOptimal
	case totalAmountMl < SurplusBelowMl:
		return LevelSurplus
	default:
		return LevelHighSurplus
	}
}

func (l SurplusLevel) String() string {
	if l < LevelCriticalLow || l > LevelHighSurplus {
		return "unknown"
	}
	return levelNames[l]
}

// IsShortage critical-low or low.
func (l SurplusLevel) IsShortage() bool {
	return l <= LevelLow
}

// IsSurplus surplus or high-surplus.
func (l SurplusLevel) IsSurplus() bool {
	return l >= LevelSurplus
}

func (l SurplusLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *SurplusLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for i, name := range levelNames {
		if name == s {
			*l = SurplusLevel(i)
			return nil
		}
	}
	return NewValidationError("surplus_level", "unknown surplus level: "+s)
}

// SurplusAlert one cross-hospital signal. HospitalID/HospitalName/Count/TotalAmountMl
// describe the other hospital; YourCount is the caller's unit count for the bucket.
type SurplusAlert struct {
	ComponentType ComponentType `json:"component_type"`
	BloodType     BloodType     `json:"blood_type"`
	Rh            Rh            `json:"rh"`
	HospitalID    int64         `json:"hospital_id"`
	HospitalName  string        `json:"hospital_name"`
	Count         int           `json:"count"`
	YourCount     int           `json:"your_count"`
	SurplusLevel  SurplusLevel  `json:"surplus_level"`
	TotalAmountMl int           `json:"total_amount_ml"`
}

// LevelCounts number of (blood type, rh) buckets per band for one component type.
type LevelCounts struct {
	Surplus  int `json:"surplus"`
	Optimal  int `json:"optimal"`
	Low      int `json:"low"`
	Critical int `json:"critical"`
}

// Add folds a level into the counts: critical-low->Critical, high-surplus->Surplus.
func (c *LevelCounts) Add(l SurplusLevel) {
	switch l {
	case LevelCriticalLow:
		c.Critical++
	case LevelLow:
		c.Low++
	case LevelOptimal:
		c.Optimal++
	default:
		c.Surplus++
	}
}

// SurplusSummary per-component band counts for one hospital.
type SurplusSummary struct {
	RedBlood  LevelCounts `json:"red_blood"`
	Plasma    LevelCounts `json:"plasma"`
	Platelets LevelCounts `json:"platelets"`
}

// For returns the counts for a component type.
func (s *SurplusSummary) For(ct ComponentType) *LevelCounts {
	switch ct {
	case ComponentRedBlood:
		return &s.RedBlood
	case ComponentPlasma:
		return &s.Plasma
	case ComponentPlatelets:
		return &s.Platelets
	}
	return nil
}

// HospitalBucket another hospital's aggregate for one (component, blood type, rh).
type HospitalBucket struct {
	HospitalID    int64  `json:"hospital_id"`
	HospitalName  string `json:"hospital_name"`
	Count         int    `json:"count"`
	TotalAmountMl int    `json:"total_amount_ml"`
}
