package domain

import "time"

// Inventory event types published on every donation mutation.
const (
	EventDonationAdded       = "donation.added"
	EventDonationUpdated     = "donation.updated"
	EventDonationSoftDeleted = "donation.soft_deleted"
	EventDonationRestored    = "donation.restored"
	EventDonationDeleted     = "donation.deleted"
)

// InventoryEvent tells every instance which (component, hospital) stock changed.
type InventoryEvent struct {
	EventType     string        `json:"event_type"`
	HospitalID    int64         `json:"hospital_id"`
	ComponentType ComponentType `json:"component_type"`
	BagID         int64         `json:"bag_id"`
	Origin        string        `json:"origin"`
	Timestamp     int64         `json:"timestamp"`
}

// ShortageNotice sent when a bucket drops into critical-low after a mutation.
type ShortageNotice struct {
	HospitalID    int64         `json:"hospital_id"`
	HospitalName  string        `json:"hospital_name,omitempty"`
	ComponentType ComponentType `json:"component_type"`
	BloodType     BloodType     `json:"blood_type"`
	Rh            Rh            `json:"rh"`
	Count         int           `json:"count"`
	TotalAmountMl int           `json:"total_amount_ml"`
	Level         SurplusLevel  `json:"surplus_level"`
	DetectedAt    time.Time     `json:"detected_at"`
}

// ExpiryNotice active stock about to expire at one hospital.
type ExpiryNotice struct {
	HospitalID    int64         `json:"hospital_id"`
	HospitalName  string        `json:"hospital_name"`
	ComponentType ComponentType `json:"component_type"`
	Count         int           `json:"count"`
	TotalAmountMl int           `json:"total_amount_ml"`
	WithinDays    int           `json:"within_days"`
	AsOf          time.Time     `json:"as_of"`
}
