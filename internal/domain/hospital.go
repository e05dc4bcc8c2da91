package domain

// Hospital owning institution (tenant)
type Hospital struct {
	HospitalID   int64  `json:"hospital_id"`
	HospitalName string `json:"hospital_name"`
	Address      string `json:"address,omitempty"`
}

// Admin hospital staff account. PasswordHash is a bcrypt hash.
type Admin struct {
	AdminID      int64  `json:"admin_id"`
	HospitalID   int64  `json:"hospital_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
