package store

import "time"

// Profile is the base record for every user. Presence lives here: each
// client writes only its own row, so last-write-wins is safe.
type Profile struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	DisplayName    string     `gorm:"size:120" json:"display_name"`
	Email          string     `gorm:"size:255" json:"email"`
	PhotoURL       string     `gorm:"size:255" json:"photo_url"`
	Role           string     `gorm:"size:20;not null" json:"role"`
	IsOnline       bool       `gorm:"default:false" json:"is_online"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// WorkerProfile holds the self-registered worker's name fields and photo.
type WorkerProfile struct {
	ProfileID string `gorm:"primaryKey;size:36" json:"profile_id"`
	FullName  string `gorm:"size:120" json:"full_name"`
	FirstName string `gorm:"size:60" json:"first_name"`
	LastName  string `gorm:"size:60" json:"last_name"`
	PhotoURL  string `gorm:"size:255" json:"photo_url"`
}

// AgencyProfile holds the agency-managed name and logo.
type AgencyProfile struct {
	ProfileID  string `gorm:"primaryKey;size:36" json:"profile_id"`
	AgencyName string `gorm:"size:120" json:"agency_name"`
	LogoURL    string `gorm:"size:255" json:"logo_url"`
}

// ProfileRows is the result of one resolve call across all role tables.
type ProfileRows struct {
	Base     []Profile
	Workers  []WorkerProfile
	Agencies []AgencyProfile
}
