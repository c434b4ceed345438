package models

import "time"

// UsageCounter tracks consumed quota for one identity and one limited
// resource within one period. The period key is a date ("2026-09-01") for
// daily counters or a month ("2026-09") for monthly ones, so a rollover
// simply addresses a fresh row.
type UsageCounter struct {
	IdentityKey string `gorm:"primaryKey"` // hashed email or session key
	Resource    string `gorm:"primaryKey"` // e.g. "generation", "carousel"
	PeriodKey   string `gorm:"primaryKey"`
	Count       int    `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
