package models

import "time"

// AnalyticsProfile aggregates one identity's generation activity. The
// breakdown maps and the capped history are stored as JSON blobs, mirroring
// the one-document-per-identity layout of the file-backed variant.
type AnalyticsProfile struct {
	IdentityHash     string `gorm:"primaryKey"` // sha256(email), first 16 hex chars
	UserCreated      time.Time
	LastUpdated      time.Time
	TotalGenerations int
	PlatformCounts   string `gorm:"type:text"` // JSON map[platform]count
	ToneCounts       string `gorm:"type:text"` // JSON map[tone]count
	TemplatesUsed    string `gorm:"type:text"` // JSON map[templateID]TemplateUsage
	DailyActivity    string `gorm:"type:text"` // JSON map[date]count
	History          string `gorm:"type:text"` // JSON []HistoryEntry, newest first, capped
}
