package models

import "time"

// PostedArtifact records one published root post and its last known
// engagement metrics. Created on successful publish, mutated only by the
// metrics refresh, deleted only by an explicit data wipe.
type PostedArtifact struct {
	ExternalID   string    `gorm:"primaryKey" json:"external_id"`
	IdentityHash string    `gorm:"index" json:"-"`
	Topic        string    `json:"topic"`
	Tone         string    `json:"tone"`
	PostedAt     time.Time `json:"posted_at"`
	Likes        int       `json:"likes"`
	Retweets     int       `json:"retweets"`
	Replies      int       `json:"replies"`
	Views        int       `json:"views"`
	Bookmarks    int       `json:"bookmarks"`
	LastFetched  time.Time `json:"last_fetched"`
}
