package models

import "time"

// OAuthSession is the side-channel entry that carries the request-token
// secret across the authorization redirect. Single use: the callback takes
// it out atomically, and entries past their TTL are purged.
type OAuthSession struct {
	RequestToken  string `gorm:"primaryKey"`
	RequestSecret string
	CreatedAt     time.Time
}
