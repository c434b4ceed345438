// Package sidechannel persists request-token secrets between the two legs of
// an OAuth 1.0a handshake. Entries are single use and expire after a short
// TTL, so an abandoned redirect never leaves a live secret behind.
package sidechannel

import (
	"time"

	"github.com/threadforge/threadforge/internal/db/models"
	"github.com/threadforge/threadforge/internal/faults"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTTL bounds how long a pending handshake stays redeemable.
const DefaultTTL = 10 * time.Minute

// Store is a TTL'd single-use token store backed by the shared database.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a store with the given TTL; ttl <= 0 uses DefaultTTL.
func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Put saves the secret for a pending request token, replacing any previous
// entry for the same token. Expired entries are purged on the way in.
func (s *Store) Put(requestToken, requestSecret string) error {
	if err := s.purgeExpired(); err != nil {
		return err
	}
	entry := models.OAuthSession{
		RequestToken:  requestToken,
		RequestSecret: requestSecret,
		CreatedAt:     s.now(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_token"}},
		UpdateAll: true,
	}).Create(&entry).Error
}

// Take redeems a request token: it returns the stored secret and deletes the
// entry in the same transaction, so a second redemption of the same token
// fails. Missing or expired entries return ErrSessionExpired.
func (s *Store) Take(requestToken string) (string, error) {
	var secret string
	var expired bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entry models.OAuthSession
		if err := tx.First(&entry, "request_token = ?", requestToken).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return faults.ErrSessionExpired
			}
			return err
		}
		// Delete unconditionally and commit: an expired entry must still
		// leave storage, so the expiry verdict is returned after the
		// transaction instead of rolling it back.
		if err := tx.Delete(&models.OAuthSession{}, "request_token = ?", requestToken).Error; err != nil {
			return err
		}
		expired = s.now().Sub(entry.CreatedAt) > s.ttl
		secret = entry.RequestSecret
		return nil
	})
	if err != nil {
		return "", err
	}
	if expired {
		return "", faults.ErrSessionExpired
	}
	return secret, nil
}

func (s *Store) purgeExpired() error {
	cutoff := s.now().Add(-s.ttl)
	return s.db.Delete(&models.OAuthSession{}, "created_at < ?", cutoff).Error
}
