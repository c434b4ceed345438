// Package analytics keeps per-identity aggregates: generation counters,
// a capped history, and engagement metrics for published posts. Identities
// are hashed before they touch storage.
package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/threadforge/threadforge/internal/db/models"
	"github.com/threadforge/threadforge/internal/util"
	"gorm.io/gorm"
)

const (
	historyCap  = 50
	topicMaxLen = 100
	dayFormat   = "2006-01-02"
)

// IdentityHash pseudonymizes an email for use as a storage key.
func IdentityHash(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])[:16]
}

// HistoryEntry is one generation event, newest first in the profile.
type HistoryEntry struct {
	Platform   string    `json:"platform"`
	Tone       string    `json:"tone"`
	Topic      string    `json:"topic"`
	TemplateID string    `json:"template_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ArtifactMetrics is the engagement snapshot written back by a refresh.
type ArtifactMetrics struct {
	Likes     int
	Retweets  int
	Replies   int
	Views     int
	Bookmarks int
}

// FetchFunc obtains current metrics for one published post.
type FetchFunc func(ctx context.Context, externalID string) (ArtifactMetrics, error)

// Summary is the precomputed rollup served to the dashboard.
type Summary struct {
	TotalGenerations    int            `json:"total_generations"`
	MostUsedPlatform    string         `json:"most_used_platform"`
	MostUsedTone        string         `json:"most_used_tone"`
	TopTemplate         string         `json:"top_template"`
	Last7Days           int            `json:"last_7_days"`
	DistinctActiveDays  int            `json:"distinct_active_days"`
	AveragePerActiveDay float64        `json:"average_per_active_day"`
	PlatformCounts      map[string]int `json:"platform_counts"`
	ToneCounts          map[string]int `json:"tone_counts"`
	MemberSince         time.Time      `json:"member_since"`
}

// DayCount is one day's generation count in an activity series.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Store persists analytics profiles and posted artifacts.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore wraps the shared database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// profile is the unmarshalled working form of an AnalyticsProfile row.
type profile struct {
	row       models.AnalyticsProfile
	platforms map[string]int
	tones     map[string]int
	templates map[string]int
	daily     map[string]int
	history   []HistoryEntry
}

func (s *Store) loadProfile(identityHash string) (*profile, error) {
	p := &profile{
		platforms: map[string]int{},
		tones:     map[string]int{},
		templates: map[string]int{},
		daily:     map[string]int{},
	}

	err := s.db.First(&p.row, "identity_hash = ?", identityHash).Error
	if err == gorm.ErrRecordNotFound {
		now := s.now()
		p.row = models.AnalyticsProfile{IdentityHash: identityHash, UserCreated: now, LastUpdated: now}
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	decode := func(blob string, into interface{}) {
		if blob == "" {
			return
		}
		if err := json.Unmarshal([]byte(blob), into); err != nil {
			log.Printf("⚠️ corrupt analytics blob for %s: %v", identityHash, err)
		}
	}
	decode(p.row.PlatformCounts, &p.platforms)
	decode(p.row.ToneCounts, &p.tones)
	decode(p.row.TemplatesUsed, &p.templates)
	decode(p.row.DailyActivity, &p.daily)
	decode(p.row.History, &p.history)
	return p, nil
}

func (s *Store) saveProfile(p *profile) error {
	encode := func(v interface{}) string {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	p.row.PlatformCounts = encode(p.platforms)
	p.row.ToneCounts = encode(p.tones)
	p.row.TemplatesUsed = encode(p.templates)
	p.row.DailyActivity = encode(p.daily)
	p.row.History = encode(p.history)
	p.row.LastUpdated = s.now()
	return s.db.Save(&p.row).Error
}

// anonymous reports whether an identity is blank. Blank identities all hash
// to the same key, so recording them would pool strangers into one profile;
// they are skipped instead.
func anonymous(identity string) bool {
	return strings.TrimSpace(identity) == ""
}

// RecordGeneration bumps the platform, tone, template, and day counters and
// prepends a history entry. History is capped; old entries are dropped.
// Blank identities are a silent no-op.
func (s *Store) RecordGeneration(identity, platform, tone, topic, templateID string) error {
	if anonymous(identity) {
		return nil
	}
	hash := IdentityHash(identity)
	p, err := s.loadProfile(hash)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	now := s.now()
	p.row.TotalGenerations++
	p.platforms[platform]++
	p.tones[tone]++
	if templateID != "" {
		p.templates[templateID]++
	}
	p.daily[now.Format(dayFormat)]++

	entry := HistoryEntry{Platform: platform, Tone: tone, Topic: util.Clip(topic, topicMaxLen), TemplateID: templateID, CreatedAt: now}
	p.history = append([]HistoryEntry{entry}, p.history...)
	if len(p.history) > historyCap {
		p.history = p.history[:historyCap]
	}

	return s.saveProfile(p)
}

// RecordPublishedArtifact stores a freshly published root post with zeroed
// metrics. An empty external id or a blank identity is a silent no-op.
func (s *Store) RecordPublishedArtifact(identity, externalID, topic, tone string) error {
	if externalID == "" || anonymous(identity) {
		return nil
	}
	artifact := models.PostedArtifact{
		ExternalID:   externalID,
		IdentityHash: IdentityHash(identity),
		Topic:        util.Clip(topic, topicMaxLen),
		Tone:         tone,
		PostedAt:     s.now(),
	}
	return s.db.Save(&artifact).Error
}

// Artifacts lists the identity's published posts, newest first.
func (s *Store) Artifacts(identity string) ([]models.PostedArtifact, error) {
	var artifacts []models.PostedArtifact
	err := s.db.Order("posted_at DESC").
		Find(&artifacts, "identity_hash = ?", IdentityHash(identity)).Error
	return artifacts, err
}

// RefreshMetrics re-reads engagement metrics for every artifact belonging to
// the identity. A failure on one artifact skips it and continues; the counts
// report how the batch went.
func (s *Store) RefreshMetrics(ctx context.Context, identity string, fetch FetchFunc) (refreshed, skipped int, err error) {
	artifacts, err := s.Artifacts(identity)
	if err != nil {
		return 0, 0, fmt.Errorf("list artifacts: %w", err)
	}

	for i := range artifacts {
		a := &artifacts[i]
		m, fetchErr := fetch(ctx, a.ExternalID)
		if fetchErr != nil {
			log.Printf("⚠️ metrics refresh skipped %s: %v", a.ExternalID, fetchErr)
			skipped++
			continue
		}
		a.Likes = m.Likes
		a.Retweets = m.Retweets
		a.Replies = m.Replies
		a.Views = m.Views
		a.Bookmarks = m.Bookmarks
		a.LastFetched = s.now()
		if saveErr := s.db.Save(a).Error; saveErr != nil {
			return refreshed, skipped, fmt.Errorf("save artifact %s: %w", a.ExternalID, saveErr)
		}
		refreshed++
	}
	return refreshed, skipped, nil
}

// Summarize rolls the stored counters up into dashboard numbers. Ties on
// the top counters go to the alphabetically first key.
func (s *Store) Summarize(identity string) (Summary, error) {
	p, err := s.loadProfile(IdentityHash(identity))
	if err != nil {
		return Summary{}, fmt.Errorf("load profile: %w", err)
	}

	summary := Summary{
		TotalGenerations: p.row.TotalGenerations,
		MostUsedPlatform: topKey(p.platforms),
		MostUsedTone:     topKey(p.tones),
		TopTemplate:      topKey(p.templates),
		PlatformCounts:   p.platforms,
		ToneCounts:       p.tones,
		MemberSince:      p.row.UserCreated,
	}

	cutoff := s.now().AddDate(0, 0, -7)
	for day, count := range p.daily {
		if count > 0 {
			summary.DistinctActiveDays++
		}
		if t, err := time.Parse(dayFormat, day); err == nil && !t.Before(cutoff) {
			summary.Last7Days += count
		}
	}
	if summary.DistinctActiveDays > 0 {
		summary.AveragePerActiveDay = float64(summary.TotalGenerations) / float64(summary.DistinctActiveDays)
	}
	return summary, nil
}

// ActivitySeries returns a contiguous per-day series ending today, zeros
// included, for charting.
func (s *Store) ActivitySeries(identity string, days int) ([]DayCount, error) {
	if days <= 0 {
		days = 7
	}
	p, err := s.loadProfile(IdentityHash(identity))
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	series := make([]DayCount, 0, days)
	today := s.now()
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dayFormat)
		series = append(series, DayCount{Date: day, Count: p.daily[day]})
	}
	return series, nil
}

// History returns the capped generation history, newest first.
func (s *Store) History(identity string) ([]HistoryEntry, error) {
	p, err := s.loadProfile(IdentityHash(identity))
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p.history == nil {
		return []HistoryEntry{}, nil
	}
	return p.history, nil
}

// Clear wipes everything stored for the identity. Blank identities have
// nothing stored and clear nothing.
func (s *Store) Clear(identity string) error {
	if anonymous(identity) {
		return nil
	}
	hash := IdentityHash(identity)
	if err := s.db.Delete(&models.AnalyticsProfile{}, "identity_hash = ?", hash).Error; err != nil {
		return err
	}
	return s.db.Delete(&models.PostedArtifact{}, "identity_hash = ?", hash).Error
}

// topKey picks the highest-count key; ties break to the first key in sorted
// order so results are stable across runs.
func topKey(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestCount := "", 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}
