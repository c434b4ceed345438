// Package quota gates costly operations behind per-identity usage counters.
//
// Counters are keyed by (identity, resource, period); a day or month rollover
// addresses a fresh row, which is how a counter "resets". The check and the
// increment are one conditional UPDATE, so two processes sharing the database
// cannot push a counter past its ceiling.
package quota

import (
	"fmt"
	"time"

	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// ResourceGeneration is the daily free-tier generation allowance.
	ResourceGeneration = "generation"
	// ResourceCarousel is the monthly visual-pack carousel allowance.
	ResourceCarousel = "carousel"
)

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed   bool
	Reason    string
	Remaining int // post-increment remaining quota; -1 when unlimited
}

// Gate mediates access to limited resources.
type Gate struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGate creates a quota gate over the given database.
func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db, now: time.Now}
}

// GateDaily checks and consumes one unit of the daily generation allowance.
// Paid tiers pass through without touching any counter.
func (g *Gate) GateDaily(identityKey string, tier billing.Tier, limit int) (Decision, error) {
	if tier.Paid() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}
	period := g.now().Format("2006-01-02")
	return g.gate(identityKey, ResourceGeneration, period, limit)
}

// GateMonthly checks and consumes one unit of a monthly allowance, keyed by
// (year, month). Used for the visual-pack carousel quota.
func (g *Gate) GateMonthly(identityKey, resource string, limit int) (Decision, error) {
	period := g.now().Format("2006-01")
	return g.gate(identityKey, resource, period, limit)
}

// Remaining reports the unconsumed daily allowance without mutating anything.
func (g *Gate) Remaining(identityKey string, limit int) (int, error) {
	period := g.now().Format("2006-01-02")
	var counter models.UsageCounter
	err := g.db.Where("identity_key = ? AND resource = ? AND period_key = ?",
		identityKey, ResourceGeneration, period).First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		return limit, nil
	}
	if err != nil {
		return 0, err
	}
	remaining := limit - counter.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (g *Gate) gate(identityKey, resource, period string, limit int) (Decision, error) {
	if identityKey == "" {
		return Decision{}, fmt.Errorf("identity key is required")
	}

	// Make sure the row for this period exists before the conditional bump.
	seed := models.UsageCounter{
		IdentityKey: identityKey,
		Resource:    resource,
		PeriodKey:   period,
	}
	if err := g.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return Decision{}, fmt.Errorf("seed usage counter: %w", err)
	}

	// Increment-with-ceiling: the WHERE clause is the gate.
	res := g.db.Model(&models.UsageCounter{}).
		Where("identity_key = ? AND resource = ? AND period_key = ? AND count < ?",
			identityKey, resource, period, limit).
		Update("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return Decision{}, fmt.Errorf("increment usage counter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return Decision{Allowed: false, Reason: "limit_reached"}, nil
	}

	var counter models.UsageCounter
	if err := g.db.Where("identity_key = ? AND resource = ? AND period_key = ?",
		identityKey, resource, period).First(&counter).Error; err != nil {
		return Decision{}, fmt.Errorf("read usage counter: %w", err)
	}
	return Decision{Allowed: true, Remaining: limit - counter.Count}, nil
}
