// Package billing resolves the entitlement tier for an identity by querying
// a Stripe-style subscription API.
package billing

// Tier is the entitlement level derived from billing state. It is always
// recomputed (or served from a short-lived cache), never stored.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierVisualPack Tier = "visual_pack"
)

// Rank orders tiers by capability: visual_pack ⊇ pro ⊇ free.
func (t Tier) Rank() int {
	switch t {
	case TierVisualPack:
		return 2
	case TierPro:
		return 1
	default:
		return 0
	}
}

// Paid reports whether the tier bypasses the free daily gate.
func (t Tier) Paid() bool {
	return t.Rank() > 0
}

// AllowsCarousel reports whether the Instagram Carousel platform (and the
// image pack behind it) is available on this tier.
func (t Tier) AllowsCarousel() bool {
	return t == TierVisualPack
}
