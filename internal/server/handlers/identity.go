package handlers

import (
	"net/http"

	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/generate"
	"github.com/threadforge/threadforge/internal/quota"
	"github.com/threadforge/threadforge/internal/session"
)

type identityRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type accountView struct {
	Email          string              `json:"email"`
	Tier           billing.Tier        `json:"tier"`
	Platforms      []generate.Platform `json:"platforms"`
	RemainingToday int                 `json:"remaining_today"` // -1 means unlimited
	SocialState    string              `json:"social_state"`
	SocialUsername string              `json:"social_username,omitempty"`
}

// SetIdentityHandler attaches (or clears) the billing email on the session
// and returns the resolved account view.
func SetIdentityHandler(sm *session.Manager, billingClient *billing.Client, gate *quota.Gate, freeDailyLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		var req identityRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeFault(w, err)
			return
		}
		ctx.SetIdentity(req.Email)

		writeJSON(w, http.StatusOK, buildAccountView(r, ctx, billingClient, gate, freeDailyLimit))
	}
}

// MeHandler reports the session's current entitlements and quota.
func MeHandler(sm *session.Manager, billingClient *billing.Client, gate *quota.Gate, freeDailyLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, buildAccountView(r, ctx, billingClient, gate, freeDailyLimit))
	}
}

func buildAccountView(r *http.Request, ctx *session.Context, billingClient *billing.Client, gate *quota.Gate, freeDailyLimit int) accountView {
	tier := billingClient.ResolveTier(r.Context(), ctx.Identity())

	remaining := -1
	if !tier.Paid() {
		if left, err := gate.Remaining(ctx.CounterKey(), freeDailyLimit); err == nil {
			remaining = left
		}
	}

	view := accountView{
		Email:          ctx.Identity(),
		Tier:           tier,
		Platforms:      generate.PlatformsForTier(tier),
		RemainingToday: remaining,
		SocialState:    string(ctx.Connector.State()),
	}
	if cred, ok := ctx.Connector.Credential(); ok {
		view.SocialUsername = cred.Username
	}
	return view
}
