package handlers

import (
	"log"
	"net/http"

	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/generate"
	"github.com/threadforge/threadforge/internal/quota"
	"github.com/threadforge/threadforge/internal/session"
)

type generateRequest struct {
	generate.Request
	TemplateID string `json:"template_id"`
}

type generateResponse struct {
	Content   string       `json:"content"`
	Lines     []string     `json:"lines"`
	Tier      billing.Tier `json:"tier"`
	Remaining int          `json:"remaining"` // -1 means unlimited
}

// GenerateHandler runs the core pipeline: resolve tier, gate the free
// quota, call the text API, and record the generation.
func GenerateHandler(sm *session.Manager, billingClient *billing.Client, gate *quota.Gate, gen *generate.Client, store *analytics.Store, freeDailyLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		var req generateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeFault(w, err)
			return
		}

		tier := billingClient.ResolveTier(r.Context(), ctx.Identity())
		if !platformAllowed(tier, req.Platform) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "tier_required", Detail: "platform requires a higher tier"})
			return
		}

		decision, err := gate.GateDaily(ctx.CounterKey(), tier, freeDailyLimit)
		if err != nil {
			writeFault(w, err)
			return
		}
		if !decision.Allowed {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: decision.Reason})
			return
		}

		content, err := gen.Generate(r.Context(), generate.BuildPrompt(req.Request))
		if err != nil {
			writeFault(w, err)
			return
		}

		if err := store.RecordGeneration(ctx.Identity(), string(req.Platform), req.Tone, req.Topic, req.TemplateID); err != nil {
			log.Printf("⚠️ Failed to record generation: %v", err)
		}

		writeJSON(w, http.StatusOK, generateResponse{
			Content:   content,
			Lines:     generate.SplitLines(content),
			Tier:      tier,
			Remaining: decision.Remaining,
		})
	}
}

func platformAllowed(tier billing.Tier, platform generate.Platform) bool {
	for _, p := range generate.PlatformsForTier(tier) {
		if p == platform {
			return true
		}
	}
	return false
}
