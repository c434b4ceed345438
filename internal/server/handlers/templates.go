package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/session"
	"github.com/threadforge/threadforge/internal/templates"
)

// ListTemplatesHandler returns the catalog visible to the session's tier,
// optionally filtered by platform.
func ListTemplatesHandler(sm *session.Manager, billingClient *billing.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		tier := billingClient.ResolveTier(r.Context(), ctx.Identity())
		visible := templates.ForTier(tier)
		if platform := r.URL.Query().Get("platform"); platform != "" {
			filtered := visible[:0]
			for _, t := range visible {
				if t.Platform == platform {
					filtered = append(filtered, t)
				}
			}
			visible = filtered
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"templates":  visible,
			"categories": templates.Categories(),
			"tier":       tier,
		})
	}
}

type fillRequest struct {
	Values map[string]string `json:"values" validate:"required"`
}

// FillTemplateHandler substitutes placeholder values into one template.
// Pro templates are refused below a paid tier.
func FillTemplateHandler(sm *session.Manager, billingClient *billing.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		tpl, ok := templates.ByID(chi.URLParam(r, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "template_not_found"})
			return
		}

		tier := billingClient.ResolveTier(r.Context(), ctx.Identity())
		if tpl.Tier == "pro" && !tier.Paid() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "tier_required", Detail: "template requires a paid tier"})
			return
		}

		var req fillRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeFault(w, err)
			return
		}

		filled := templates.Fill(tpl.Body, req.Values)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"content": filled,
			"missing": templates.RemainingPlaceholders(filled),
		})
	}
}
