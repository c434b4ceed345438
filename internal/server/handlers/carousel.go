package handlers

import (
	"log"
	"net/http"

	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/generate"
	"github.com/threadforge/threadforge/internal/imagegen"
	"github.com/threadforge/threadforge/internal/quota"
	"github.com/threadforge/threadforge/internal/session"
)

type carouselRequest struct {
	Topic  string `json:"topic" validate:"required"`
	Tone   string `json:"tone" validate:"required"`
	Length *int   `json:"length" validate:"omitempty,min=3,max=15"`
	Render bool   `json:"render"` // also produce slide artwork
}

type carouselSlide struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	Image   string `json:"image,omitempty"` // base64 PNG
}

type carouselResponse struct {
	Slides    []carouselSlide `json:"slides"`
	Remaining int             `json:"remaining"`
}

// CarouselHandler generates an Instagram carousel with optional artwork.
// Visual-pack only, metered by the monthly carousel quota.
func CarouselHandler(sm *session.Manager, billingClient *billing.Client, gate *quota.Gate, gen *generate.Client, images *imagegen.Client, store *analytics.Store, monthlyLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := sm.Load(w, r)
		if err != nil {
			writeFault(w, err)
			return
		}

		var req carouselRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeFault(w, err)
			return
		}

		tier := billingClient.ResolveTier(r.Context(), ctx.Identity())
		if !tier.AllowsCarousel() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "tier_required", Detail: "carousels require the visual pack"})
			return
		}

		decision, err := gate.GateMonthly(ctx.CounterKey(), quota.ResourceCarousel, monthlyLimit)
		if err != nil {
			writeFault(w, err)
			return
		}
		if !decision.Allowed {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: decision.Reason})
			return
		}

		prompt := generate.BuildPrompt(generate.Request{
			Platform: generate.PlatformCarousel,
			Topic:    req.Topic,
			Tone:     req.Tone,
			Length:   req.Length,
		})
		content, err := gen.Generate(r.Context(), prompt)
		if err != nil {
			writeFault(w, err)
			return
		}

		slides := make([]carouselSlide, 0, 8)
		for _, s := range generate.ParseSlides(content) {
			slide := carouselSlide{Title: s.Title, Caption: s.Caption}
			if req.Render {
				rendered, renderErr := images.Render(r.Context(), imagegen.Request{
					Prompt: "Instagram carousel slide, bold typography background: " + s.Title,
				})
				if renderErr != nil {
					// Text without artwork still has value; keep going.
					log.Printf("⚠️ Slide render failed: %v", renderErr)
				} else if len(rendered) > 0 {
					slide.Image = rendered[0]
				}
			}
			slides = append(slides, slide)
		}

		if err := store.RecordGeneration(ctx.Identity(), string(generate.PlatformCarousel), req.Tone, req.Topic, ""); err != nil {
			log.Printf("⚠️ Failed to record generation: %v", err)
		}

		writeJSON(w, http.StatusOK, carouselResponse{Slides: slides, Remaining: decision.Remaining})
	}
}
