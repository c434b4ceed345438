// Package generate turns user-chosen parameters into a single instruction for
// a generative-text API and returns the model's trimmed response.
package generate

import (
	"fmt"
	"strings"

	"github.com/threadforge/threadforge/internal/billing"
)

// Platform identifies the target social surface for generated content.
type Platform string

const (
	PlatformXThread  Platform = "X Thread"
	PlatformLinkedIn Platform = "LinkedIn Post"
	PlatformCarousel Platform = "Instagram Carousel"
)

// Tones supported by the prompt builder.
var Tones = []string{"Casual", "Professional", "Funny", "Inspirational", "Degen"}

// PlatformsForTier lists the platforms an identity may generate for.
// The carousel option only exists on the visual pack.
func PlatformsForTier(tier billing.Tier) []Platform {
	platforms := []Platform{PlatformXThread, PlatformLinkedIn}
	if tier.AllowsCarousel() {
		platforms = append(platforms, PlatformCarousel)
	}
	return platforms
}

// Request carries the user-chosen generation parameters.
type Request struct {
	Platform Platform `json:"platform" validate:"required"`
	Topic    string   `json:"topic" validate:"required"`
	Tone     string   `json:"tone" validate:"required"`
	Length   *int     `json:"length" validate:"omitempty,min=3,max=15"` // tweets or slides; nil for LinkedIn
}

// BuildPrompt assembles the single natural-language instruction sent upstream.
func BuildPrompt(req Request) string {
	topic := strings.TrimSpace(req.Topic)

	switch req.Platform {
	case PlatformLinkedIn:
		return fmt.Sprintf(`Write a high-engagement LinkedIn post about: %q
- Tone: %s
- Strong opening line that stops the scroll
- Short paragraphs, one idea each
- End with a question to drive comments
- 3 relevant hashtags at the end
OUTPUT ONLY THE POST.`, topic, req.Tone)

	case PlatformCarousel:
		length := 7
		if req.Length != nil {
			length = *req.Length
		}
		return fmt.Sprintf(`Write an Instagram carousel about: %q
- %d slides
- Tone: %s
- Each slide formatted as "SLIDE N: <title>" followed by a short caption
- Slide 1: hook, last slide: call to action
OUTPUT ONLY THE SLIDES.`, topic, length, req.Tone)

	default: // X thread
		length := 8
		if req.Length != nil {
			length = *req.Length
		}
		return fmt.Sprintf(`Write a VIRAL X thread about: %q
- %d tweets
- Tone: %s
- Tweet 1: Killer hook
- Middle: 3-5 value bombs
- Last: Strong CTA
- <280 chars/tweet
- Numbered 1/ 2/
OUTPUT ONLY THE THREAD.`, topic, length, req.Tone)
	}
}

// SplitLines breaks generated content into publishable lines, discarding
// blanks. Downstream consumers must not assume the model honored any
// structural contract.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
