package generate

import (
	"regexp"
	"strings"
)

// Slide is one unit of an Instagram carousel: a title line and its caption.
type Slide struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

var slideHeader = regexp.MustCompile(`(?i)^SLIDE\s+(\d+)\s*:?\s*(.*)$`)

// ParseSlides splits carousel-shaped model output into slides. The model is
// asked for "SLIDE N: title" headers but may not comply; anything before the
// first header is ignored, and a headerless response yields no slides.
func ParseSlides(text string) []Slide {
	var slides []Slide
	var current *Slide

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := slideHeader.FindStringSubmatch(trimmed); m != nil {
			slides = append(slides, Slide{Title: strings.TrimSpace(m[2])})
			current = &slides[len(slides)-1]
			continue
		}
		if current == nil || trimmed == "" {
			continue
		}
		if current.Caption != "" {
			current.Caption += "\n"
		}
		current.Caption += trimmed
	}
	return slides
}
