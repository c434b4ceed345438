// Package templates holds the static content template catalog and the
// placeholder filler. Templates are tier-gated: free entries are visible to
// everyone, pro entries require a paid tier.
package templates

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/threadforge/threadforge/internal/billing"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var catalogYAML []byte

// Template is one pre-written content skeleton with named placeholders.
type Template struct {
	ID           string            `yaml:"id" json:"id"`
	Title        string            `yaml:"title" json:"title"`
	Category     string            `yaml:"category" json:"category"`
	Platform     string            `yaml:"platform" json:"platform"`
	Tier         string            `yaml:"tier" json:"tier"` // "free" or "pro"
	Body         string            `yaml:"body" json:"body"`
	Placeholders map[string]string `yaml:"placeholders" json:"placeholders"`
	Example      string            `yaml:"example" json:"example"`
}

type fileCatalog struct {
	Templates []Template `yaml:"templates"`
}

var (
	stateMu     sync.RWMutex
	initialized bool
	byID        map[string]Template
	ordered     []string
)

func ensureInitialized() {
	stateMu.RLock()
	ok := initialized
	stateMu.RUnlock()
	if ok {
		return
	}
	_ = loadEmbedded()
}

func loadEmbedded() error {
	var cfg fileCatalog
	if err := yaml.Unmarshal(catalogYAML, &cfg); err != nil {
		return fmt.Errorf("failed to parse embedded template catalog: %w", err)
	}

	stateMu.Lock()
	defer stateMu.Unlock()

	byID = make(map[string]Template, len(cfg.Templates))
	ordered = ordered[:0]
	for _, t := range cfg.Templates {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			continue
		}
		t.ID = id
		byID[id] = t
		ordered = append(ordered, id)
	}
	initialized = true
	return nil
}

// All returns every template in catalog order.
func All() []Template {
	ensureInitialized()

	stateMu.RLock()
	defer stateMu.RUnlock()

	result := make([]Template, 0, len(ordered))
	for _, id := range ordered {
		result = append(result, byID[id])
	}
	return result
}

// ForTier returns the templates visible to a tier: everything for paid
// tiers, free entries only otherwise.
func ForTier(tier billing.Tier) []Template {
	all := All()
	if tier.Paid() {
		return all
	}
	visible := make([]Template, 0, len(all))
	for _, t := range all {
		if t.Tier == "free" {
			visible = append(visible, t)
		}
	}
	return visible
}

// ByID looks up one template.
func ByID(id string) (Template, bool) {
	ensureInitialized()

	stateMu.RLock()
	defer stateMu.RUnlock()

	t, ok := byID[strings.TrimSpace(id)]
	return t, ok
}

// Categories returns the distinct categories, sorted.
func Categories() []string {
	seen := make(map[string]struct{})
	for _, t := range All() {
		seen[t.Category] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// ByPlatform filters templates to one platform.
func ByPlatform(platform string) []Template {
	var result []Template
	for _, t := range All() {
		if t.Platform == platform {
			result = append(result, t)
		}
	}
	return result
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Fill substitutes named {placeholder} tokens with the supplied values.
// Plain find-replace: no escaping, no nesting.
func Fill(body string, values map[string]string) string {
	filled := body
	for key, value := range values {
		filled = strings.ReplaceAll(filled, "{"+key+"}", value)
	}
	return filled
}

// RemainingPlaceholders lists {tokens} still present after a fill, in order
// of first appearance.
func RemainingPlaceholders(s string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(s, -1)
	seen := make(map[string]struct{}, len(matches))
	var names []string
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}
