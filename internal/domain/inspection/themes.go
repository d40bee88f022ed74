package inspection

import "strings"

type themeRule struct {
	label    string
	keywords []string
}

// Ordered: earlier rules win ties, so theme output is stable across calls.
var themeRules = []themeRule{
	{"Pest control", []string{"rodent", "roach", "pest", "dropping", "mice", "flies", "insect"}},
	{"Temperature control", []string{"temperature", "hot holding", "cold holding", "thermometer", "refrigerat"}},
	{"Handwashing", []string{"handwash", "hand wash", "hand sink", "soap"}},
	{"Cleaning & sanitizing", []string{"sanitiz", "unclean", "soiled", "debris", "grease"}},
	{"Equipment & surfaces", []string{"food contact", "utensil", "equipment", "surface"}},
	{"Food storage & labeling", []string{"storage", "stored", "label", "covered"}},
	{"Plumbing & water", []string{"plumbing", "sewage", "water supply", "leak"}},
	{"Certification & compliance", []string{"certif", "license", "posted", "manager"}},
}

// ExtractThemes inspects the structured violations of an establishment's
// most recent inspections and returns a short ordered list of theme labels,
// capped at max. When no structured violations exist it falls back to
// pattern-matching the raw violation text. Themes are derived on every read
// and never cached.
func ExtractThemes(violations []Violation, rawFallback []string, max int) []string {
	if max <= 0 {
		return nil
	}

	texts := make([]string, 0, len(violations))
	for _, v := range violations {
		texts = append(texts, strings.ToLower(v.Description+" "+v.Comment))
	}
	if len(texts) == 0 {
		for _, raw := range rawFallback {
			texts = append(texts, strings.ToLower(raw))
		}
	}
	if len(texts) == 0 {
		return nil
	}

	themes := make([]string, 0, max)
	for _, rule := range themeRules {
		if matchesAny(texts, rule.keywords) {
			themes = append(themes, rule.label)
			if len(themes) == max {
				break
			}
		}
	}
	return themes
}

func matchesAny(texts []string, keywords []string) bool {
	for _, text := range texts {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}
