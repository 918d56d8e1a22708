package llm

import (
	"context"
	"regexp"
	"strings"
)

// RuleNormalizer is the model-free fallback: it splits intervention text on
// common separators and strips dosage and formulation noise.  Cruder than
// the model, but deterministic and dependency-free for smoke runs.
type RuleNormalizer struct{}

// NewRuleNormalizer returns the fallback normalizer.
func NewRuleNormalizer() *RuleNormalizer { return &RuleNormalizer{} }

var (
	splitPattern = regexp.MustCompile(`\s*(?:;|,|\+|/|\band\b|\bplus\b|\bwith\b|\bvs\.?\b|\bversus\b)\s*`)

	// Dosage and formulation tokens dropped from each candidate.
	noisePattern = regexp.MustCompile(`(?i)\b(\d+(\.\d+)?\s*(mg|mcg|µg|ug|g|ml|iu|%)(/(kg|m2|day|ml))?|\d+(\.\d+)?%|oral|tablet|tablets|capsule|capsules|injection|infusion|inhaler|ointment|cream|solution|daily|weekly|monthly|once|twice|dose|doses|mesylate|hydrochloride|sodium|sulfate)\b`)

	nonDrugArms = map[string]bool{
		"placebo":              true,
		"standard of care":     true,
		"best supportive care": true,
		"observation":          true,
		"no intervention":      true,
		"questionnaire":        true,
	}
)

// Normalize splits the blob and cleans each candidate.
func (RuleNormalizer) Normalize(_ context.Context, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, part := range splitPattern.Split(raw, -1) {
		name := strings.TrimSpace(noisePattern.ReplaceAllString(part, " "))
		name = strings.Join(strings.Fields(name), " ")
		name = strings.Trim(name, "()-")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if nonDrugArms[key] || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names, nil
}
