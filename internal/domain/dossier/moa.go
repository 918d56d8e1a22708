package dossier

import (
	"strings"

	"github.com/bioforge/trialdossier/internal/domain/relation"
)

// Mechanism keywords in precedence order.  The first one found in the
// mechanism text becomes the short form; otherwise the last word stands in.
var moaKeywords = []string{
	"inhibitor",
	"agonist",
	"antagonist",
	"modulator",
	"blocker",
	"activator",
}

// ShortMoA condenses a mechanism description into "GENE_SYMBOL: keyword".
// Returns "" when the link carries no usable text.
func ShortMoA(link relation.TargetLink) string {
	symbol := link.GeneSymbol
	if symbol == "" {
		symbol = link.TargetName
	}
	mech := strings.TrimSpace(link.Mechanism)
	if symbol == "" && mech == "" {
		return ""
	}
	if mech == "" {
		return symbol
	}

	lower := strings.ToLower(mech)
	keyword := ""
	for _, kw := range moaKeywords {
		if strings.Contains(lower, kw) {
			keyword = kw
			break
		}
	}
	if keyword == "" {
		words := strings.Fields(lower)
		keyword = words[len(words)-1]
	}
	if symbol == "" {
		return keyword
	}
	return symbol + ": " + keyword
}

// JoinMoA renders the short forms of several target links, comma-joined in
// input order, skipping links that condense to nothing.
func JoinMoA(links []relation.TargetLink) string {
	parts := make([]string, 0, len(links))
	for _, link := range links {
		if s := ShortMoA(link); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
