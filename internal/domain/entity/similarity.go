package entity

import (
	"github.com/bioforge/trialdossier/pkg/errors"
)

// Calculator scores the similarity of two strings in [0,1].  Implementations
// must be pure functions of their inputs so that resolution stays
// deterministic for a fixed index.
type Calculator interface {
	Score(a, b string) float64
	Name() string
}

// TokenOverlapCalculator measures the Jaccard index of the token sets of the
// two strings.  Word order and punctuation are ignored, which makes it the
// workhorse for indication-condition matching ("Asthma, Bronchial" vs
// "bronchial asthma" scores 1.0).
type TokenOverlapCalculator struct{}

// Score computes |A ∩ B| / |A ∪ B| over token sets.
func (TokenOverlapCalculator) Score(a, b string) float64 {
	sa := TokenSet(a)
	sb := TokenSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func (TokenOverlapCalculator) Name() string { return "token_overlap" }

// LevenshteinCalculator measures 1 - editDistance/maxLen over the normalized
// forms of the two strings.  Catches near-spellings that token overlap
// misses ("salbutamol" vs "salbutamole").
type LevenshteinCalculator struct{}

// Score computes the normalized edit-distance similarity.
func (LevenshteinCalculator) Score(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == nb {
		return 1
	}
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(editDistance(na, nb))/float64(maxLen)
}

func (LevenshteinCalculator) Name() string { return "levenshtein" }

// editDistance computes the Levenshtein distance with a two-row table.
func editDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// CompositeCalculator scores a pair with every component calculator and
// keeps the maximum.  Token overlap carries reordered multi-word names
// ("Asthma, Bronchial" vs "bronchial asthma") while edit distance carries
// single-token near-spellings; either alone under-scores the other case.
type CompositeCalculator struct {
	parts []Calculator
}

// NewCompositeCalculator builds a max-of-components scorer.
func NewCompositeCalculator(parts ...Calculator) (*CompositeCalculator, error) {
	if len(parts) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "composite calculator requires at least one component")
	}
	return &CompositeCalculator{parts: parts}, nil
}

// DefaultCalculator returns the standard resolution scorer: the maximum of
// token-overlap and normalized edit-distance similarity.
func DefaultCalculator() Calculator {
	return &CompositeCalculator{parts: []Calculator{TokenOverlapCalculator{}, LevenshteinCalculator{}}}
}

// Score returns the best score across all component calculators.
func (c *CompositeCalculator) Score(a, b string) float64 {
	best := 0.0
	for _, p := range c.parts {
		if s := p.Score(a, b); s > best {
			best = s
		}
	}
	return best
}

func (c *CompositeCalculator) Name() string { return "composite" }
