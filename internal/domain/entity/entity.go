// Package entity provides the canonical entity model and the tiered
// free-text resolution engine for the TrialDossier pipeline.  A canonical
// entity is a stable, identifier-backed record from the annotation database
// (a drug, a molecular target, or an indication); a mention is a free-text
// occurrence of such a name in source data.  The resolver maps mentions to
// entities through exact, synonym, and partial tiers with deterministic
// tie-breaking.
package entity

import (
	"fmt"

	"github.com/bioforge/trialdossier/pkg/errors"
)

// ID is a canonical entity identifier, e.g. a ChEMBL molecule or target ID.
type ID string

func (id ID) String() string { return string(id) }

// Kind classifies a canonical entity or a mention.
type Kind string

const (
	KindDrug       Kind = "drug"
	KindTarget     Kind = "target"
	KindIndication Kind = "indication"
)

// IsValid reports whether the kind is one of the supported values.
func (k Kind) IsValid() bool {
	switch k {
	case KindDrug, KindTarget, KindIndication:
		return true
	default:
		return false
	}
}

// CanonicalEntity is a read-only annotation-database record.  The identifier
// uniquely determines kind and preferred name; synonym sets of distinct
// entities of the same kind may overlap.
type CanonicalEntity struct {
	ID            ID       `json:"id"`
	PreferredName string   `json:"preferred_name"`
	Synonyms      []string `json:"synonyms,omitempty"`
	Kind          Kind     `json:"kind"`
}

// Validate checks the structural invariants of a single entity record.
func (e *CanonicalEntity) Validate() error {
	if e.ID == "" {
		return errors.New(errors.ErrCodeValidation, "canonical entity has empty identifier")
	}
	if e.PreferredName == "" {
		return errors.Newf(errors.ErrCodeValidation, "canonical entity %s has empty preferred name", e.ID)
	}
	if !e.Kind.IsValid() {
		return errors.New(errors.ErrCodeUnknownEntityKind, "unsupported entity kind").
			WithDetail(fmt.Sprintf("id=%s kind=%q", e.ID, e.Kind))
	}
	return nil
}

// Mention is one free-text occurrence of a drug or indication name.
// Immutable once produced; Text holds the cleaned candidate string and Raw
// the source text it came from.
type Mention struct {
	Raw  string
	Text string
	Kind Kind
}

// NewMention builds a mention whose cleaned text equals its raw text.
func NewMention(text string, kind Kind) Mention {
	return Mention{Raw: text, Text: text, Kind: kind}
}

// Tier is the confidence level of a text-to-entity match.
type Tier string

const (
	TierExact   Tier = "exact"
	TierSynonym Tier = "synonym"
	TierPartial Tier = "partial"
)

// Rank orders tiers by confidence, lower is stronger.
func (t Tier) Rank() int {
	switch t {
	case TierExact:
		return 0
	case TierSynonym:
		return 1
	case TierPartial:
		return 2
	default:
		return 3
	}
}

// Resolution is the terminal outcome of resolving one mention: either a
// canonical entity with a tier and score, or unresolved.  Unresolved is not
// an error; it propagates into output rows with empty annotation columns.
type Resolution struct {
	Mention Mention
	Entity  ID
	Tier    Tier
	// Score is a normalized similarity in [0,1]; 1.0 for exact and synonym
	// tiers, the accepted candidate score for partial.
	Score float64
}

// Resolved reports whether the mention was mapped to a canonical entity.
func (r Resolution) Resolved() bool { return r.Entity != "" }

// ResolvedAs constructs a resolved outcome.
func ResolvedAs(m Mention, id ID, tier Tier, score float64) Resolution {
	return Resolution{Mention: m, Entity: id, Tier: tier, Score: score}
}

// Unresolved constructs the unresolved outcome for a mention.
func Unresolved(m Mention) Resolution {
	return Resolution{Mention: m}
}
