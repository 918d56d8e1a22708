package relation

import (
	"context"

	"github.com/bioforge/trialdossier/internal/domain/entity"
)

// TrialRepository reads clinical trial rows from the registry database.
type TrialRepository interface {
	// TrialsForCondition returns interventional drug/biological trials whose
	// condition matches the given name.  limit <= 0 means no limit.
	TrialsForCondition(ctx context.Context, condition string, limit int) ([]TrialRecord, error)

	// TrialsForDrug returns trials that list the drug name among their
	// interventions.
	TrialsForDrug(ctx context.Context, drugName string, limit int) ([]TrialRecord, error)

	// SearchConditions returns registry condition names containing the term,
	// used for partial indication-condition matching.
	SearchConditions(ctx context.Context, term string, limit int) ([]string, error)
}

// AnnotationFetcher reads drug/target annotations from the annotation source.
type AnnotationFetcher interface {
	// DrugRelations returns the full annotation bundle for one drug.
	DrugRelations(ctx context.Context, drug entity.ID) (DrugRelations, error)

	// DrugsForTarget expands a target into the drugs with a mechanism
	// against it.
	DrugsForTarget(ctx context.Context, target entity.ID) ([]DrugRef, error)

	// SearchEntities looks up canonical entities matching a free-text term,
	// used to seed the resolution index for a run.
	SearchEntities(ctx context.Context, term string, kind entity.Kind, limit int) ([]entity.CanonicalEntity, error)
}

// MentionNormalizer splits raw intervention free text into clean mentions.
type MentionNormalizer interface {
	// Normalize extracts individual drug names from one intervention blob.
	Normalize(ctx context.Context, raw string) ([]string, error)
}

// EntityLoader seeds the canonical entity index for a run.
type EntityLoader interface {
	// Load returns the canonical entities for the given candidate terms.
	Load(ctx context.Context, terms []string, kind entity.Kind) ([]entity.CanonicalEntity, error)
}
