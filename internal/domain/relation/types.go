// Package relation defines the cross-source tuples that link resolved
// entities: trial records pulled from the registry, and per-drug annotation
// bundles pulled from the annotation source.  The dossier aggregator joins
// these into output rows.
package relation

import (
	"strings"

	"github.com/bioforge/trialdossier/internal/domain/entity"
)

// TrialRecord is one clinical trial row as extracted from the registry,
// already filtered to interventional drug/biological studies.
type TrialRecord struct {
	NCTID             string
	Condition         string
	Phase             string
	OverallStatus     string
	Sponsor           string
	SourceClass       string
	OfficialTitle     string
	DrugNames         []string
	InterventionTypes []string
}

// InterventionText joins the trial's raw intervention names into the single
// free-text blob that the normalizer receives.
func (t TrialRecord) InterventionText() string {
	return strings.Join(t.DrugNames, "; ")
}

// TargetLink is one drug→target mechanism edge.
type TargetLink struct {
	TargetID   entity.ID
	GeneSymbol string
	TargetName string
	Mechanism  string
}

// IndicationLink is one drug→indication edge with the maximum development
// phase the drug reached for that indication (4 means approved).
type IndicationLink struct {
	IndicationID entity.ID
	Name         string
	MeshID       string
	MaxPhase     int
}

// Approved reports whether the drug reached approval for this indication.
func (l IndicationLink) Approved() bool { return l.MaxPhase == 4 }

// DrugRelations bundles every annotation the aggregator needs for one
// resolved drug.
type DrugRelations struct {
	Drug          entity.ID
	Name          string
	Modality      string
	Targets       []TargetLink
	Indications   []IndicationLink
	FirstApproval int
}

// DrugRef is a lightweight drug handle returned by target→drug expansion.
type DrugRef struct {
	ID   entity.ID
	Name string
}
