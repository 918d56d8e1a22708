package dossier

import (
	"sort"

	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

const (
	// ApprovalApproved marks an indication the drug reached phase 4 for.
	ApprovalApproved = "Approved"
	// ApprovalNotApproved marks an indication still in development.
	ApprovalNotApproved = "Not Approved"
	// ValueNA marks annotation data the source does not carry for the drug.
	ValueNA = "NA"
)

// ResolvedDrug pairs one resolution outcome with the annotation bundle
// fetched for it.  Relations stays nil when the mention did not resolve or
// the fetch failed; the row is still emitted with empty annotation columns.
type ResolvedDrug struct {
	Resolution entity.Resolution
	Relations  *relation.DrugRelations
}

// TrialDrugs is one trial together with the drugs extracted from its
// intervention text.
type TrialDrugs struct {
	Trial relation.TrialRecord
	Drugs []ResolvedDrug
}

// IndicationTrials is one drug indication together with the trials matched
// to it during target-shape expansion.
type IndicationTrials struct {
	Indication relation.IndicationLink
	Trials     []relation.TrialRecord
}

// TargetDrug is one drug in a target dossier with its per-indication trials.
type TargetDrug struct {
	Relations   relation.DrugRelations
	Indications []IndicationTrials
}

// Aggregator fans resolved relations out into dossier rows, deduplicates
// them, and fixes the output order.  It holds no per-run state and is safe
// for reuse across runs.
type Aggregator struct {
	calc      entity.Calculator
	threshold float64
	logger    logging.Logger
}

// NewAggregator wires the similarity calculator used for partial
// indication-condition matching.  The threshold must be in [0, 1].
func NewAggregator(calc entity.Calculator, threshold float64, logger logging.Logger) (*Aggregator, error) {
	if calc == nil {
		return nil, errors.New(errors.ErrCodeInvalidParam, "aggregator requires a similarity calculator")
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.Newf(errors.ErrCodeThresholdInvalid, "indication match threshold %v outside [0,1]", threshold)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Aggregator{calc: calc, threshold: threshold, logger: logger.Named("aggregator")}, nil
}

// DiseaseRows builds the disease-shape dossier: one row per
// (trial, drug, target), deduplicated and ordered by (nct_id, drug, target)
// with empty values sorting last.  Unresolved drugs keep their cleaned
// mention text and empty annotation columns so nothing extracted is dropped.
func (a *Aggregator) DiseaseRows(items []TrialDrugs) []DiseaseRow {
	var rows []DiseaseRow
	for _, item := range items {
		trial := item.Trial
		for _, drug := range item.Drugs {
			rows = append(rows, a.diseaseRowsForDrug(trial, drug)...)
		}
	}
	rows = dedupDiseaseRows(rows)
	sortDiseaseRows(rows)
	return rows
}

func (a *Aggregator) diseaseRowsForDrug(trial relation.TrialRecord, drug ResolvedDrug) []DiseaseRow {
	base := DiseaseRow{
		NCTID:             trial.NCTID,
		Drug:              drug.Resolution.Mention.Text,
		ConditionName:     trial.Condition,
		Phase:             trial.Phase,
		OverallStatus:     trial.OverallStatus,
		Sponsor:           trial.Sponsor,
		SourceClass:       trial.SourceClass,
		OfficialTitle:     trial.OfficialTitle,
		InterventionTypes: joinUnique(trial.InterventionTypes),
	}
	rel := drug.Relations
	if rel == nil {
		// Unresolved or annotation fetch failed: cleaned text only.
		return []DiseaseRow{base}
	}

	if rel.Name != "" {
		base.Drug = rel.Name
	}
	base.Modality = rel.Modality
	base.ApprovalStatus = a.approvalForCondition(trial.Condition, rel.Indications)

	if len(rel.Targets) == 0 {
		return []DiseaseRow{base}
	}
	rows := make([]DiseaseRow, 0, len(rel.Targets))
	for _, link := range rel.Targets {
		row := base
		row.Target = targetLabel(link)
		row.MoA = ShortMoA(link)
		rows = append(rows, row)
	}
	return rows
}

// TargetRows builds the target-shape dossier: one row per
// (drug, indication, trial), with the MoA filtered to the queried gene
// symbol.  Drugs without indication data and indications without trials
// still produce rows, with NA / empty placeholders.
func (a *Aggregator) TargetRows(symbol string, drugs []TargetDrug) []TargetRow {
	var rows []TargetRow
	for _, drug := range drugs {
		base := TargetRow{
			TargetSymbol:   symbol,
			DrugName:       drug.Relations.Name,
			MoA:            a.moaForSymbol(symbol, drug.Relations.Targets),
			Modality:       orNA(drug.Relations.Modality),
			Indication:     ValueNA,
			ApprovalStatus: ValueNA,
		}
		if len(drug.Indications) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, ind := range drug.Indications {
			row := base
			row.Indication = ind.Indication.Name
			row.ApprovalStatus = approvalStatus(ind.Indication)
			if len(ind.Trials) == 0 {
				rows = append(rows, row)
				continue
			}
			for _, trial := range ind.Trials {
				tr := row
				tr.NCTID = trial.NCTID
				tr.Phase = trial.Phase
				tr.OverallStatus = trial.OverallStatus
				tr.Sponsor = trial.Sponsor
				tr.SourceClass = trial.SourceClass
				tr.OfficialTitle = trial.OfficialTitle
				tr.InterventionTypes = joinUnique(trial.InterventionTypes)
				rows = append(rows, tr)
			}
		}
	}
	rows = dedupTargetRows(rows)
	sortTargetRows(rows)
	return rows
}

// MatchIndication finds the drug indication matching a trial condition:
// normalized equality first, then similarity at or above the threshold.
func (a *Aggregator) MatchIndication(condition string, indications []relation.IndicationLink) (relation.IndicationLink, bool) {
	norm := entity.Normalize(condition)
	if norm == "" {
		return relation.IndicationLink{}, false
	}
	for _, ind := range indications {
		if entity.Normalize(ind.Name) == norm {
			return ind, true
		}
	}
	best := relation.IndicationLink{}
	bestScore := 0.0
	for _, ind := range indications {
		score := a.calc.Score(condition, ind.Name)
		if score > bestScore {
			best = ind
			bestScore = score
		}
	}
	if bestScore >= a.threshold {
		a.logger.Debug("partial indication match",
			logging.String("condition", condition),
			logging.String("indication", best.Name),
			logging.Float64("score", bestScore),
		)
		return best, true
	}
	return relation.IndicationLink{}, false
}

func (a *Aggregator) approvalForCondition(condition string, indications []relation.IndicationLink) string {
	if len(indications) == 0 {
		return ValueNA
	}
	ind, ok := a.MatchIndication(condition, indications)
	if !ok {
		return ApprovalNotApproved
	}
	return approvalStatus(ind)
}

func (a *Aggregator) moaForSymbol(symbol string, links []relation.TargetLink) string {
	filtered := make([]relation.TargetLink, 0, len(links))
	for _, link := range links {
		if link.GeneSymbol == symbol {
			filtered = append(filtered, link)
		}
	}
	if len(filtered) == 0 {
		return ValueNA
	}
	return JoinMoA(filtered)
}

func approvalStatus(ind relation.IndicationLink) string {
	if ind.Approved() {
		return ApprovalApproved
	}
	return ApprovalNotApproved
}

func targetLabel(link relation.TargetLink) string {
	if link.GeneSymbol != "" {
		return link.GeneSymbol
	}
	return link.TargetName
}

func orNA(s string) string {
	if s == "" {
		return ValueNA
	}
	return s
}

func joinUnique(values []string) string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return join(out)
}

func join(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	}
	s := values[0]
	for _, v := range values[1:] {
		s += ", " + v
	}
	return s
}

func dedupDiseaseRows(rows []DiseaseRow) []DiseaseRow {
	seen := make(map[DiseaseRow]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func dedupTargetRows(rows []TargetRow) []TargetRow {
	seen := make(map[TargetRow]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// lessEmptyLast orders ascending with empty strings after every non-empty
// value, so rows missing a key sort to the end.
func lessEmptyLast(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}

func sortDiseaseRows(rows []DiseaseRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := lessEmptyLast(rows[i].NCTID, rows[j].NCTID); c != 0 {
			return c < 0
		}
		if c := lessEmptyLast(rows[i].Drug, rows[j].Drug); c != 0 {
			return c < 0
		}
		return lessEmptyLast(rows[i].Target, rows[j].Target) < 0
	})
}

func sortTargetRows(rows []TargetRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := lessEmptyLast(rows[i].DrugName, rows[j].DrugName); c != 0 {
			return c < 0
		}
		if c := lessEmptyLast(rows[i].Indication, rows[j].Indication); c != 0 {
			return c < 0
		}
		return lessEmptyLast(rows[i].NCTID, rows[j].NCTID) < 0
	})
}
