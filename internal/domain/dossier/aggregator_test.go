package dossier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(entity.DefaultCalculator(), 0.72, logging.NewNopLogger())
	require.NoError(t, err)
	return agg
}

func resolvedDrug(name string, id entity.ID, rel *relation.DrugRelations) ResolvedDrug {
	return ResolvedDrug{
		Resolution: entity.ResolvedAs(entity.NewMention(name, entity.KindDrug), id, entity.TierExact, 1.0),
		Relations:  rel,
	}
}

func unresolvedDrug(name string) ResolvedDrug {
	return ResolvedDrug{Resolution: entity.Unresolved(entity.NewMention(name, entity.KindDrug))}
}

func asthmaTrial(nct string) relation.TrialRecord {
	return relation.TrialRecord{
		NCTID:             nct,
		Condition:         "Asthma, Bronchial",
		Phase:             "PHASE3",
		OverallStatus:     "COMPLETED",
		Sponsor:           "Example Pharma",
		SourceClass:       "INDUSTRY",
		OfficialTitle:     "A Study of Salbutamol in Bronchial Asthma",
		DrugNames:         []string{"Salbutamol"},
		InterventionTypes: []string{"DRUG"},
	}
}

func TestNewAggregator_Validation(t *testing.T) {
	_, err := NewAggregator(nil, 0.5, logging.NewNopLogger())
	assert.Error(t, err)

	_, err = NewAggregator(entity.DefaultCalculator(), 1.5, logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdInvalid))

	agg, err := NewAggregator(entity.DefaultCalculator(), 0.72, nil)
	require.NoError(t, err)
	assert.NotNil(t, agg)
}

// One trial with a two-target drug fans out into one row per target, all
// trial columns repeated.
func TestDiseaseRows_TargetFanOut(t *testing.T) {
	agg := newTestAggregator(t)
	rel := &relation.DrugRelations{
		Drug:     "CHEMBL941",
		Name:     "IMATINIB",
		Modality: "Small molecule",
		Targets: []relation.TargetLink{
			{TargetID: "CHEMBL1862", GeneSymbol: "ABL1", Mechanism: "Tyrosine-protein kinase ABL inhibitor"},
			{TargetID: "CHEMBL1936", GeneSymbol: "KIT", Mechanism: "Stem cell growth factor receptor inhibitor"},
		},
		Indications: []relation.IndicationLink{
			{Name: "Chronic Myeloid Leukemia", MaxPhase: 4},
		},
	}
	trial := relation.TrialRecord{
		NCTID: "NCT00006251", Condition: "Chronic Myeloid Leukemia",
		Phase: "PHASE2", OverallStatus: "COMPLETED",
		InterventionTypes: []string{"DRUG"},
	}

	rows := agg.DiseaseRows([]TrialDrugs{{Trial: trial, Drugs: []ResolvedDrug{resolvedDrug("imatinib", "CHEMBL941", rel)}}})

	require.Len(t, rows, 2)
	assert.Equal(t, "ABL1", rows[0].Target)
	assert.Equal(t, "ABL1: inhibitor", rows[0].MoA)
	assert.Equal(t, "KIT", rows[1].Target)
	for _, row := range rows {
		assert.Equal(t, "NCT00006251", row.NCTID)
		assert.Equal(t, "IMATINIB", row.Drug)
		assert.Equal(t, "Small molecule", row.Modality)
		assert.Equal(t, ApprovalApproved, row.ApprovalStatus)
	}
}

// An unresolved mention still produces a row carrying its cleaned text, with
// every annotation column empty.
func TestDiseaseRows_UnresolvedDrugKept(t *testing.T) {
	agg := newTestAggregator(t)
	trial := asthmaTrial("NCT05000001")

	rows := agg.DiseaseRows([]TrialDrugs{{Trial: trial, Drugs: []ResolvedDrug{unresolvedDrug("XYZ123")}}})

	require.Len(t, rows, 1)
	assert.Equal(t, "XYZ123", rows[0].Drug)
	assert.Empty(t, rows[0].Target)
	assert.Empty(t, rows[0].MoA)
	assert.Empty(t, rows[0].Modality)
	assert.Empty(t, rows[0].ApprovalStatus)
	assert.Equal(t, "NCT05000001", rows[0].NCTID)
	assert.Equal(t, "Asthma, Bronchial", rows[0].ConditionName)
}

// The same drug extracted twice from one trial collapses to a single row.
func TestDiseaseRows_DedupIdempotent(t *testing.T) {
	agg := newTestAggregator(t)
	rel := &relation.DrugRelations{
		Drug: "CHEMBL1451", Name: "SALBUTAMOL", Modality: "Small molecule",
		Targets:     []relation.TargetLink{{GeneSymbol: "ADRB2", Mechanism: "Beta-2 adrenergic receptor agonist"}},
		Indications: []relation.IndicationLink{{Name: "Bronchial Asthma", MaxPhase: 4}},
	}
	trial := asthmaTrial("NCT05000002")
	drugs := []ResolvedDrug{
		resolvedDrug("Salbutamol", "CHEMBL1451", rel),
		resolvedDrug("albuterol", "CHEMBL1451", rel),
	}

	once := agg.DiseaseRows([]TrialDrugs{{Trial: trial, Drugs: drugs}})
	require.Len(t, once, 1)
	assert.Equal(t, "SALBUTAMOL", once[0].Drug)

	twice := agg.DiseaseRows([]TrialDrugs{{Trial: trial, Drugs: drugs}, {Trial: trial, Drugs: drugs}})
	assert.Equal(t, once, twice, "aggregation is idempotent under duplicated input")
}

// "Asthma, Bronchial" from the registry matches the annotation indication
// "Bronchial Asthma" despite word order, and phase 4 renders Approved.
func TestDiseaseRows_ConditionIndicationWordOrder(t *testing.T) {
	agg := newTestAggregator(t)
	rel := &relation.DrugRelations{
		Drug: "CHEMBL1451", Name: "SALBUTAMOL",
		Indications: []relation.IndicationLink{
			{Name: "Chronic Obstructive Pulmonary Disease", MaxPhase: 3},
			{Name: "Bronchial Asthma", MaxPhase: 4},
		},
	}

	rows := agg.DiseaseRows([]TrialDrugs{{Trial: asthmaTrial("NCT05000003"), Drugs: []ResolvedDrug{resolvedDrug("Salbutamol", "CHEMBL1451", rel)}}})

	require.Len(t, rows, 1)
	assert.Equal(t, ApprovalApproved, rows[0].ApprovalStatus)
}

func TestDiseaseRows_ApprovalStatuses(t *testing.T) {
	agg := newTestAggregator(t)
	trial := asthmaTrial("NCT05000004")

	// Indications present but none matching the condition.
	unrelated := &relation.DrugRelations{
		Drug: "CHEMBL1", Name: "DRUG A",
		Indications: []relation.IndicationLink{{Name: "Melanoma", MaxPhase: 2}},
	}
	rows := agg.DiseaseRows([]TrialDrugs{{Trial: trial, Drugs: []ResolvedDrug{resolvedDrug("drug a", "CHEMBL1", unrelated)}}})
	require.Len(t, rows, 1)
	assert.Equal(t, ApprovalNotApproved, rows[0].ApprovalStatus)

	// No indication data at all.
	bare := &relation.DrugRelations{Drug: "CHEMBL2", Name: "DRUG B"}
	rows = agg.DiseaseRows([]TrialDrugs{{Trial: trial, Drugs: []ResolvedDrug{resolvedDrug("drug b", "CHEMBL2", bare)}}})
	require.Len(t, rows, 1)
	assert.Equal(t, ValueNA, rows[0].ApprovalStatus)

	// Matching indication below phase 4.
	inDev := &relation.DrugRelations{
		Drug: "CHEMBL3", Name: "DRUG C",
		Indications: []relation.IndicationLink{{Name: "Asthma, Bronchial", MaxPhase: 2}},
	}
	rows = agg.DiseaseRows([]TrialDrugs{{Trial: trial, Drugs: []ResolvedDrug{resolvedDrug("drug c", "CHEMBL3", inDev)}}})
	require.Len(t, rows, 1)
	assert.Equal(t, ApprovalNotApproved, rows[0].ApprovalStatus)
}

// Ordering is (nct_id, drug, target) ascending with empty values last.
func TestDiseaseRows_Ordering(t *testing.T) {
	agg := newTestAggregator(t)
	relA := &relation.DrugRelations{Drug: "CHEMBL10", Name: "AAA",
		Targets: []relation.TargetLink{{GeneSymbol: "ZZZ"}, {GeneSymbol: "BBB"}}}
	trial1 := relation.TrialRecord{NCTID: "NCT00000002", Condition: "X"}
	trial2 := relation.TrialRecord{NCTID: "NCT00000001", Condition: "X"}

	rows := agg.DiseaseRows([]TrialDrugs{
		{Trial: trial1, Drugs: []ResolvedDrug{resolvedDrug("aaa", "CHEMBL10", relA)}},
		{Trial: trial2, Drugs: []ResolvedDrug{unresolvedDrug("zzz"), resolvedDrug("aaa", "CHEMBL10", relA)}},
	})

	require.Len(t, rows, 5)
	assert.Equal(t, "NCT00000001", rows[0].NCTID)
	assert.Equal(t, "AAA", rows[0].Drug)
	assert.Equal(t, "BBB", rows[0].Target)
	assert.Equal(t, "ZZZ", rows[1].Target)
	assert.Equal(t, "zzz", rows[2].Drug, "unresolved drug sorts by its text")
	assert.Equal(t, "NCT00000002", rows[3].NCTID)
}

func TestTargetRows_Shape(t *testing.T) {
	agg := newTestAggregator(t)
	drug := TargetDrug{
		Relations: relation.DrugRelations{
			Drug: "CHEMBL941", Name: "IMATINIB", Modality: "Small molecule",
			Targets: []relation.TargetLink{
				{GeneSymbol: "ABL1", Mechanism: "Tyrosine-protein kinase ABL inhibitor"},
				{GeneSymbol: "KIT", Mechanism: "Stem cell growth factor receptor inhibitor"},
			},
		},
		Indications: []IndicationTrials{
			{
				Indication: relation.IndicationLink{Name: "Chronic Myeloid Leukemia", MaxPhase: 4},
				Trials: []relation.TrialRecord{
					{NCTID: "NCT00006251", Phase: "PHASE2", OverallStatus: "COMPLETED", InterventionTypes: []string{"DRUG"}},
					{NCTID: "NCT00025217", Phase: "PHASE3", OverallStatus: "COMPLETED", InterventionTypes: []string{"DRUG"}},
				},
			},
			{
				Indication: relation.IndicationLink{Name: "Systemic Mastocytosis", MaxPhase: 3},
			},
		},
	}

	rows := agg.TargetRows("ABL1", []TargetDrug{drug})

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "ABL1", row.TargetSymbol)
		assert.Equal(t, "IMATINIB", row.DrugName)
		assert.Equal(t, "ABL1: inhibitor", row.MoA, "only the queried target's mechanism is rendered")
	}
	assert.Equal(t, "NCT00006251", rows[0].NCTID)
	assert.Equal(t, ApprovalApproved, rows[0].ApprovalStatus)
	// Indication without trials keeps a row with empty trial columns.
	assert.Equal(t, "Systemic Mastocytosis", rows[2].Indication)
	assert.Equal(t, ApprovalNotApproved, rows[2].ApprovalStatus)
	assert.Empty(t, rows[2].NCTID)
}

func TestTargetRows_NoIndicationData(t *testing.T) {
	agg := newTestAggregator(t)
	drug := TargetDrug{
		Relations: relation.DrugRelations{Drug: "CHEMBL99", Name: "PROBE-1"},
	}

	rows := agg.TargetRows("TUBB4B", []TargetDrug{drug})

	require.Len(t, rows, 1)
	assert.Equal(t, ValueNA, rows[0].Indication)
	assert.Equal(t, ValueNA, rows[0].ApprovalStatus)
	assert.Equal(t, ValueNA, rows[0].MoA)
	assert.Equal(t, ValueNA, rows[0].Modality)
	assert.Empty(t, rows[0].NCTID)
}

func TestMatchIndication(t *testing.T) {
	agg := newTestAggregator(t)
	indications := []relation.IndicationLink{
		{Name: "Bronchial Asthma", MaxPhase: 4},
		{Name: "Melanoma", MaxPhase: 2},
	}

	ind, ok := agg.MatchIndication("Asthma, Bronchial", indications)
	require.True(t, ok)
	assert.Equal(t, "Bronchial Asthma", ind.Name)

	_, ok = agg.MatchIndication("Rheumatoid Arthritis", indications)
	assert.False(t, ok)

	_, ok = agg.MatchIndication("   ", indications)
	assert.False(t, ok)
}

func TestJoinUnique(t *testing.T) {
	assert.Equal(t, "BIOLOGICAL, DRUG", joinUnique([]string{"DRUG", "BIOLOGICAL", "DRUG", ""}))
	assert.Equal(t, "", joinUnique(nil))
}
