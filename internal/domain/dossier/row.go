// Package dossier turns resolved trial and annotation data into the flat
// output rows of a disease or target dossier.
package dossier

// DiseaseRow is one output row of the disease-centric dossier: one
// (trial, drug, target) combination.
type DiseaseRow struct {
	NCTID             string
	Drug              string
	MoA               string
	Target            string
	Modality          string
	ApprovalStatus    string
	ConditionName     string
	Phase             string
	OverallStatus     string
	Sponsor           string
	SourceClass       string
	OfficialTitle     string
	InterventionTypes string
}

// DiseaseHeader returns the disease dossier column order.
func DiseaseHeader() []string {
	return []string{
		"nct_id",
		"Extracted Drugs",
		"MoA",
		"Target",
		"Modality",
		"Approval Status",
		"condition_name",
		"phase",
		"overall_status",
		"sponsor",
		"source_class",
		"official_title",
		"intervention_types",
	}
}

// Record renders the row in header order.
func (r DiseaseRow) Record() []string {
	return []string{
		r.NCTID,
		r.Drug,
		r.MoA,
		r.Target,
		r.Modality,
		r.ApprovalStatus,
		r.ConditionName,
		r.Phase,
		r.OverallStatus,
		r.Sponsor,
		r.SourceClass,
		r.OfficialTitle,
		r.InterventionTypes,
	}
}

// TargetRow is one output row of the target-centric dossier: one
// (drug, indication, trial) combination.
type TargetRow struct {
	TargetSymbol      string
	DrugName          string
	MoA               string
	Indication        string
	ApprovalStatus    string
	Modality          string
	NCTID             string
	Phase             string
	OverallStatus     string
	Sponsor           string
	SourceClass       string
	OfficialTitle     string
	InterventionTypes string
}

// TargetHeader returns the target dossier column order.
func TargetHeader() []string {
	return []string{
		"Target Symbol",
		"Drug Name",
		"MoA",
		"Indication",
		"Approval Status",
		"Modality",
		"nct_id",
		"phase",
		"overall_status",
		"sponsor",
		"source_class",
		"official_title",
		"intervention_types",
	}
}

// Record renders the row in header order.
func (r TargetRow) Record() []string {
	return []string{
		r.TargetSymbol,
		r.DrugName,
		r.MoA,
		r.Indication,
		r.ApprovalStatus,
		r.Modality,
		r.NCTID,
		r.Phase,
		r.OverallStatus,
		r.Sponsor,
		r.SourceClass,
		r.OfficialTitle,
		r.InterventionTypes,
	}
}
