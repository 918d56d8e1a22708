// Package chembl implements the annotation source client against the ChEMBL
// REST API: molecule lookups, mechanism and indication expansion, and
// entity search for seeding the resolution index.
package chembl

// pageMeta is the standard ChEMBL pagination envelope.
type pageMeta struct {
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	TotalCount int    `json:"total_count"`
	Next       string `json:"next"`
}

type moleculeSynonym struct {
	Synonym string `json:"molecule_synonym"`
	SynType string `json:"syn_type"`
}

type molecule struct {
	ChemblID      string            `json:"molecule_chembl_id"`
	PrefName      string            `json:"pref_name"`
	MoleculeType  string            `json:"molecule_type"`
	FirstApproval int               `json:"first_approval"`
	Synonyms      []moleculeSynonym `json:"molecule_synonyms"`
}

type moleculePage struct {
	Molecules []molecule `json:"molecules"`
	PageMeta  pageMeta   `json:"page_meta"`
}

type mechanism struct {
	MoleculeChemblID  string `json:"molecule_chembl_id"`
	TargetChemblID    string `json:"target_chembl_id"`
	MechanismOfAction string `json:"mechanism_of_action"`
	ActionType        string `json:"action_type"`
}

type mechanismPage struct {
	Mechanisms []mechanism `json:"mechanisms"`
	PageMeta   pageMeta    `json:"page_meta"`
}

type componentSynonym struct {
	Synonym string `json:"component_synonym"`
	SynType string `json:"syn_type"`
}

type targetComponent struct {
	Synonyms []componentSynonym `json:"target_component_synonyms"`
}

type target struct {
	ChemblID   string            `json:"target_chembl_id"`
	PrefName   string            `json:"pref_name"`
	Components []targetComponent `json:"target_components"`
}

type targetPage struct {
	Targets  []target `json:"targets"`
	PageMeta pageMeta `json:"page_meta"`
}

type drugIndication struct {
	MeshHeading    string `json:"mesh_heading"`
	MeshID         string `json:"mesh_id"`
	EFOTerm        string `json:"efo_term"`
	MaxPhaseForInd int    `json:"max_phase_for_ind"`
}

type indicationPage struct {
	Indications []drugIndication `json:"drug_indications"`
	PageMeta    pageMeta         `json:"page_meta"`
}

// geneSymbol extracts the GENE_SYMBOL component synonym, if any.
func (t target) geneSymbol() string {
	for _, comp := range t.Components {
		for _, syn := range comp.Synonyms {
			if syn.SynType == "GENE_SYMBOL" {
				return syn.Synonym
			}
		}
	}
	return ""
}
