package chembl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioforge/trialdossier/internal/config"
	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ChEMBLConfig{
		BaseURL:       srv.URL,
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		RatePerSecond: 1000,
		PageSize:      100,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// annotationMux serves a small fixture universe: imatinib with two mechanism
// targets and two indications.
func annotationMux(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/molecule.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("molecule_chembl_id") == "CHEMBL941",
			q.Get("molecule_chembl_id__in") == "CHEMBL941",
			q.Get("pref_name__iexact") == "imatinib",
			q.Get("molecule_synonyms__molecule_synonym__iexact") == "gleevec":
			writeJSON(t, w, moleculePage{
				Molecules: []molecule{{
					ChemblID:      "CHEMBL941",
					PrefName:      "IMATINIB",
					MoleculeType:  "Small molecule",
					FirstApproval: 2001,
					Synonyms: []moleculeSynonym{
						{Synonym: "Gleevec", SynType: "TRADE_NAME"},
						{Synonym: "STI-571", SynType: "RESEARCH_CODE"},
						{Synonym: "gleevec", SynType: "OTHER"},
					},
				}},
				PageMeta: pageMeta{TotalCount: 1},
			})
		default:
			writeJSON(t, w, moleculePage{PageMeta: pageMeta{TotalCount: 0}})
		}
	})
	mux.HandleFunc("/mechanism.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("molecule_chembl_id") == "CHEMBL941" || q.Get("target_chembl_id") == "CHEMBL1862" {
			writeJSON(t, w, mechanismPage{
				Mechanisms: []mechanism{
					{MoleculeChemblID: "CHEMBL941", TargetChemblID: "CHEMBL1862", MechanismOfAction: "Tyrosine-protein kinase ABL inhibitor"},
					{MoleculeChemblID: "CHEMBL941", TargetChemblID: "CHEMBL1936", MechanismOfAction: "Stem cell growth factor receptor inhibitor"},
				},
				PageMeta: pageMeta{TotalCount: 2},
			})
			return
		}
		writeJSON(t, w, mechanismPage{PageMeta: pageMeta{TotalCount: 0}})
	})
	mux.HandleFunc("/target.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		targets := map[string]target{
			"CHEMBL1862": {
				ChemblID: "CHEMBL1862", PrefName: "Tyrosine-protein kinase ABL",
				Components: []targetComponent{{Synonyms: []componentSynonym{
					{Synonym: "ABL1", SynType: "GENE_SYMBOL"},
				}}},
			},
			"CHEMBL1936": {
				ChemblID: "CHEMBL1936", PrefName: "Stem cell growth factor receptor",
				Components: []targetComponent{{Synonyms: []componentSynonym{
					{Synonym: "KIT", SynType: "GENE_SYMBOL"},
				}}},
			},
		}
		if tgt, ok := targets[q.Get("target_chembl_id")]; ok {
			writeJSON(t, w, targetPage{Targets: []target{tgt}, PageMeta: pageMeta{TotalCount: 1}})
			return
		}
		if q.Get("target_components__target_component_synonyms__component_synonym__iexact") == "ABL1" {
			writeJSON(t, w, targetPage{Targets: []target{targets["CHEMBL1862"]}, PageMeta: pageMeta{TotalCount: 1}})
			return
		}
		writeJSON(t, w, targetPage{PageMeta: pageMeta{TotalCount: 0}})
	})
	mux.HandleFunc("/drug_indication.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("molecule_chembl_id") == "CHEMBL941" || q.Get("mesh_heading__icontains") == "leukemia" {
			writeJSON(t, w, indicationPage{
				Indications: []drugIndication{
					{MeshHeading: "Leukemia, Myelogenous, Chronic, BCR-ABL Positive", MeshID: "D015464", MaxPhaseForInd: 4},
					{MeshHeading: "Mastocytosis, Systemic", MeshID: "D034721", MaxPhaseForInd: 3},
				},
				PageMeta: pageMeta{TotalCount: 2},
			})
			return
		}
		writeJSON(t, w, indicationPage{PageMeta: pageMeta{TotalCount: 0}})
	})
	return mux
}

func TestClient_DrugRelations(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	rel, err := client.DrugRelations(context.Background(), "CHEMBL941")
	require.NoError(t, err)

	assert.Equal(t, entity.ID("CHEMBL941"), rel.Drug)
	assert.Equal(t, "IMATINIB", rel.Name)
	assert.Equal(t, "Small molecule", rel.Modality)
	assert.Equal(t, 2001, rel.FirstApproval)

	require.Len(t, rel.Targets, 2)
	assert.Equal(t, "ABL1", rel.Targets[0].GeneSymbol)
	assert.Equal(t, "Tyrosine-protein kinase ABL inhibitor", rel.Targets[0].Mechanism)
	assert.Equal(t, "KIT", rel.Targets[1].GeneSymbol)

	require.Len(t, rel.Indications, 2)
	assert.Equal(t, "D015464", rel.Indications[0].MeshID)
	assert.Equal(t, 4, rel.Indications[0].MaxPhase)
	assert.True(t, rel.Indications[0].Approved())
	assert.False(t, rel.Indications[1].Approved())
}

func TestClient_DrugRelations_UnknownMolecule(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	_, err := client.DrugRelations(context.Background(), "CHEMBL0")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestClient_DrugsForTarget(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	refs, err := client.DrugsForTarget(context.Background(), "CHEMBL1862")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, entity.ID("CHEMBL941"), refs[0].ID)
	assert.Equal(t, "IMATINIB", refs[0].Name)
}

func TestClient_TargetBySymbol(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	ent, err := client.TargetBySymbol(context.Background(), "ABL1")
	require.NoError(t, err)
	assert.Equal(t, entity.ID("CHEMBL1862"), ent.ID)
	assert.Equal(t, "ABL1", ent.PreferredName)
	assert.Contains(t, ent.Synonyms, "Tyrosine-protein kinase ABL")

	_, err = client.TargetBySymbol(context.Background(), "NOPE1")
	assert.True(t, errors.IsNotFound(err))
}

func TestClient_TargetByID(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	ent, err := client.TargetByID(context.Background(), "CHEMBL1936")
	require.NoError(t, err)
	assert.Equal(t, entity.ID("CHEMBL1936"), ent.ID)
	assert.Equal(t, "KIT", ent.PreferredName)

	_, err = client.TargetByID(context.Background(), "CHEMBL0")
	assert.True(t, errors.IsNotFound(err))
}

func TestClient_SearchEntities_DrugSynonymFallback(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	// Preferred-name search misses, synonym search hits.
	ents, err := client.SearchEntities(context.Background(), "gleevec", entity.KindDrug, 5)
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, entity.ID("CHEMBL941"), ents[0].ID)
	assert.Equal(t, "IMATINIB", ents[0].PreferredName)
	// Case-duplicate synonyms collapse.
	assert.Equal(t, []string{"Gleevec", "STI-571"}, ents[0].Synonyms)
}

func TestClient_SearchEntities_Indication(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	ents, err := client.SearchEntities(context.Background(), "leukemia", entity.KindIndication, 10)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	assert.Equal(t, entity.ID("D015464"), ents[0].ID)
	assert.Equal(t, entity.KindIndication, ents[0].Kind)
}

func TestClient_SearchEntities_UnknownKind(t *testing.T) {
	client := newTestClient(t, annotationMux(t))

	_, err := client.SearchEntities(context.Background(), "x", entity.Kind("protein"), 5)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownEntityKind))
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/molecule.json", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, moleculePage{
			Molecules: []molecule{{ChemblID: "CHEMBL941", PrefName: "IMATINIB"}},
			PageMeta:  pageMeta{TotalCount: 1},
		})
	})
	client := newTestClient(t, mux)

	ents, err := client.SearchEntities(context.Background(), "imatinib", entity.KindDrug, 5)
	require.NoError(t, err)
	assert.Len(t, ents, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RateLimitedAfterRetries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/molecule.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client := newTestClient(t, mux)

	_, err := client.SearchEntities(context.Background(), "imatinib", entity.KindDrug, 5)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceRateLimited))
	assert.True(t, errors.IsTransient(err))
}

func TestClient_Paging(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/mechanism.json", func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		switch offset {
		case "0":
			writeJSON(t, w, mechanismPage{
				Mechanisms: []mechanism{{MoleculeChemblID: "CHEMBL1", TargetChemblID: "CHEMBL_T1"}},
				PageMeta:   pageMeta{TotalCount: 2},
			})
		default:
			writeJSON(t, w, mechanismPage{
				Mechanisms: []mechanism{{MoleculeChemblID: "CHEMBL2", TargetChemblID: "CHEMBL_T1"}},
				PageMeta:   pageMeta{TotalCount: 2},
			})
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ChEMBLConfig{
		BaseURL:       srv.URL,
		RatePerSecond: 1000,
		PageSize:      1,
	}, logging.NewNopLogger())
	require.NoError(t, err)

	mechs, err := client.mechanisms(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, mechs, 2)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(config.ChEMBLConfig{RatePerSecond: 1}, logging.NewNopLogger())
	assert.Error(t, err)

	_, err = NewClient(config.ChEMBLConfig{BaseURL: "http://x"}, logging.NewNopLogger())
	assert.Error(t, err)
}
