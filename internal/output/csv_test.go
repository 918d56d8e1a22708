package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioforge/trialdossier/internal/domain/dossier"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "asthma_bronchial", slugify("Asthma, Bronchial"))
	assert.Equal(t, "tubb4b", slugify("TUBB4B"))
	assert.Equal(t, "dossier", slugify("---"))
}

func TestWriter_WriteDiseaseDossier(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, logging.NewNopLogger())
	require.NoError(t, err)

	rows := []dossier.DiseaseRow{
		{NCTID: "NCT00000001", Drug: "Imatinib", MoA: "ABL1: inhibitor", Target: "ABL1", ConditionName: "Asthma"},
		{NCTID: "NCT00000002", Drug: "Salbutamol", ConditionName: "Asthma"},
	}
	path, err := w.WriteDiseaseDossier("Asthma, Bronchial", rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "disease_asthma_bronchial.csv"), path)

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, dossier.DiseaseHeader(), records[0])
	assert.Equal(t, "NCT00000001", records[1][0])
	assert.Equal(t, "Imatinib", records[1][1])
	assert.Equal(t, "ABL1: inhibitor", records[1][2])
	assert.Equal(t, "Salbutamol", records[2][1])
}

func TestWriter_WriteTargetDossier(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, logging.NewNopLogger())
	require.NoError(t, err)

	rows := []dossier.TargetRow{
		{TargetSymbol: "ABL1", DrugName: "Imatinib", Indication: "Chronic Myeloid Leukemia", NCTID: "NCT00000003"},
	}
	path, err := w.WriteTargetDossier("ABL1", rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "target_abl1.csv"), path)

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, dossier.TargetHeader(), records[0])
	assert.Equal(t, "ABL1", records[1][0])
}

func TestWriter_EmptyRowsStillWritesHeader(t *testing.T) {
	w, err := NewWriter(t.TempDir(), logging.NewNopLogger())
	require.NoError(t, err)

	path, err := w.WriteDiseaseDossier("rare disease", nil)
	require.NoError(t, err)

	records := readCSV(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, dossier.DiseaseHeader(), records[0])
}

func TestNewWriter_RequiresDir(t *testing.T) {
	_, err := NewWriter("", nil)
	assert.Error(t, err)
}
