//go:build integration

// Integration tests for the registry trial repository.  They require Docker
// and are gated behind the "integration" build tag.
package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bioforge/trialdossier/internal/config"
	"github.com/bioforge/trialdossier/internal/infrastructure/database/postgres"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
)

// startRegistry launches a PostgreSQL 16 container with a minimal AACT-style
// ctgov schema and returns a connected pool.
func startRegistry(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "aact_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/aact_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applyRegistrySchema(t, pool)
	return pool
}

func applyRegistrySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	ddl := `
	CREATE SCHEMA IF NOT EXISTS ctgov;

	CREATE TABLE ctgov.studies (
		nct_id          TEXT PRIMARY KEY,
		study_type      TEXT NOT NULL,
		phase           TEXT,
		overall_status  TEXT,
		source          TEXT,
		source_class    TEXT,
		official_title  TEXT
	);

	CREATE TABLE ctgov.conditions (
		id             SERIAL PRIMARY KEY,
		nct_id         TEXT NOT NULL REFERENCES ctgov.studies(nct_id),
		name           TEXT NOT NULL,
		downcase_name  TEXT NOT NULL
	);

	CREATE TABLE ctgov.interventions (
		id                 SERIAL PRIMARY KEY,
		nct_id             TEXT NOT NULL REFERENCES ctgov.studies(nct_id),
		intervention_type  TEXT NOT NULL,
		name               TEXT NOT NULL
	);`
	_, err := pool.Exec(ctx, ddl)
	require.NoError(t, err)

	seed := `
	INSERT INTO ctgov.studies VALUES
		('NCT00000001', 'INTERVENTIONAL', 'PHASE3', 'COMPLETED', 'Example Pharma', 'INDUSTRY', 'Salbutamol in Asthma'),
		('NCT00000002', 'INTERVENTIONAL', 'PHASE2', 'RECRUITING', 'Example University', 'OTHER', 'Budesonide Plus Salbutamol'),
		('NCT00000003', 'OBSERVATIONAL',  NULL,     'COMPLETED', 'Registry Org', 'OTHER', 'Asthma Registry Study');

	INSERT INTO ctgov.conditions (nct_id, name, downcase_name) VALUES
		('NCT00000001', 'Asthma, Bronchial', 'asthma, bronchial'),
		('NCT00000002', 'Asthma, Bronchial', 'asthma, bronchial'),
		('NCT00000003', 'Asthma, Bronchial', 'asthma, bronchial');

	INSERT INTO ctgov.interventions (nct_id, intervention_type, name) VALUES
		('NCT00000001', 'DRUG', 'Salbutamol'),
		('NCT00000001', 'DRUG', 'Placebo'),
		('NCT00000002', 'DRUG', 'Budesonide'),
		('NCT00000002', 'DRUG', 'Salbutamol'),
		('NCT00000003', 'OTHER', 'Questionnaire');`
	_, err = pool.Exec(ctx, seed)
	require.NoError(t, err)
}

func newRepo(t *testing.T, pool *pgxpool.Pool) *postgres.TrialRepo {
	t.Helper()
	conn := postgres.NewConnectionWithPool(pool, config.DatabaseConfig{Schema: "ctgov"}, logging.NewNopLogger())
	repo, err := postgres.NewTrialRepo(conn)
	require.NoError(t, err)
	return repo
}

func TestTrialRepo_TrialsForCondition(t *testing.T) {
	pool := startRegistry(t)
	repo := newRepo(t, pool)
	ctx := context.Background()

	trials, err := repo.TrialsForCondition(ctx, "Asthma, Bronchial", 0)
	require.NoError(t, err)

	// Observational study is excluded.
	require.Len(t, trials, 2)
	assert.Equal(t, "NCT00000001", trials[0].NCTID)
	assert.Equal(t, "Asthma, Bronchial", trials[0].Condition)
	assert.ElementsMatch(t, []string{"Salbutamol", "Placebo"}, trials[0].DrugNames)
	assert.Equal(t, []string{"DRUG"}, trials[0].InterventionTypes)
	assert.Equal(t, "INDUSTRY", trials[0].SourceClass)

	limited, err := repo.TrialsForCondition(ctx, "asthma, bronchial", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.TrialsForCondition(ctx, "melanoma", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTrialRepo_TrialsForDrug(t *testing.T) {
	pool := startRegistry(t)
	repo := newRepo(t, pool)

	trials, err := repo.TrialsForDrug(context.Background(), "salbutamol", 0)
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, "NCT00000001", trials[0].NCTID)
	assert.Equal(t, "NCT00000002", trials[1].NCTID)
}

func TestTrialRepo_SearchConditions(t *testing.T) {
	pool := startRegistry(t)
	repo := newRepo(t, pool)

	names, err := repo.SearchConditions(context.Background(), "asthma", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Asthma, Bronchial"}, names)
}
