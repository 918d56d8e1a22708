package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// aggSep separates aggregated intervention values inside one column.
const aggSep = "; "

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// querier is the subset of pgxpool.Pool the repository needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TrialRepo reads interventional drug/biological trials from the registry.
// It implements relation.TrialRepository.
type TrialRepo struct {
	db     querier
	schema string
	logger logging.Logger
}

// NewTrialRepo builds the repository on top of an open registry connection.
// The schema name must be a plain lowercase identifier; it is interpolated
// into query text because PostgreSQL placeholders cannot name schemas.
func NewTrialRepo(conn *Connection) (*TrialRepo, error) {
	return newTrialRepo(conn.pool, conn.cfg.Schema, conn.logger)
}

func newTrialRepo(db querier, schema string, log logging.Logger) (*TrialRepo, error) {
	if schema == "" {
		schema = "ctgov"
	}
	if !identPattern.MatchString(schema) {
		return nil, errors.Newf(errors.ErrCodeInvalidParam, "invalid registry schema name %q", schema)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TrialRepo{db: db, schema: schema, logger: log.Named("trial_repo")}, nil
}

func (r *TrialRepo) trialQuery(where string) string {
	return fmt.Sprintf(`
		SELECT s.nct_id,
		       c.name AS condition_name,
		       COALESCE(s.phase, ''),
		       COALESCE(s.overall_status, ''),
		       COALESCE(s.source, ''),
		       COALESCE(s.source_class, ''),
		       COALESCE(s.official_title, ''),
		       COALESCE(STRING_AGG(DISTINCT i.name, '%[2]s'), ''),
		       COALESCE(STRING_AGG(DISTINCT i.intervention_type, '%[2]s'), '')
		FROM %[1]s.studies s
		JOIN %[1]s.conditions c ON c.nct_id = s.nct_id
		JOIN %[1]s.interventions i ON i.nct_id = s.nct_id
		WHERE s.study_type = 'INTERVENTIONAL'
		  AND i.intervention_type IN ('DRUG', 'BIOLOGICAL')
		  AND %[3]s
		GROUP BY s.nct_id, c.name, s.phase, s.overall_status, s.source,
		         s.source_class, s.official_title
		ORDER BY s.nct_id, c.name`, r.schema, aggSep, where)
}

// TrialsForCondition returns trials whose condition name matches, case
// insensitively.  limit <= 0 disables the limit.
func (r *TrialRepo) TrialsForCondition(ctx context.Context, condition string, limit int) ([]relation.TrialRecord, error) {
	q := r.trialQuery("c.downcase_name = LOWER($1)")
	return r.queryTrials(ctx, withLimit(q, limit), condition)
}

// TrialsForDrug returns trials listing the drug among their interventions.
func (r *TrialRepo) TrialsForDrug(ctx context.Context, drugName string, limit int) ([]relation.TrialRecord, error) {
	q := r.trialQuery(`s.nct_id IN (
		SELECT nct_id FROM ` + r.schema + `.interventions
		WHERE LOWER(name) LIKE '%' || LOWER($1) || '%'
	)`)
	return r.queryTrials(ctx, withLimit(q, limit), drugName)
}

// SearchConditions returns distinct registry condition names containing the
// term, for partial indication matching.
func (r *TrialRepo) SearchConditions(ctx context.Context, term string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`
		SELECT DISTINCT name
		FROM %s.conditions
		WHERE downcase_name LIKE '%%' || LOWER($1) || '%%'
		ORDER BY name
		LIMIT %d`, r.schema, limit)

	rows, err := r.db.Query(ctx, q, term)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "condition search failed")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "condition row scan failed")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "condition search failed")
	}
	return names, nil
}

func (r *TrialRepo) queryTrials(ctx context.Context, q string, args ...any) ([]relation.TrialRecord, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "trial query failed")
	}
	defer rows.Close()

	var trials []relation.TrialRecord
	for rows.Next() {
		var t relation.TrialRecord
		var names, types string
		if err := rows.Scan(&t.NCTID, &t.Condition, &t.Phase, &t.OverallStatus,
			&t.Sponsor, &t.SourceClass, &t.OfficialTitle, &names, &types); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "trial row scan failed")
		}
		t.DrugNames = splitAgg(names)
		t.InterventionTypes = splitAgg(types)
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "trial query failed")
	}

	r.logger.Debug("registry query returned", logging.Int("trials", len(trials)))
	return trials, nil
}

func withLimit(q string, limit int) string {
	if limit <= 0 {
		return q
	}
	return fmt.Sprintf("%s LIMIT %d", q, limit)
}

func splitAgg(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, aggSep)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
