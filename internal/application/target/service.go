// Package target runs the target-centric dossier pipeline: a gene symbol or
// target identifier is expanded into the drugs acting on it, their
// indications and approval state, and the registry trials per
// (drug, indication) pair.
package target

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bioforge/trialdossier/internal/domain/dossier"
	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/prometheus"
	"github.com/bioforge/trialdossier/pkg/errors"
)

var chemblIDPattern = regexp.MustCompile(`(?i)^chembl\d+$`)

// TargetSource resolves the run's subject to a canonical target record.
type TargetSource interface {
	TargetBySymbol(ctx context.Context, symbol string) (entity.CanonicalEntity, error)
	TargetByID(ctx context.Context, id entity.ID) (entity.CanonicalEntity, error)
}

// Options holds the run-level tunables of the pipeline.
type Options struct {
	Concurrency      int
	TrialLimit       int
	PartialThreshold float64
}

// Result is the outcome of one target dossier run.
type Result struct {
	Query    string
	Symbol   string
	TargetID entity.ID
	Rows     []dossier.TargetRow
	Drugs    int
}

// Service orchestrates one target dossier run end to end.
type Service struct {
	trials  relation.TrialRepository
	fetcher relation.AnnotationFetcher
	targets TargetSource
	metrics *prometheus.Metrics
	opts    Options
	logger  logging.Logger
}

// NewService wires the pipeline's collaborators.  metrics may be nil.
func NewService(
	trials relation.TrialRepository,
	fetcher relation.AnnotationFetcher,
	targets TargetSource,
	metrics *prometheus.Metrics,
	opts Options,
	log logging.Logger,
) (*Service, error) {
	if trials == nil || fetcher == nil || targets == nil {
		return nil, errors.New(errors.ErrCodeInvalidParam, "target pipeline requires trial, fetcher, and target collaborators")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.PartialThreshold == 0 {
		opts.PartialThreshold = entity.DefaultPartialThreshold
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{
		trials:  trials,
		fetcher: fetcher,
		targets: targets,
		metrics: metrics,
		opts:    opts,
		logger:  log.Named("target"),
	}, nil
}

// Run builds the target dossier for one gene symbol or ChEMBL target ID.
func (s *Service) Run(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "target symbol or identifier is required")
	}
	start := time.Now()

	tgt, err := s.resolveTarget(ctx, query)
	if err != nil {
		return nil, err
	}
	symbol := tgt.PreferredName
	s.logger.Info("resolved target",
		logging.String("query", query),
		logging.String("target", tgt.ID.String()),
		logging.String("symbol", symbol),
	)

	refs, err := s.fetcher.DrugsForTarget(ctx, tgt.ID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		s.logger.Warn("no drugs recorded against target", logging.String("target", tgt.ID.String()))
		return &Result{Query: query, Symbol: symbol, TargetID: tgt.ID}, nil
	}

	agg, err := dossier.NewAggregator(entity.DefaultCalculator(), s.opts.PartialThreshold, s.logger)
	if err != nil {
		return nil, err
	}

	drugs, err := s.expandDrugs(ctx, agg, refs)
	if err != nil {
		return nil, err
	}

	rows := agg.TargetRows(symbol, drugs)

	s.metrics.RecordRows("target", len(rows))
	s.metrics.ObserveRunDuration("target", time.Since(start).Seconds())
	s.logger.Info("target dossier assembled",
		logging.String("symbol", symbol),
		logging.Int("drugs", len(refs)),
		logging.Int("rows", len(rows)),
		logging.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		Query:    query,
		Symbol:   symbol,
		TargetID: tgt.ID,
		Rows:     rows,
		Drugs:    len(refs),
	}, nil
}

func (s *Service) resolveTarget(ctx context.Context, query string) (entity.CanonicalEntity, error) {
	if chemblIDPattern.MatchString(query) {
		return s.targets.TargetByID(ctx, entity.ID(strings.ToUpper(query)))
	}
	return s.targets.TargetBySymbol(ctx, query)
}

// expandDrugs fetches every drug's annotation bundle and its per-indication
// trials with bounded concurrency.  A failed bundle degrades to the bare drug
// reference; losing every bundle aborts the run.
func (s *Service) expandDrugs(ctx context.Context, agg *dossier.Aggregator, refs []relation.DrugRef) ([]dossier.TargetDrug, error) {
	drugs := make([]dossier.TargetDrug, len(refs))

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			rel, err := s.fetcher.DrugRelations(gctx, ref.ID)
			if err != nil {
				s.metrics.RecordSourceRequest("chembl", "error")
				s.logger.Warn("annotation fetch failed, emitting bare drug row",
					logging.String("drug", ref.ID.String()), logging.Err(err))
				mu.Lock()
				failed++
				mu.Unlock()
				drugs[i] = dossier.TargetDrug{
					Relations: relation.DrugRelations{Drug: ref.ID, Name: ref.Name},
				}
				return nil
			}
			s.metrics.RecordSourceRequest("chembl", "ok")
			if rel.Name == "" {
				rel.Name = ref.Name
			}
			drugs[i] = dossier.TargetDrug{
				Relations:   rel,
				Indications: s.indicationTrials(gctx, agg, rel),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed == len(refs) {
		return nil, errors.New(errors.ErrCodeSourceUnavailable, "annotation source lost for every drug on this target")
	}
	return drugs, nil
}

// indicationTrials buckets the drug's registry trials by matched indication.
// Indications no trial matched still appear, with an empty trial list.
func (s *Service) indicationTrials(ctx context.Context, agg *dossier.Aggregator, rel relation.DrugRelations) []dossier.IndicationTrials {
	if len(rel.Indications) == 0 {
		return nil
	}

	trials := s.trialsForDrug(ctx, rel)
	buckets := make(map[relation.IndicationLink][]relation.TrialRecord)
	for _, trial := range trials {
		ind, ok := agg.MatchIndication(trial.Condition, rel.Indications)
		if !ok {
			continue
		}
		buckets[ind] = append(buckets[ind], trial)
	}

	out := make([]dossier.IndicationTrials, 0, len(rel.Indications))
	for _, ind := range rel.Indications {
		out = append(out, dossier.IndicationTrials{Indication: ind, Trials: buckets[ind]})
	}
	return out
}

// trialsForDrug queries the registry by the drug's preferred name, falling
// back to its recorded synonyms when the name matches nothing.  Results are
// deduplicated by nct_id across queries.
func (s *Service) trialsForDrug(ctx context.Context, rel relation.DrugRelations) []relation.TrialRecord {
	trials, err := s.trials.TrialsForDrug(ctx, rel.Name, s.opts.TrialLimit)
	if err != nil {
		s.logger.Warn("registry query failed",
			logging.String("drug", rel.Name), logging.Err(err))
		return nil
	}
	if len(trials) > 0 {
		return trials
	}

	seen := make(map[string]struct{})
	var merged []relation.TrialRecord
	for _, syn := range s.drugSynonyms(ctx, rel) {
		more, err := s.trials.TrialsForDrug(ctx, syn, s.opts.TrialLimit)
		if err != nil {
			s.logger.Warn("registry synonym query failed",
				logging.String("drug", rel.Name), logging.String("synonym", syn), logging.Err(err))
			continue
		}
		for _, trial := range more {
			if _, ok := seen[trial.NCTID]; ok {
				continue
			}
			seen[trial.NCTID] = struct{}{}
			merged = append(merged, trial)
		}
	}
	return merged
}

// drugSynonyms pulls the drug's synonym list from the annotation source.
func (s *Service) drugSynonyms(ctx context.Context, rel relation.DrugRelations) []string {
	ents, err := s.fetcher.SearchEntities(ctx, rel.Name, entity.KindDrug, 5)
	if err != nil {
		s.logger.Debug("synonym lookup failed",
			logging.String("drug", rel.Name), logging.Err(err))
		return nil
	}
	for _, ent := range ents {
		if ent.ID == rel.Drug {
			return ent.Synonyms
		}
	}
	return nil
}
