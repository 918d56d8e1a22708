// Package disease runs the disease-centric dossier pipeline: registry trials
// for one condition, normalized drug mentions, entity resolution, annotation
// fetch, and disease-shape aggregation.
package disease

import (
	"context"
	"sort"
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

// Canonicalizer maps a colloquial disease name to its controlled-vocabulary
// heading.  Optional; the raw input is used when absent or when lookup fails.
type Canonicalizer interface {
	CanonicalDiseaseName(ctx context.Context, name string) (string, error)
}

// Options holds the run-level tunables of the pipeline.
type Options struct {
	Concurrency      int
	TrialLimit       int
	PartialThreshold float64
	MaxCandidates    int
}

// Result is the outcome of one disease dossier run.
type Result struct {
	Disease   string
	Condition string
	Rows      []dossier.DiseaseRow
	Trials    int
	Mentions  int
	Resolved  int
}

// Service orchestrates one disease dossier run end to end.
type Service struct {
	trials     relation.TrialRepository
	fetcher    relation.AnnotationFetcher
	normalizer relation.MentionNormalizer
	loader     relation.EntityLoader
	canon      Canonicalizer
	metrics    *prometheus.Metrics
	opts       Options
	logger     logging.Logger
}

// NewService wires the pipeline's collaborators.  canon and metrics may be
// nil; everything else is required.
func NewService(
	trials relation.TrialRepository,
	fetcher relation.AnnotationFetcher,
	normalizer relation.MentionNormalizer,
	loader relation.EntityLoader,
	canon Canonicalizer,
	metrics *prometheus.Metrics,
	opts Options,
	log logging.Logger,
) (*Service, error) {
	if trials == nil || fetcher == nil || normalizer == nil || loader == nil {
		return nil, errors.New(errors.ErrCodeInvalidParam, "disease pipeline requires trial, fetcher, normalizer, and loader collaborators")
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
		trials:     trials,
		fetcher:    fetcher,
		normalizer: normalizer,
		loader:     loader,
		canon:      canon,
		metrics:    metrics,
		opts:       opts,
		logger:     log.Named("disease"),
	}, nil
}

// Run builds the disease dossier for one disease name.
func (s *Service) Run(ctx context.Context, disease string) (*Result, error) {
	disease = strings.TrimSpace(disease)
	if disease == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "disease name is required")
	}
	start := time.Now()

	condition := s.canonicalCondition(ctx, disease)

	trials, err := s.trials.TrialsForCondition(ctx, condition, s.opts.TrialLimit)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetched registry trials",
		logging.String("condition", condition),
		logging.Int("trials", len(trials)),
	)
	if len(trials) == 0 {
		return &Result{Disease: disease, Condition: condition}, nil
	}

	mentions, err := s.normalizeTrials(ctx, trials)
	if err != nil {
		return nil, err
	}

	resolutions, resolvedIDs, totalMentions, err := s.resolveMentions(ctx, mentions)
	if err != nil {
		return nil, err
	}

	relations, err := s.fetchRelations(ctx, resolvedIDs)
	if err != nil {
		return nil, err
	}

	items := make([]dossier.TrialDrugs, len(trials))
	resolved := 0
	for i, trial := range trials {
		drugs := make([]dossier.ResolvedDrug, 0, len(resolutions[i]))
		for _, res := range resolutions[i] {
			drug := dossier.ResolvedDrug{Resolution: res}
			if res.Resolved() {
				resolved++
				drug.Relations = relations[res.Entity]
			}
			drugs = append(drugs, drug)
		}
		items[i] = dossier.TrialDrugs{Trial: trial, Drugs: drugs}
	}

	agg, err := dossier.NewAggregator(entity.DefaultCalculator(), s.opts.PartialThreshold, s.logger)
	if err != nil {
		return nil, err
	}
	rows := agg.DiseaseRows(items)

	s.metrics.RecordRows("disease", len(rows))
	s.metrics.ObserveRunDuration("disease", time.Since(start).Seconds())
	s.logger.Info("disease dossier assembled",
		logging.String("condition", condition),
		logging.Int("trials", len(trials)),
		logging.Int("mentions", totalMentions),
		logging.Int("resolved", resolved),
		logging.Int("rows", len(rows)),
		logging.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		Disease:   disease,
		Condition: condition,
		Rows:      rows,
		Trials:    len(trials),
		Mentions:  totalMentions,
		Resolved:  resolved,
	}, nil
}

func (s *Service) canonicalCondition(ctx context.Context, disease string) string {
	if s.canon == nil {
		return disease
	}
	name, err := s.canon.CanonicalDiseaseName(ctx, disease)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Debug("no controlled heading for disease, using input",
				logging.String("disease", disease))
		} else {
			s.logger.Warn("disease canonicalization failed, using input",
				logging.String("disease", disease), logging.Err(err))
		}
		return disease
	}
	if name != "" && name != disease {
		s.logger.Info("canonicalized disease name",
			logging.String("input", disease), logging.String("heading", name))
		return name
	}
	return disease
}

// normalizeTrials extracts clean drug mentions from every trial's
// intervention text.  Normalizer failures degrade to the raw registry names
// so no trial is dropped.
func (s *Service) normalizeTrials(ctx context.Context, trials []relation.TrialRecord) ([][]string, error) {
	mentions := make([][]string, len(trials))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range trials {
		i := i
		g.Go(func() error {
			raw := trials[i].InterventionText()
			if raw == "" {
				return nil
			}
			names, err := s.normalizer.Normalize(gctx, raw)
			if err != nil {
				s.logger.Warn("mention normalization failed, using raw intervention names",
					logging.String("nct_id", trials[i].NCTID),
					logging.Err(err),
				)
				mentions[i] = trials[i].DrugNames
				return nil
			}
			mentions[i] = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mentions, nil
}

// resolveMentions seeds the entity index from the run's mention universe and
// resolves every mention.  A loader or index failure is fatal; only a source
// that succeeded with zero matching entities leaves mentions unresolved.
func (s *Service) resolveMentions(ctx context.Context, mentions [][]string) ([][]entity.Resolution, []entity.ID, int, error) {
	terms := uniqueTerms(mentions)

	resolver, err := s.buildResolver(ctx, terms)
	if err != nil {
		return nil, nil, 0, err
	}

	total := 0
	idSet := make(map[entity.ID]struct{})
	resolutions := make([][]entity.Resolution, len(mentions))
	for i, names := range mentions {
		resolutions[i] = make([]entity.Resolution, 0, len(names))
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			total++
			m := entity.NewMention(name, entity.KindDrug)
			res := entity.Unresolved(m)
			if resolver != nil {
				res = resolver.Resolve(m)
			}
			s.metrics.RecordResolution(string(entity.KindDrug), string(res.Tier))
			if res.Resolved() {
				idSet[res.Entity] = struct{}{}
			}
			resolutions[i] = append(resolutions[i], res)
		}
	}

	ids := make([]entity.ID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return resolutions, ids, total, nil
}

// buildResolver loads the canonical entities for the run's terms and builds
// the resolver over them.  A nil resolver with nil error means the source had
// no matching entities; loader and index failures abort the run.
func (s *Service) buildResolver(ctx context.Context, terms []string) (*entity.Resolver, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	entities, err := s.loader.Load(ctx, terms, entity.KindDrug)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		s.logger.Warn("no canonical entities for this run, all mentions stay unresolved",
			logging.Int("terms", len(terms)))
		return nil, nil
	}

	index, err := entity.NewIndex(entities, entity.DefaultCalculator())
	if err != nil {
		return nil, err
	}
	return entity.NewResolver(index, entity.ResolverConfig{
		PartialThreshold: s.opts.PartialThreshold,
		MaxCandidates:    s.opts.MaxCandidates,
	}, s.logger)
}

// fetchRelations loads the annotation bundle for every resolved drug with
// bounded concurrency.  Individual failures degrade to missing annotations;
// losing every fetch aborts the run.
func (s *Service) fetchRelations(ctx context.Context, ids []entity.ID) (map[entity.ID]*relation.DrugRelations, error) {
	relations := make(map[entity.ID]*relation.DrugRelations, len(ids))
	if len(ids) == 0 {
		return relations, nil
	}

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			rel, err := s.fetcher.DrugRelations(gctx, id)
			if err != nil {
				s.metrics.RecordSourceRequest("chembl", "error")
				s.logger.Warn("annotation fetch failed, emitting bare rows",
					logging.String("drug", id.String()), logging.Err(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			s.metrics.RecordSourceRequest("chembl", "ok")
			mu.Lock()
			relations[id] = &rel
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed == len(ids) {
		return nil, errors.New(errors.ErrCodeSourceUnavailable, "annotation source lost for every resolved drug")
	}
	return relations, nil
}

// uniqueTerms flattens mention lists into the distinct terms used to seed the
// index, deduplicated case-insensitively, first spelling wins.
func uniqueTerms(mentions [][]string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, names := range mentions {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			terms = append(terms, name)
		}
	}
	return terms
}
