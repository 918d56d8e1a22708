package chembl

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// EntityLoader seeds the resolution index by searching the annotation source
// for each candidate term.  It implements relation.EntityLoader.
//
// A failed term lookup leaves that term unresolvable and is logged; the load
// fails only when every single lookup fails, which indicates the source is
// down rather than the terms being unknown.
type EntityLoader struct {
	fetcher     relation.AnnotationFetcher
	concurrency int
	perTerm     int
	logger      logging.Logger
}

// NewEntityLoader builds the loader.  perTerm caps entities kept per search
// term.
func NewEntityLoader(fetcher relation.AnnotationFetcher, concurrency, perTerm int, log logging.Logger) *EntityLoader {
	if concurrency < 1 {
		concurrency = 1
	}
	if perTerm < 1 {
		perTerm = 5
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &EntityLoader{
		fetcher:     fetcher,
		concurrency: concurrency,
		perTerm:     perTerm,
		logger:      log.Named("entity_loader"),
	}
}

// Load searches every term concurrently and merges the results, deduplicated
// by entity ID and sorted for deterministic index construction.
func (l *EntityLoader) Load(ctx context.Context, terms []string, kind entity.Kind) ([]entity.CanonicalEntity, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		byID     = make(map[entity.ID]entity.CanonicalEntity)
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, term := range terms {
		term := term
		g.Go(func() error {
			ents, err := l.fetcher.SearchEntities(gctx, term, kind, l.perTerm)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Warn("entity search failed, term will stay unresolved",
					logging.String("term", term), logging.Err(err))
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			for _, ent := range ents {
				if _, ok := byID[ent.ID]; !ok {
					byID[ent.ID] = ent
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSourceUnavailable, "entity load cancelled")
	}

	if failures == len(terms) {
		return nil, errors.Newf(errors.ErrCodeSourceUnavailable,
			"all %d entity searches failed", len(terms))
	}

	ents := make([]entity.CanonicalEntity, 0, len(byID))
	for _, ent := range byID {
		ents = append(ents, ent)
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].ID < ents[j].ID })

	l.logger.Info("entity index seeded",
		logging.String("kind", string(kind)),
		logging.Int("terms", len(terms)),
		logging.Int("entities", len(ents)),
		logging.Int("failed_terms", failures),
	)
	return ents, nil
}
