package chembl

import (
	"context"
	"fmt"
	"time"

	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/database/redis"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// CachedFetcher wraps an annotation fetcher with the Redis cache.  A cache
// outage degrades to direct fetches rather than failing the run.
type CachedFetcher struct {
	inner  relation.AnnotationFetcher
	cache  redis.Cache
	ttl    time.Duration
	logger logging.Logger
}

// NewCachedFetcher decorates inner with cached reads.
func NewCachedFetcher(inner relation.AnnotationFetcher, cache redis.Cache, ttl time.Duration, log logging.Logger) *CachedFetcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &CachedFetcher{inner: inner, cache: cache, ttl: ttl, logger: log.Named("chembl_cache")}
}

func (f *CachedFetcher) DrugRelations(ctx context.Context, drug entity.ID) (relation.DrugRelations, error) {
	key := "chembl:drug:" + drug.String()
	var rel relation.DrugRelations
	err := f.cache.GetOrSet(ctx, key, &rel, f.ttl, func(ctx context.Context) (interface{}, error) {
		loaded, err := f.inner.DrugRelations(ctx, drug)
		if err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err == nil {
		return rel, nil
	}
	if fromSource(err) {
		return relation.DrugRelations{}, err
	}
	f.logger.Warn("annotation cache unavailable, fetching directly",
		logging.String("key", key), logging.Err(err))
	return f.inner.DrugRelations(ctx, drug)
}

func (f *CachedFetcher) DrugsForTarget(ctx context.Context, tgt entity.ID) ([]relation.DrugRef, error) {
	key := "chembl:target_drugs:" + tgt.String()
	var refs []relation.DrugRef
	err := f.cache.GetOrSet(ctx, key, &refs, f.ttl, func(ctx context.Context) (interface{}, error) {
		loaded, err := f.inner.DrugsForTarget(ctx, tgt)
		if err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err == nil {
		return refs, nil
	}
	if fromSource(err) {
		return nil, err
	}
	f.logger.Warn("annotation cache unavailable, fetching directly",
		logging.String("key", key), logging.Err(err))
	return f.inner.DrugsForTarget(ctx, tgt)
}

func (f *CachedFetcher) SearchEntities(ctx context.Context, term string, kind entity.Kind, limit int) ([]entity.CanonicalEntity, error) {
	key := fmt.Sprintf("chembl:search:%s:%d:%s", kind, limit, entity.Normalize(term))
	var ents []entity.CanonicalEntity
	err := f.cache.GetOrSet(ctx, key, &ents, f.ttl, func(ctx context.Context) (interface{}, error) {
		loaded, err := f.inner.SearchEntities(ctx, term, kind, limit)
		if err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err == nil {
		return ents, nil
	}
	if fromSource(err) {
		return nil, err
	}
	f.logger.Warn("annotation cache unavailable, fetching directly",
		logging.String("key", key), logging.Err(err))
	return f.inner.SearchEntities(ctx, term, kind, limit)
}

// fromSource reports whether the error came from the wrapped fetcher rather
// than the cache itself.  Source errors must surface; cache errors degrade
// to a direct fetch.
func fromSource(err error) bool {
	if err == redis.ErrCacheMiss || err == redis.ErrSerializationFailed {
		return false
	}
	if errors.IsCode(err, errors.ErrCodeCacheError) || errors.IsCode(err, errors.ErrCodeInternal) {
		return false
	}
	return true
}
