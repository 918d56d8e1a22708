package entity

import (
	"sync"

	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// DefaultPartialThreshold is the acceptance threshold for the partial tier
// when no configuration overrides it.  Raising it trades recall for
// precision; lowering it accepts looser approximate matches.
const DefaultPartialThreshold = 0.72

// DefaultMaxCandidates bounds the candidate list consulted by the partial tier.
const DefaultMaxCandidates = 10

// ResolverConfig holds the resolution tunables.
type ResolverConfig struct {
	// PartialThreshold is the minimum candidate score accepted by the
	// partial tier, in [0,1].
	PartialThreshold float64 `mapstructure:"partial_threshold"`
	// MaxCandidates caps approximate-lookup fan-out per mention.
	MaxCandidates int `mapstructure:"max_candidates"`
}

type memoKey struct {
	kind Kind
	text string
}

// Resolver maps mentions to canonical entities by applying tiers in strict
// priority order: exact, synonym, partial.  For a fixed index the mapping is
// a pure function of the mention text; results are memoized per
// (kind, normalized text) and the memo map is safe for concurrent callers.
type Resolver struct {
	index  *Index
	cfg    ResolverConfig
	logger logging.Logger

	mu   sync.RWMutex
	memo map[memoKey]Resolution
}

// NewResolver validates cfg and constructs a Resolver over index.
func NewResolver(index *Index, cfg ResolverConfig, log logging.Logger) (*Resolver, error) {
	if index == nil {
		return nil, errors.New(errors.ErrCodeValidation, "resolver requires a canonical entity index")
	}
	if cfg.PartialThreshold == 0 {
		cfg.PartialThreshold = DefaultPartialThreshold
	}
	if cfg.PartialThreshold < 0 || cfg.PartialThreshold > 1 {
		return nil, errors.New(errors.ErrCodeThresholdInvalid, "partial threshold must be in [0,1]")
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Resolver{
		index:  index,
		cfg:    cfg,
		logger: log.Named("resolver"),
		memo:   make(map[memoKey]Resolution),
	}, nil
}

// Resolve maps one mention to its terminal resolution outcome.  Unresolved is
// a valid outcome, never an error: callers surface it as a row with empty
// annotation columns.
func (r *Resolver) Resolve(m Mention) Resolution {
	key := memoKey{kind: m.Kind, text: Normalize(m.Text)}
	if key.text == "" {
		return Unresolved(m)
	}

	r.mu.RLock()
	cached, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		// Re-attach the caller's mention: the cached outcome may have been
		// produced for the same text seen in another trial.
		cached.Mention = m
		return cached
	}

	res := r.resolve(m, key.text)

	r.mu.Lock()
	r.memo[key] = res
	r.mu.Unlock()
	return res
}

func (r *Resolver) resolve(m Mention, normText string) Resolution {
	// Tier 1: exact — preferred name, or a synonym owned by exactly one entity.
	if id, ok := r.index.LookupExact(normText, m.Kind); ok {
		return ResolvedAs(m, id, TierExact, 1.0)
	}

	// Tier 2: synonym — the text is a synonym of more than one entity.
	// Resolve to the lexicographically smallest identifier.
	if ids := r.index.LookupSynonym(normText, m.Kind); len(ids) > 0 {
		if len(ids) > 1 {
			r.logger.Warn("ambiguous synonym, resolving to smallest identifier",
				logging.String("mention", m.Text),
				logging.String("kind", string(m.Kind)),
				logging.Int("owners", len(ids)),
				logging.String("chosen", ids[0].String()),
			)
		}
		return ResolvedAs(m, ids[0], TierSynonym, 1.0)
	}

	// Tier 3: partial — accept the top candidate iff it clears the threshold.
	cands := r.index.LookupCandidates(normText, m.Kind, r.cfg.MaxCandidates)
	if len(cands) > 0 && cands[0].Score >= r.cfg.PartialThreshold {
		return ResolvedAs(m, cands[0].Entity, TierPartial, cands[0].Score)
	}

	return Unresolved(m)
}

// MemoSize returns the number of memoized resolutions.  Used by run
// summaries and tests.
func (r *Resolver) MemoSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memo)
}
