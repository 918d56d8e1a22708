package entity

import (
	"fmt"
	"sort"

	"github.com/bioforge/trialdossier/pkg/errors"
)

// Candidate is one approximate-lookup result.
type Candidate struct {
	Entity ID
	Score  float64
}

// Index provides O(1) exact lookup and linear-scan candidate retrieval over a
// fixed set of canonical entities, partitioned by kind.  It is read-only
// after construction and safe for concurrent use.
type Index struct {
	entities  map[ID]*CanonicalEntity
	preferred map[Kind]map[string]ID   // normalized preferred name → smallest owning ID
	synonyms  map[Kind]map[string][]ID // normalized synonym → owning IDs, ascending
	byKind    map[Kind][]*CanonicalEntity
	calc      Calculator
}

// NewIndex builds an Index over entities using calc for approximate lookup.
// Construction fails on an empty entity set, on duplicate identifiers, and on
// structurally invalid records: a partial index would silently shrink the
// resolvable universe, so all of these are fatal.
func NewIndex(entities []CanonicalEntity, calc Calculator) (*Index, error) {
	if len(entities) == 0 {
		return nil, errors.New(errors.ErrCodeIndexEmpty, "canonical entity index requires at least one entity")
	}
	if calc == nil {
		return nil, errors.New(errors.ErrCodeValidation, "canonical entity index requires a similarity calculator")
	}

	idx := &Index{
		entities:  make(map[ID]*CanonicalEntity, len(entities)),
		preferred: make(map[Kind]map[string]ID),
		synonyms:  make(map[Kind]map[string][]ID),
		byKind:    make(map[Kind][]*CanonicalEntity),
		calc:      calc,
	}

	for i := range entities {
		e := entities[i]
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := idx.entities[e.ID]; dup {
			return nil, errors.New(errors.ErrCodeIndexDuplicateID, "duplicate canonical entity identifier").
				WithDetail(fmt.Sprintf("id=%s", e.ID))
		}
		idx.entities[e.ID] = &e
		idx.byKind[e.Kind] = append(idx.byKind[e.Kind], &e)

		prefs := idx.preferred[e.Kind]
		if prefs == nil {
			prefs = make(map[string]ID)
			idx.preferred[e.Kind] = prefs
		}
		key := Normalize(e.PreferredName)
		// Two entities sharing a preferred name is legal upstream data; keep
		// the lexicographically smallest ID so lookups stay deterministic.
		if existing, ok := prefs[key]; !ok || e.ID < existing {
			prefs[key] = e.ID
		}

		syns := idx.synonyms[e.Kind]
		if syns == nil {
			syns = make(map[string][]ID)
			idx.synonyms[e.Kind] = syns
		}
		for _, s := range e.Synonyms {
			k := Normalize(s)
			if k == "" {
				continue
			}
			syns[k] = append(syns[k], e.ID)
		}
	}

	// Sort synonym owner lists and entity scan order once so every lookup is
	// order-independent.
	for _, syns := range idx.synonyms {
		for k, ids := range syns {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			syns[k] = dedupeIDs(ids)
		}
	}
	for kind := range idx.byKind {
		list := idx.byKind[kind]
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}

	return idx, nil
}

func dedupeIDs(ids []ID) []ID {
	out := ids[:0]
	var prev ID
	for i, id := range ids {
		if i == 0 || id != prev {
			out = append(out, id)
		}
		prev = id
	}
	return out
}

// Len returns the number of indexed entities.
func (x *Index) Len() int { return len(x.entities) }

// Entity returns the entity with the given identifier.
func (x *Index) Entity(id ID) (*CanonicalEntity, bool) {
	e, ok := x.entities[id]
	return e, ok
}

// LookupExact resolves text against preferred names first, then against
// unambiguous synonyms.  A synonym owned by more than one entity is not an
// exact match; it is left for the synonym tier's deterministic tie-break.
func (x *Index) LookupExact(text string, kind Kind) (ID, bool) {
	key := Normalize(text)
	if key == "" {
		return "", false
	}
	if id, ok := x.preferred[kind][key]; ok {
		return id, true
	}
	if ids := x.synonyms[kind][key]; len(ids) == 1 {
		return ids[0], true
	}
	return "", false
}

// LookupSynonym returns every entity whose synonym set contains the
// normalized text, in ascending identifier order.
func (x *Index) LookupSynonym(text string, kind Kind) []ID {
	key := Normalize(text)
	if key == "" {
		return nil
	}
	ids := x.synonyms[kind][key]
	out := make([]ID, len(ids))
	copy(out, ids)
	return out
}

// LookupCandidates scores text against every entity of the kind — best score
// over preferred name and synonyms — and returns up to max candidates in
// descending score order, ties broken by ascending identifier.
func (x *Index) LookupCandidates(text string, kind Kind, max int) []Candidate {
	if max <= 0 {
		return nil
	}
	key := Normalize(text)
	if key == "" {
		return nil
	}

	candidates := make([]Candidate, 0, len(x.byKind[kind]))
	for _, e := range x.byKind[kind] {
		best := x.calc.Score(key, e.PreferredName)
		for _, s := range e.Synonyms {
			if sc := x.calc.Score(key, s); sc > best {
				best = sc
			}
		}
		if best > 0 {
			candidates = append(candidates, Candidate{Entity: e.ID, Score: best})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Entity < candidates[j].Entity
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}
