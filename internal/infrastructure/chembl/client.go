package chembl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bioforge/trialdossier/internal/config"
	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// Client talks to the ChEMBL REST API.  It implements
// relation.AnnotationFetcher.  All requests go through a shared rate limiter;
// transient failures are retried with backoff.
type Client struct {
	http       *http.Client
	baseURL    string
	pageSize   int
	maxRetries int
	limiter    *rate.Limiter
	logger     logging.Logger
}

// NewClient builds the annotation client from configuration.
func NewClient(cfg config.ChEMBLConfig, log logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "annotation source base URL is required")
	}
	if cfg.RatePerSecond <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidParam, "annotation source rate limit must be positive")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:   pageSize,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:     log.Named("chembl"),
	}, nil
}

// get performs one rate-limited, retried GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, path, query.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeTimeout, "rate limiter wait cancelled")
		}
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "annotation request cancelled")
			case <-time.After(backoff):
			}
			c.logger.Debug("retrying annotation request",
				logging.String("path", path), logging.Int("attempt", attempt))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to build annotation request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, errors.ErrCodeSourceUnavailable, "annotation source unreachable")
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err = json.NewDecoder(resp.Body).Decode(dest)
			resp.Body.Close()
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeSourceParseError, "failed to decode annotation response")
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return errors.Newf(errors.ErrCodeSourceNotFound, "annotation resource %s not found", path)
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = errors.New(errors.ErrCodeSourceRateLimited, "annotation source throttled the request")
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = errors.Newf(errors.ErrCodeSourceUnavailable, "annotation source returned %d", resp.StatusCode)
		default:
			resp.Body.Close()
			return errors.Newf(errors.ErrCodeExternalService, "annotation source returned %d for %s", resp.StatusCode, path)
		}
	}
	return lastErr
}

func (c *Client) pagedQuery(limit, offset int) url.Values {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("offset", fmt.Sprintf("%d", offset))
	return q
}

// molecules fetches every page of a molecule query.
func (c *Client) molecules(ctx context.Context, filter url.Values) ([]molecule, error) {
	var all []molecule
	offset := 0
	for {
		q := c.pagedQuery(c.pageSize, offset)
		for k, vs := range filter {
			q[k] = vs
		}
		var page moleculePage
		if err := c.get(ctx, "molecule.json", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Molecules...)
		offset += c.pageSize
		if offset >= page.PageMeta.TotalCount || len(page.Molecules) == 0 {
			return all, nil
		}
	}
}

func (c *Client) mechanisms(ctx context.Context, filter url.Values) ([]mechanism, error) {
	var all []mechanism
	offset := 0
	for {
		q := c.pagedQuery(c.pageSize, offset)
		for k, vs := range filter {
			q[k] = vs
		}
		var page mechanismPage
		if err := c.get(ctx, "mechanism.json", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Mechanisms...)
		offset += c.pageSize
		if offset >= page.PageMeta.TotalCount || len(page.Mechanisms) == 0 {
			return all, nil
		}
	}
}

func (c *Client) indications(ctx context.Context, filter url.Values) ([]drugIndication, error) {
	var all []drugIndication
	offset := 0
	for {
		q := c.pagedQuery(c.pageSize, offset)
		for k, vs := range filter {
			q[k] = vs
		}
		var page indicationPage
		if err := c.get(ctx, "drug_indication.json", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Indications...)
		offset += c.pageSize
		if offset >= page.PageMeta.TotalCount || len(page.Indications) == 0 {
			return all, nil
		}
	}
}

func (c *Client) targetByID(ctx context.Context, id string) (target, error) {
	q := c.pagedQuery(1, 0)
	q.Set("target_chembl_id", id)
	var page targetPage
	if err := c.get(ctx, "target.json", q, &page); err != nil {
		return target{}, err
	}
	if len(page.Targets) == 0 {
		return target{}, errors.Newf(errors.ErrCodeSourceNotFound, "target %s not found", id)
	}
	return page.Targets[0], nil
}

// DrugRelations returns the full annotation bundle for one drug: name,
// modality, mechanism-target links, and indications.
func (c *Client) DrugRelations(ctx context.Context, drug entity.ID) (relation.DrugRelations, error) {
	filter := url.Values{}
	filter.Set("molecule_chembl_id", drug.String())
	mols, err := c.molecules(ctx, filter)
	if err != nil {
		return relation.DrugRelations{}, err
	}
	if len(mols) == 0 {
		return relation.DrugRelations{}, errors.Newf(errors.ErrCodeSourceNotFound, "molecule %s not found", drug)
	}
	mol := mols[0]

	rel := relation.DrugRelations{
		Drug:          drug,
		Name:          mol.PrefName,
		Modality:      mol.MoleculeType,
		FirstApproval: mol.FirstApproval,
	}

	mechFilter := url.Values{}
	mechFilter.Set("molecule_chembl_id", drug.String())
	mechs, err := c.mechanisms(ctx, mechFilter)
	if err != nil {
		return relation.DrugRelations{}, err
	}
	seenTargets := make(map[string]bool)
	for _, m := range mechs {
		if m.TargetChemblID == "" || seenTargets[m.TargetChemblID] {
			continue
		}
		seenTargets[m.TargetChemblID] = true

		link := relation.TargetLink{
			TargetID:  entity.ID(m.TargetChemblID),
			Mechanism: m.MechanismOfAction,
		}
		tgt, err := c.targetByID(ctx, m.TargetChemblID)
		if err != nil {
			if !errors.IsNotFound(err) {
				return relation.DrugRelations{}, err
			}
			c.logger.Warn("mechanism references unknown target",
				logging.String("drug", drug.String()),
				logging.String("target", m.TargetChemblID))
		} else {
			link.GeneSymbol = tgt.geneSymbol()
			link.TargetName = tgt.PrefName
		}
		rel.Targets = append(rel.Targets, link)
	}

	indFilter := url.Values{}
	indFilter.Set("molecule_chembl_id", drug.String())
	inds, err := c.indications(ctx, indFilter)
	if err != nil {
		return relation.DrugRelations{}, err
	}
	for _, ind := range inds {
		name := ind.MeshHeading
		if name == "" {
			name = ind.EFOTerm
		}
		if name == "" {
			continue
		}
		rel.Indications = append(rel.Indications, relation.IndicationLink{
			IndicationID: entity.ID(ind.MeshID),
			Name:         name,
			MeshID:       ind.MeshID,
			MaxPhase:     ind.MaxPhaseForInd,
		})
	}

	return rel, nil
}

// DrugsForTarget expands a target into the drugs with a recorded mechanism
// against it.
func (c *Client) DrugsForTarget(ctx context.Context, tgt entity.ID) ([]relation.DrugRef, error) {
	filter := url.Values{}
	filter.Set("target_chembl_id", tgt.String())
	mechs, err := c.mechanisms(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(mechs))
	seen := make(map[string]bool)
	for _, m := range mechs {
		if m.MoleculeChemblID == "" || seen[m.MoleculeChemblID] {
			continue
		}
		seen[m.MoleculeChemblID] = true
		ids = append(ids, m.MoleculeChemblID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	molFilter := url.Values{}
	molFilter.Set("molecule_chembl_id__in", strings.Join(ids, ","))
	mols, err := c.molecules(ctx, molFilter)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(mols))
	for _, m := range mols {
		names[m.ChemblID] = m.PrefName
	}

	refs := make([]relation.DrugRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, relation.DrugRef{ID: entity.ID(id), Name: names[id]})
	}
	return refs, nil
}

// TargetBySymbol resolves a gene symbol to its canonical target record.
func (c *Client) TargetBySymbol(ctx context.Context, symbol string) (entity.CanonicalEntity, error) {
	q := c.pagedQuery(c.pageSize, 0)
	q.Set("target_components__target_component_synonyms__component_synonym__iexact", symbol)
	var page targetPage
	if err := c.get(ctx, "target.json", q, &page); err != nil {
		return entity.CanonicalEntity{}, err
	}
	for _, t := range page.Targets {
		if ent, ok := targetEntity(t); ok {
			return ent, nil
		}
	}
	return entity.CanonicalEntity{}, errors.Newf(errors.ErrCodeSourceNotFound, "no target found for symbol %q", symbol)
}

// TargetByID fetches one canonical target record by its ChEMBL identifier.
func (c *Client) TargetByID(ctx context.Context, id entity.ID) (entity.CanonicalEntity, error) {
	t, err := c.targetByID(ctx, id.String())
	if err != nil {
		return entity.CanonicalEntity{}, err
	}
	ent, ok := targetEntity(t)
	if !ok {
		return entity.CanonicalEntity{}, errors.Newf(errors.ErrCodeSourceNotFound, "target %s carries no usable name", id)
	}
	return ent, nil
}

// SearchEntities looks up canonical entities for a free-text term, used when
// seeding the resolution index.
func (c *Client) SearchEntities(ctx context.Context, term string, kind entity.Kind, limit int) ([]entity.CanonicalEntity, error) {
	if limit <= 0 {
		limit = c.pageSize
	}
	switch kind {
	case entity.KindDrug:
		return c.searchDrugs(ctx, term, limit)
	case entity.KindTarget:
		return c.searchTargets(ctx, term, limit)
	case entity.KindIndication:
		return c.searchIndications(ctx, term, limit)
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownEntityKind, "unsupported search kind %q", kind)
	}
}

func (c *Client) searchDrugs(ctx context.Context, term string, limit int) ([]entity.CanonicalEntity, error) {
	filter := url.Values{}
	filter.Set("pref_name__iexact", term)
	mols, err := c.molecules(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(mols) == 0 {
		// Preferred name missed; try the synonym table.
		filter = url.Values{}
		filter.Set("molecule_synonyms__molecule_synonym__iexact", term)
		mols, err = c.molecules(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	ents := make([]entity.CanonicalEntity, 0, len(mols))
	for _, mol := range mols {
		if mol.ChemblID == "" || mol.PrefName == "" {
			continue
		}
		ents = append(ents, moleculeEntity(mol))
		if len(ents) == limit {
			break
		}
	}
	return ents, nil
}

func (c *Client) searchTargets(ctx context.Context, term string, limit int) ([]entity.CanonicalEntity, error) {
	q := c.pagedQuery(limit, 0)
	q.Set("target_components__target_component_synonyms__component_synonym__iexact", term)
	var page targetPage
	if err := c.get(ctx, "target.json", q, &page); err != nil {
		return nil, err
	}
	var ents []entity.CanonicalEntity
	for _, t := range page.Targets {
		if ent, ok := targetEntity(t); ok {
			ents = append(ents, ent)
		}
	}
	return ents, nil
}

func (c *Client) searchIndications(ctx context.Context, term string, limit int) ([]entity.CanonicalEntity, error) {
	q := c.pagedQuery(limit, 0)
	q.Set("mesh_heading__icontains", term)
	var page indicationPage
	if err := c.get(ctx, "drug_indication.json", q, &page); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ents []entity.CanonicalEntity
	for _, ind := range page.Indications {
		if ind.MeshID == "" || ind.MeshHeading == "" || seen[ind.MeshID] {
			continue
		}
		seen[ind.MeshID] = true
		ent := entity.CanonicalEntity{
			ID:            entity.ID(ind.MeshID),
			PreferredName: ind.MeshHeading,
			Kind:          entity.KindIndication,
		}
		if ind.EFOTerm != "" && ind.EFOTerm != ind.MeshHeading {
			ent.Synonyms = []string{ind.EFOTerm}
		}
		ents = append(ents, ent)
	}
	return ents, nil
}

func moleculeEntity(mol molecule) entity.CanonicalEntity {
	ent := entity.CanonicalEntity{
		ID:            entity.ID(mol.ChemblID),
		PreferredName: mol.PrefName,
		Kind:          entity.KindDrug,
	}
	seen := make(map[string]bool)
	for _, syn := range mol.Synonyms {
		key := strings.ToLower(syn.Synonym)
		if syn.Synonym == "" || seen[key] {
			continue
		}
		seen[key] = true
		ent.Synonyms = append(ent.Synonyms, syn.Synonym)
	}
	return ent
}

func targetEntity(t target) (entity.CanonicalEntity, bool) {
	if t.ChemblID == "" {
		return entity.CanonicalEntity{}, false
	}
	symbol := t.geneSymbol()
	name := symbol
	if name == "" {
		name = t.PrefName
	}
	if name == "" {
		return entity.CanonicalEntity{}, false
	}
	ent := entity.CanonicalEntity{
		ID:            entity.ID(t.ChemblID),
		PreferredName: name,
		Kind:          entity.KindTarget,
	}
	if t.PrefName != "" && t.PrefName != name {
		ent.Synonyms = append(ent.Synonyms, t.PrefName)
	}
	return ent, true
}
