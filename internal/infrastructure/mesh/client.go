// Package mesh canonicalizes disease names against the NCBI MeSH vocabulary
// via the eutils API, so that a query like "chronic myeloid leukaemia" maps
// to the registry's preferred heading before trials are searched.
package mesh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type meshSummary struct {
	MeshTerms []string `json:"ds_meshterms"`
}

// Client looks up MeSH headings.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  logging.Logger
}

// NewClient builds the vocabulary client.
func NewClient(baseURL, apiKey string, timeout time.Duration, log logging.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "vocabulary base URL is required")
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log.Named("mesh"),
	}, nil
}

// CanonicalDiseaseName maps a free-text disease name to its preferred MeSH
// heading.  Returns a not-found error when the vocabulary has no match;
// callers fall back to the input name.
func (c *Client) CanonicalDiseaseName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New(errors.ErrCodeInvalidParam, "disease name is empty")
	}

	uid, err := c.search(ctx, name)
	if err != nil {
		return "", err
	}

	heading, err := c.summary(ctx, uid)
	if err != nil {
		return "", err
	}

	c.logger.Debug("canonicalized disease name",
		logging.String("input", name), logging.String("heading", heading))
	return heading, nil
}

func (c *Client) search(ctx context.Context, term string) (string, error) {
	q := url.Values{}
	q.Set("db", "mesh")
	q.Set("term", term)
	q.Set("retmode", "json")
	q.Set("retmax", "1")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	var res esearchResponse
	if err := c.get(ctx, "/esearch.fcgi", q, &res); err != nil {
		return "", err
	}
	if len(res.Result.IDList) == 0 {
		return "", errors.Newf(errors.ErrCodeSourceNotFound, "no vocabulary entry for %q", term)
	}
	return res.Result.IDList[0], nil
}

func (c *Client) summary(ctx context.Context, uid string) (string, error) {
	q := url.Values{}
	q.Set("db", "mesh")
	q.Set("id", uid)
	q.Set("retmode", "json")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	var res esummaryResponse
	if err := c.get(ctx, "/esummary.fcgi", q, &res); err != nil {
		return "", err
	}

	raw, ok := res.Result[uid]
	if !ok {
		return "", errors.Newf(errors.ErrCodeSourceParseError, "summary response missing uid %s", uid)
	}
	var sum meshSummary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSourceParseError, "failed to decode vocabulary summary")
	}
	if len(sum.MeshTerms) == 0 {
		return "", errors.Newf(errors.ErrCodeSourceNotFound, "vocabulary entry %s carries no headings", uid)
	}
	return sum.MeshTerms[0], nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to build vocabulary request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceUnavailable, "vocabulary endpoint unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.New(errors.ErrCodeSourceRateLimited, "vocabulary endpoint throttled the request")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeSourceUnavailable, "vocabulary endpoint returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceParseError, "failed to decode vocabulary response")
	}
	return nil
}
