// Package llm normalizes raw trial intervention free text into clean drug
// name candidates using a local Ollama model, with a rule-based fallback for
// runs without a model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// promptHeader instructs the model.  Few-shot examples pin down the exact
// behavior for dosage strings, combinations, and non-drug arms.
const promptHeader = `You extract drug names from clinical trial intervention descriptions.
Return ONLY a JSON array of clean drug name strings. Strip dosages, routes,
schedules, and formulations. Split combination therapies into separate names.
Exclude placebo arms, devices, and procedures. Return [] when no drug is named.

Examples:
Input: Aspirin 81mg daily
Output: ["Aspirin"]
Input: Imatinib mesylate 400 mg oral tablet
Output: ["Imatinib"]
Input: Budesonide/Formoterol inhaler
Output: ["Budesonide", "Formoterol"]
Input: Pembrolizumab + chemotherapy (carboplatin and pemetrexed)
Output: ["Pembrolizumab", "Carboplatin", "Pemetrexed"]
Input: Placebo
Output: []
Input: Standard physiotherapy program
Output: []
Input: CGB-500 1.0% ointment
Output: ["CGB-500"]
Input: Salbutamol; Ipratropium bromide
Output: ["Salbutamol", "Ipratropium bromide"]

Input: `

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Normalizer extracts drug mentions via a local Ollama model.  It implements
// relation.MentionNormalizer.  Results are memoized per raw text for the
// normalizer's lifetime: identical intervention blobs recur across trials and
// each model call is expensive.
type Normalizer struct {
	http    *http.Client
	baseURL string
	model   string
	logger  logging.Logger

	mu   sync.RWMutex
	memo map[string][]string
}

// NewNormalizer builds the model-backed normalizer.
func NewNormalizer(baseURL, model string, timeout time.Duration, log logging.Logger) (*Normalizer, error) {
	if baseURL == "" || model == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "normalizer needs a base URL and a model name")
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Normalizer{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		logger:  log.Named("normalizer"),
		memo:    make(map[string][]string),
	}, nil
}

// Normalize sends one intervention blob through the model and parses the
// JSON array it returns.
func (n *Normalizer) Normalize(ctx context.Context, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	n.mu.RLock()
	cached, ok := n.memo[raw]
	n.mu.RUnlock()
	if ok {
		return cached, nil
	}

	body, err := json.Marshal(generateRequest{
		Model:  n.model,
		Prompt: promptHeader + raw + "\nOutput: ",
		Stream: false,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode generate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNormalizerUnavailable, "model endpoint unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeNormalizerUnavailable, "model endpoint returned %d", resp.StatusCode)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNormalizerBadResponse, "failed to decode model response")
	}

	names, err := parseNameArray(gen.Response)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.memo[raw] = names
	n.mu.Unlock()

	n.logger.Debug("normalized intervention text",
		logging.String("raw", raw), logging.Int("names", len(names)))
	return names, nil
}

// parseNameArray extracts the JSON string array from model output, tolerating
// chatter and code fences around it.
func parseNameArray(out string) ([]string, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end < start {
		return nil, errors.Newf(errors.ErrCodeNormalizerBadResponse, "model output contains no JSON array: %.80s", out)
	}

	var names []string
	if err := json.Unmarshal([]byte(out[start:end+1]), &names); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNormalizerBadResponse, "model output is not a string array")
	}

	cleaned := names[:0]
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, name)
	}
	return cleaned, nil
}
