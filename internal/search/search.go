// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries academic APIs concurrently and returns unified,
// deduplicated, ranked paper records.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-rag/internal/httputil"
	"github.com/pdiddy/research-rag/internal/telemetry"
	"github.com/pdiddy/research-rag/pkg/types"
)

// Errors returned by SearchAll and Research for unusable input.
var (
	ErrEmptyQuery  = errors.New("query is empty: provide a research question")
	ErrNoProviders = errors.New("no search providers configured")
)

const (
	defaultPerProviderLimit = 20
	defaultMaxResults       = 20
	defaultProviderTimeout  = 30 * time.Second
	defaultOverallTimeout   = 60 * time.Second
)

// Provider searches a single academic API.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.PaperRecord, error)
}

// ProviderError records a provider that failed or timed out during a
// fan-out. The other providers' results are still used.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type retrying struct {
	Provider
	policy httputil.Policy
}

// Retrying wraps p so that temporary failures (HTTP 429 and 5xx) are
// retried with exponential backoff.
func Retrying(p Provider, policy httputil.Policy) Provider {
	return &retrying{Provider: p, policy: policy}
}

func (r *retrying) Search(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	var out []types.PaperRecord
	err := httputil.Retry(ctx, r.policy, func(ctx context.Context) error {
		var err error
		out, err = r.Provider.Search(ctx, query, limit)
		return err
	})
	return out, err
}

// NewProviders builds the providers named in cfg.Providers, in order, each
// wrapped with the configured retry policy. An empty list selects arxiv and
// semantic_scholar.
func NewProviders(cfg types.SearchConfig) ([]Provider, error) {
	names := cfg.Providers
	if len(names) == 0 {
		names = []string{"arxiv", "semantic_scholar"}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	client := &http.Client{Timeout: timeout}
	policy := httputil.PolicyFrom(cfg.Retry)

	var providers []Provider
	for _, name := range names {
		var p Provider
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "arxiv":
			p = &ArxivProvider{Client: client, UserAgent: cfg.UserAgent}
		case "semantic_scholar", "semanticscholar", "s2":
			p = &SemanticScholarProvider{Client: client, UserAgent: cfg.UserAgent, APIKey: cfg.SemanticScholarAPIKey}
		case "openalex":
			p = &OpenAlexProvider{Client: client, UserAgent: cfg.UserAgent, Email: cfg.OpenAlexEmail}
		default:
			return nil, fmt.Errorf("unknown search provider %q", name)
		}
		providers = append(providers, Retrying(p, policy))
	}
	return providers, nil
}

// Aggregator fans a query out to every provider and merges the results.
type Aggregator struct {
	providers []Provider
	cfg       types.SearchConfig
	log       zerolog.Logger
	metrics   *telemetry.Metrics
	evaluator *Evaluator
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for provider failures and progress.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithMetrics records provider latency, result counts, and duplicates.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithEvaluator grades each ranked paper in Research and reorders by score.
func WithEvaluator(e *Evaluator) Option {
	return func(a *Aggregator) { a.evaluator = e }
}

// New returns an Aggregator over providers. Provider order is significant:
// it fixes the concatenation order of results and so which record survives
// a merge.
func New(providers []Provider, cfg types.SearchConfig, opts ...Option) *Aggregator {
	if cfg.PerProviderLimit <= 0 {
		cfg.PerProviderLimit = defaultPerProviderLimit
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = defaultOverallTimeout
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = DefaultDuplicateThreshold
	}
	a := &Aggregator{providers: providers, cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Providers returns the provider names in query order.
func (a *Aggregator) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

// Gathered holds the raw fan-out results before deduplication.
type Gathered struct {
	// Records are all provider results, grouped in provider order.
	Records []types.PaperRecord

	// Counts maps each provider to how many records it returned (0 on failure).
	Counts map[string]int

	// Errors lists the providers that failed.
	Errors []*ProviderError
}

// SearchAll queries every provider concurrently. Each call is bounded by
// the provider timeout and the whole fan-out by the overall timeout. A
// failed provider contributes nothing and is reported in Gathered.Errors;
// SearchAll itself fails only for an empty query or no providers.
func (a *Aggregator) SearchAll(ctx context.Context, query string, limit int) (Gathered, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Gathered{}, ErrEmptyQuery
	}
	if len(a.providers) == 0 {
		return Gathered{}, ErrNoProviders
	}
	if limit <= 0 {
		limit = a.cfg.PerProviderLimit
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.OverallTimeout)
	defer cancel()

	type providerResult struct {
		records []types.PaperRecord
		err     error
	}
	results := make([]providerResult, len(a.providers))

	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, pcancel := context.WithTimeout(ctx, a.cfg.ProviderTimeout)
			defer pcancel()

			start := time.Now()
			// A provider that ignores pctx is abandoned at the deadline; the
			// buffered send lets it finish later without blocking.
			done := make(chan providerResult, 1)
			go func() {
				records, err := p.Search(pctx, query, limit)
				done <- providerResult{records: records, err: err}
			}()

			var r providerResult
			select {
			case r = <-done:
				if r.err == nil && pctx.Err() != nil {
					r.err = pctx.Err()
				}
			case <-pctx.Done():
				r.err = pctx.Err()
			}
			if r.err != nil {
				r.records = nil
			}
			a.metrics.ObserveProvider(p.Name(), time.Since(start), len(r.records), r.err)
			results[i] = r
		}()
	}
	wg.Wait()

	g := Gathered{Counts: make(map[string]int, len(a.providers))}
	for i, p := range a.providers {
		name := p.Name()
		r := results[i]
		if r.err != nil {
			a.log.Warn().Str("provider", name).Err(r.err).Msg("provider failed")
			g.Errors = append(g.Errors, &ProviderError{Provider: name, Err: r.err})
			g.Counts[name] = 0
			continue
		}
		for _, rec := range r.records {
			if len(rec.Sources) == 0 {
				rec.Sources = []string{name}
			}
			g.Records = append(g.Records, rec)
		}
		g.Counts[name] = len(r.records)
		a.log.Debug().Str("provider", name).Int("results", len(r.records)).Msg("provider returned")
	}
	return g, nil
}

// Research searches, deduplicates, ranks, and truncates to maxCount papers
// (the configured MaxResults when maxCount <= 0). With an evaluator the
// kept papers are graded and reordered by relevance.
func (a *Aggregator) Research(ctx context.Context, query string, maxCount int) (types.ResearchReport, error) {
	if maxCount <= 0 {
		maxCount = a.cfg.MaxResults
	}

	g, err := a.SearchAll(ctx, query, a.cfg.PerProviderLimit)
	if err != nil {
		return types.ResearchReport{}, err
	}

	unique, removed := Deduplicate(g.Records, a.cfg.DuplicateThreshold)
	a.metrics.AddDuplicates(removed)
	Rank(unique)
	if len(unique) > maxCount {
		unique = unique[:maxCount]
	}

	if a.evaluator != nil && len(unique) > 0 {
		a.evaluator.EvaluateAll(ctx, query, unique)
		RankByRelevance(unique)
	}

	report := types.ResearchReport{
		Query:             strings.TrimSpace(query),
		Papers:            unique,
		ProviderCounts:    g.Counts,
		TotalBeforeDedup:  len(g.Records),
		DuplicatesRemoved: removed,
	}
	if report.Papers == nil {
		report.Papers = []types.PaperRecord{}
	}
	for _, pe := range g.Errors {
		report.ProviderErrors = append(report.ProviderErrors, pe.Error())
	}

	a.log.Info().
		Str("query", report.Query).
		Int("gathered", report.TotalBeforeDedup).
		Int("duplicates", removed).
		Int("papers", len(report.Papers)).
		Msg("research complete")
	return report, nil
}
