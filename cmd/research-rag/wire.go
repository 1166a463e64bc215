// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/pdiddy/research-rag/internal/blobstore"
	"github.com/pdiddy/research-rag/internal/catalog"
	"github.com/pdiddy/research-rag/internal/chunker"
	"github.com/pdiddy/research-rag/internal/embedding"
	"github.com/pdiddy/research-rag/internal/httputil"
	"github.com/pdiddy/research-rag/internal/llm"
	"github.com/pdiddy/research-rag/internal/rag"
	"github.com/pdiddy/research-rag/internal/search"
	"github.com/pdiddy/research-rag/internal/vectorindex"
	"github.com/pdiddy/research-rag/pkg/types"
)

// evalConcurrency bounds parallel relevance grading calls.
const evalConcurrency = 4

func newGenerator(cfg types.AIConfig) (llm.Generator, error) {
	o, err := llm.NewOllama(cfg.Host, cfg.Model)
	if err != nil {
		return nil, err
	}
	return llm.WithRetry(o, httputil.PolicyFrom(cfg.Retry)), nil
}

func newAggregator(cfg types.PipelineConfig, evaluate bool) (*search.Aggregator, error) {
	providers, err := search.NewProviders(cfg.Search)
	if err != nil {
		return nil, err
	}
	opts := []search.Option{search.WithLogger(logger), search.WithMetrics(metrics)}
	if evaluate {
		gen, err := newGenerator(cfg.LLM)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithEvaluator(search.NewEvaluator(gen, evalConcurrency, logger)))
	}
	return search.New(providers, cfg.Search, opts...), nil
}

// newEmbedder builds the embedding service. The returned func closes the
// embedding cache, if one was opened.
func newEmbedder(cfg types.EmbeddingConfig) (*embedding.Service, func(), error) {
	var (
		name = cfg.Model
		open embedding.Opener
	)
	switch cfg.Provider {
	case "ollama", "":
		open = embedding.OpenOllama(cfg.Host, cfg.Model)
	case "hashing":
		name = "hashing"
		open = embedding.OpenHashing(cfg.Dimension)
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q (want ollama or hashing)", cfg.Provider)
	}

	opts := []embedding.Option{embedding.WithLogger(logger), embedding.WithBatchSize(cfg.BatchSize)}
	closeFn := func() {}
	if cfg.CacheDir != "" {
		cache, err := embedding.OpenCache(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, embedding.WithCache(cache))
		closeFn = func() {
			if err := cache.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing embedding cache")
			}
		}
	}
	return embedding.NewService(name, cfg.Dimension, open, opts...), closeFn, nil
}

func openIndex(ctx context.Context, cfg types.PipelineConfig) (*vectorindex.Index, error) {
	store, err := blobstore.Open(cfg.Index)
	if err != nil {
		return nil, err
	}
	ix, err := vectorindex.New(ctx, store, cfg.Embedding.Dimension,
		vectorindex.WithLogger(logger),
		vectorindex.WithCacheDir(cfg.Index.CacheDir),
		vectorindex.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	if err := ix.LoadError(); err != nil {
		logger.Warn().Err(err).Str("location", store.Location()).Msg("starting with an empty index")
	}
	return ix, nil
}

// newPipeline wires chunker, embedder, and index. withGenerator also
// connects the answer model. The returned func releases resources.
func newPipeline(ctx context.Context, cfg types.PipelineConfig, withGenerator bool) (*rag.Pipeline, func(), error) {
	emb, closeFn, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, nil, err
	}
	ix, err := openIndex(ctx, cfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	opts := []rag.Option{
		rag.WithLogger(logger),
		rag.WithMetrics(metrics),
		rag.WithRetrieval(cfg.Retrieval),
	}
	if withGenerator {
		gen, err := newGenerator(cfg.LLM)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		opts = append(opts, rag.WithGenerator(gen))
	}
	return rag.New(chunker.New(cfg.Chunker), emb, ix, opts...), closeFn, nil
}

func openCatalog(cfg types.PipelineConfig) (*catalog.Store, error) {
	return catalog.Open(cfg.Catalog)
}
