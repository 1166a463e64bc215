// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-rag/internal/secrets"
	"github.com/pdiddy/research-rag/pkg/types"
)

const defaultUserAgent = "research-rag/0.1"

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)

	viper.SetDefault("search.max_results", 20)
	viper.SetDefault("search.per_provider_limit", 20)
	viper.SetDefault("search.providers", []string{"arxiv", "semantic_scholar"})
	viper.SetDefault("search.provider_timeout", 30*time.Second)
	viper.SetDefault("search.overall_timeout", 60*time.Second)
	viper.SetDefault("search.duplicate_threshold", 0.85)
	viper.SetDefault("search.max_attempts", 3)
	viper.SetDefault("search.retry_base_delay", 2*time.Second)
	viper.SetDefault("search.user_agent", defaultUserAgent)
	viper.SetDefault("search.http_timeout", 30*time.Second)

	viper.SetDefault("chunker.chunk_size", 300)
	viper.SetDefault("chunker.overlap", 50)
	viper.SetDefault("chunker.max_key_sentences", 3)

	viper.SetDefault("embedding.provider", "ollama")
	viper.SetDefault("embedding.model", "all-minilm")
	viper.SetDefault("embedding.dimension", 384)
	viper.SetDefault("embedding.batch_size", 16)

	viper.SetDefault("index.backend", "local")
	viper.SetDefault("index.prefix", "rag-index")
	viper.SetDefault("index.local_dir", "rag-store")
	viper.SetDefault("index.cache_dir", filepath.Join(os.TempDir(), "rag_cache"))

	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.score_threshold", 0.3)

	viper.SetDefault("llm.model", "llama3.2")
	viper.SetDefault("llm.max_attempts", 3)
	viper.SetDefault("llm.retry_base_delay", 2*time.Second)

	viper.SetDefault("catalog.dir", "catalog")
}

// loadConfig assembles the pipeline configuration from viper (defaults,
// config file, RESEARCH_RAG_* environment, bound flags) and the loaded
// secrets.
func loadConfig() types.PipelineConfig {
	return types.PipelineConfig{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("search.http_timeout"),
				UserAgent: viper.GetString("search.user_agent"),
			},
			Retry: types.RetryConfig{
				MaxAttempts: viper.GetInt("search.max_attempts"),
				BaseDelay:   viper.GetDuration("search.retry_base_delay"),
			},
			MaxResults:         viper.GetInt("search.max_results"),
			PerProviderLimit:   viper.GetInt("search.per_provider_limit"),
			Providers:          splitList(viper.GetStringSlice("search.providers")),
			ProviderTimeout:    viper.GetDuration("search.provider_timeout"),
			OverallTimeout:     viper.GetDuration("search.overall_timeout"),
			DuplicateThreshold: viper.GetFloat64("search.duplicate_threshold"),
			SemanticScholarAPIKey: secretDefault(secrets.SemanticScholarAPIKey,
				viper.GetString("search.semantic_scholar_api_key")),
			OpenAlexEmail: secretDefault(secrets.OpenAlexEmail, viper.GetString("search.openalex_email")),
		},
		Chunker: types.ChunkerConfig{
			ChunkSize:       viper.GetInt("chunker.chunk_size"),
			Overlap:         viper.GetInt("chunker.overlap"),
			MaxKeySentences: viper.GetInt("chunker.max_key_sentences"),
		},
		Embedding: types.EmbeddingConfig{
			Provider:  viper.GetString("embedding.provider"),
			Model:     viper.GetString("embedding.model"),
			Dimension: viper.GetInt("embedding.dimension"),
			BatchSize: viper.GetInt("embedding.batch_size"),
			Host:      viper.GetString("embedding.host"),
			CacheDir:  viper.GetString("embedding.cache_dir"),
		},
		Index: types.IndexConfig{
			Backend:  viper.GetString("index.backend"),
			Bucket:   viper.GetString("index.bucket"),
			Region:   viper.GetString("index.region"),
			Endpoint: viper.GetString("index.endpoint"),
			Prefix:   viper.GetString("index.prefix"),
			LocalDir: viper.GetString("index.local_dir"),
			CacheDir: viper.GetString("index.cache_dir"),
		},
		Retrieval: types.RetrievalConfig{
			TopK:           viper.GetInt("retrieval.top_k"),
			ScoreThreshold: viper.GetFloat64("retrieval.score_threshold"),
		},
		LLM: types.AIConfig{
			Model: viper.GetString("llm.model"),
			Host:  viper.GetString("llm.host"),
			Retry: types.RetryConfig{
				MaxAttempts: viper.GetInt("llm.max_attempts"),
				BaseDelay:   viper.GetDuration("llm.retry_base_delay"),
			},
		},
		Catalog: types.CatalogConfig{
			Dir: viper.GetString("catalog.dir"),
		},
	}
}

// splitList flattens comma-separated entries, as produced by environment
// variables such as RESEARCH_RAG_SEARCH_PROVIDERS=arxiv,openalex.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
