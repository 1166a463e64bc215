// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-rag/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig parameterizes exponential backoff around rate-limited calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the wait before the first retry; it doubles each attempt (default 2s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
}

// SearchConfig holds settings for the multi-source aggregator.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`
	Retry      RetryConfig `json:"retry" yaml:"retry"`

	// MaxResults is the number of ranked papers kept after deduplication (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// PerProviderLimit is the number of results requested from each provider (default 20).
	PerProviderLimit int `json:"per_provider_limit" yaml:"per_provider_limit"`

	// Providers lists enabled providers in query order. Order matters: the
	// first-seen record wins merges during deduplication.
	Providers []string `json:"providers" yaml:"providers"`

	// ProviderTimeout bounds a single provider call (default 30s).
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout"`

	// OverallTimeout bounds the whole fan-out (default 60s).
	OverallTimeout time.Duration `json:"overall_timeout" yaml:"overall_timeout"`

	// DuplicateThreshold is the weighted title/author similarity at or above
	// which two records are merged (default 0.85).
	DuplicateThreshold float64 `json:"duplicate_threshold" yaml:"duplicate_threshold"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`
}

// ChunkerConfig holds text segmentation settings.
type ChunkerConfig struct {
	// ChunkSize is the maximum chunk length in characters (default 300).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// Overlap is the number of characters shared by consecutive chunks (default 50).
	Overlap int `json:"overlap" yaml:"overlap"`

	// MaxKeySentences is the number of salient sentences kept per paper (default 3).
	MaxKeySentences int `json:"max_key_sentences" yaml:"max_key_sentences"`
}

// EmbeddingConfig selects and tunes the embedding model.
type EmbeddingConfig struct {
	// Provider is "ollama" or "hashing".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the embedding model name (e.g. "all-minilm").
	Model string `json:"model" yaml:"model"`

	// Dimension is reported before the model loads (default 384).
	Dimension int `json:"dimension" yaml:"dimension"`

	// BatchSize bounds how many texts are encoded per model call (default 16).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Host is the Ollama server URL; empty uses OLLAMA_HOST.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// CacheDir enables the on-disk embedding cache when set.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
}

// IndexConfig describes the vector index and its durable store.
type IndexConfig struct {
	// Backend is "s3" or "local".
	Backend string `json:"backend" yaml:"backend"`

	// Bucket, Region, and Endpoint address the S3 store. Endpoint is
	// optional and enables path-style access for S3-compatible servers.
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Prefix is the key prefix under which the index artifacts live (default "rag-index").
	Prefix string `json:"prefix" yaml:"prefix"`

	// LocalDir is the root directory for the local backend.
	LocalDir string `json:"local_dir,omitempty" yaml:"local_dir,omitempty"`

	// CacheDir holds local copies of the artifacts.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// RetrievalConfig holds query-time defaults.
type RetrievalConfig struct {
	// TopK is the number of chunks returned (default 5).
	TopK int `json:"top_k" yaml:"top_k"`

	// ScoreThreshold drops results below this cosine similarity (default 0.3).
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold"`
}

// AIConfig holds settings for the text generation model.
type AIConfig struct {
	// Model is the generation model identifier (e.g. "llama3.2").
	Model string `json:"model" yaml:"model"`

	// Host is the Ollama server URL; empty uses OLLAMA_HOST.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// CatalogConfig locates the SQLite paper catalog.
type CatalogConfig struct {
	// Dir contains research.db and export files.
	Dir string `json:"dir" yaml:"dir"`
}

// PipelineConfig groups all component configurations.
type PipelineConfig struct {
	Search    SearchConfig    `json:"search" yaml:"search"`
	Chunker   ChunkerConfig   `json:"chunker" yaml:"chunker"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Index     IndexConfig     `json:"index" yaml:"index"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	LLM       AIConfig        `json:"llm" yaml:"llm"`
	Catalog   CatalogConfig   `json:"catalog" yaml:"catalog"`
}
