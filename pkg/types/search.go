// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-rag pipeline:
// paper records flowing out of the aggregator, text chunks and index entries
// flowing through the retrieval store, and the configuration for each component.
package types

// ResearchReport is the outcome of one aggregated research query.
type ResearchReport struct {
	// Query is the research question that produced the report.
	Query string `json:"query" yaml:"query"`

	// Papers are the deduplicated papers in rank order.
	Papers []PaperRecord `json:"papers" yaml:"papers"`

	// ProviderCounts maps each provider to the number of records it returned.
	// Failed providers report 0.
	ProviderCounts map[string]int `json:"provider_counts" yaml:"provider_counts"`

	// ProviderErrors lists "provider: error" strings for failed providers.
	ProviderErrors []string `json:"provider_errors,omitempty" yaml:"provider_errors,omitempty"`

	// TotalBeforeDedup is the number of records gathered across providers.
	TotalBeforeDedup int `json:"total_before_dedup" yaml:"total_before_dedup"`

	// DuplicatesRemoved is the number of records merged into others.
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`
}
