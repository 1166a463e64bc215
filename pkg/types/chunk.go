// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ChunkType identifies which part of a paper a chunk came from.
type ChunkType string

const (
	ChunkAbstract    ChunkType = "abstract"
	ChunkSummary     ChunkType = "summary"
	ChunkKeySentence ChunkType = "key_sentence"
)

// Embedding is a fixed-length vector produced by an embedding model.
type Embedding []float32

// TextChunk is one retrievable unit of paper text.
type TextChunk struct {
	// ChunkID encodes topic hash, paper key, chunk type, and ordinal
	// (e.g. "3f2a9c1d_1706.03762_abstract_0"). Stable across re-ingestion.
	ChunkID string `json:"chunk_id" yaml:"chunk_id"`

	// Text is the chunk content. Never empty.
	Text string `json:"text" yaml:"text"`

	// PaperID is the Key() of the paper the chunk was cut from.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	PaperTitle string   `json:"paper_title" yaml:"paper_title"`
	Authors    []string `json:"authors" yaml:"authors"`

	// Source is the primary provider that found the paper.
	Source string `json:"source" yaml:"source"`

	ChunkType ChunkType     `json:"chunk_type" yaml:"chunk_type"`
	Metadata  ChunkMetadata `json:"metadata" yaml:"metadata"`
}

// ChunkMetadata carries paper-level attributes copied onto every chunk so
// search results are self-describing.
type ChunkMetadata struct {
	Published     string   `json:"published,omitempty" yaml:"published,omitempty"`
	CitationCount int      `json:"citation_count" yaml:"citation_count"`
	Venue         string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	FieldsOfStudy []string `json:"fields_of_study,omitempty" yaml:"fields_of_study,omitempty"`

	// Topic is the research topic the chunk was ingested under.
	Topic string `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// IndexEntry is the durable record stored for each vector row.
type IndexEntry struct {
	// Row is the dense 0-based position of the vector. Rows are never reused.
	Row int `json:"row" yaml:"row"`

	TextChunk `yaml:",inline"`
}

// SearchResult is one hit from a vector index search.
type SearchResult struct {
	IndexEntry `yaml:",inline"`

	// Score is the cosine similarity between the query and the chunk.
	Score float64 `json:"score" yaml:"score"`
}
