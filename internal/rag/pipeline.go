// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rag ties chunking, embedding, and the vector index into the
// ingest and retrieve operations, and answers questions over the retrieved
// context with a generation model.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/uniplaces/carbon"

	"github.com/pdiddy/research-rag/internal/chunker"
	"github.com/pdiddy/research-rag/internal/embedding"
	"github.com/pdiddy/research-rag/internal/llm"
	"github.com/pdiddy/research-rag/internal/telemetry"
	"github.com/pdiddy/research-rag/internal/vectorindex"
	"github.com/pdiddy/research-rag/pkg/types"
)

// Sentinel errors returned by Ingest, Retrieve, and Answer.
var (
	ErrNoChunks     = errors.New("no text chunks generated from papers")
	ErrNoEmbeddings = errors.New("failed to create embeddings")
	ErrNoGenerator  = errors.New("no generation model configured")

	// ErrDimensionMismatch means the embedding model's output size differs
	// from the index dimension (embedding.dimension).
	ErrDimensionMismatch = errors.New("embedding model dimension does not match the index: set embedding.dimension to the model's output size")
)

// Status values for Answer.
const (
	StatusSuccess   = "success"
	StatusNoContext = "no_context"
)

const (
	maxHistory       = 10
	promptHistory    = 3
	historySnippet   = 200
	defaultTopK      = 5
	noContextMessage = "I don't have enough relevant research papers in my knowledge base to answer this question. Please try a different query or add more papers to the knowledge base."
)

// Embedder produces chunk and query vectors. *embedding.Service satisfies it.
type Embedder interface {
	EmbedChunks(ctx context.Context, chunks []types.TextChunk, batchSize int) (map[string]types.Embedding, error)
	EncodeOne(ctx context.Context, text string) (types.Embedding, error)
}

// Pipeline runs ingestion and retrieval over one vector index.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  Embedder
	index     *vectorindex.Index
	generator llm.Generator
	cfg       types.RetrievalConfig
	log       zerolog.Logger
	metrics   *telemetry.Metrics

	mu      sync.Mutex
	history []Turn
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics records chunk counts per ingestion stage.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithGenerator sets the model Answer uses.
func WithGenerator(g llm.Generator) Option {
	return func(p *Pipeline) { p.generator = g }
}

// WithRetrieval sets the default top-k and score threshold.
func WithRetrieval(cfg types.RetrievalConfig) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// New returns a Pipeline.
func New(c *chunker.Chunker, e Embedder, ix *vectorindex.Index, opts ...Option) *Pipeline {
	p := &Pipeline{
		chunker:  c,
		embedder: e,
		index:    ix,
		cfg:      types.RetrievalConfig{TopK: defaultTopK},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.TopK <= 0 {
		p.cfg.TopK = defaultTopK
	}
	return p
}

// IngestReport summarizes one Ingest call.
type IngestReport struct {
	PapersProcessed int `json:"papers_processed" yaml:"papers_processed"`
	ChunksCreated   int `json:"chunks_created" yaml:"chunks_created"`
	ChunksStored    int `json:"chunks_stored" yaml:"chunks_stored"`

	// ChunksSkipped counts chunks not stored: already present, or with no
	// usable embedding.
	ChunksSkipped int `json:"chunks_skipped" yaml:"chunks_skipped"`

	// TotalChunks is the index size after the call.
	TotalChunks int `json:"total_chunks" yaml:"total_chunks"`

	// Synced is false when the durable store could not be updated. The
	// stored chunks remain searchable in this process.
	Synced    bool   `json:"synced" yaml:"synced"`
	SyncError string `json:"sync_error,omitempty" yaml:"sync_error,omitempty"`
}

// Ingest chunks papers under topic, embeds every chunk in one batched call,
// and adds the chunks with a usable embedding to the index. Chunks whose
// embedding is all zero (empty text or a failed batch) are skipped. A
// failure to persist is reported in the report, not returned.
func (p *Pipeline) Ingest(ctx context.Context, papers []types.PaperRecord, topic string) (IngestReport, error) {
	var chunks []types.TextChunk
	for _, paper := range papers {
		chunks = append(chunks, p.chunker.Chunk(paper, topic)...)
	}
	report := IngestReport{PapersProcessed: len(papers), ChunksCreated: len(chunks)}
	if len(chunks) == 0 {
		return report, ErrNoChunks
	}
	p.metrics.AddChunks("created", len(chunks))

	embeddings, err := p.embedder.EmbedChunks(ctx, chunks, 0)
	if err != nil {
		return report, fmt.Errorf("embedding chunks: %w", err)
	}
	usable := make(map[string]types.Embedding, len(embeddings))
	for id, v := range embeddings {
		if !embedding.IsZero(v) {
			usable[id] = v
		}
	}
	if len(usable) == 0 {
		return report, ErrNoEmbeddings
	}
	want := p.index.Dimension()
	for _, v := range usable {
		if len(v) != want {
			return report, fmt.Errorf("%w (model %d, index %d)", ErrDimensionMismatch, len(v), want)
		}
	}
	if dropped := len(embeddings) - len(usable); dropped > 0 {
		p.log.Warn().Int("chunks", dropped).Msg("dropping chunks with zero embeddings")
	}

	added, err := p.index.Add(ctx, chunks, usable)
	var se *vectorindex.SyncError
	switch {
	case errors.As(err, &se):
		report.SyncError = se.Error()
	case err != nil:
		return report, fmt.Errorf("adding chunks to index: %w", err)
	}

	report.ChunksStored = added.Added
	report.ChunksSkipped = len(chunks) - added.Added
	report.Synced = added.Synced
	report.TotalChunks = p.index.Len()
	p.metrics.AddChunks("stored", added.Added)

	p.log.Info().
		Str("topic", topic).
		Int("papers", report.PapersProcessed).
		Int("created", report.ChunksCreated).
		Int("stored", report.ChunksStored).
		Int("skipped", report.ChunksSkipped).
		Bool("synced", report.Synced).
		Msg("ingest complete")
	return report, nil
}

// Retrieve returns up to k chunks relevant to query, best first. k <= 0
// uses the configured top-k and a negative threshold the configured one.
// No matches is an empty, successful result.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int, threshold float64) ([]types.SearchResult, error) {
	if k <= 0 {
		k = p.cfg.TopK
	}
	if threshold < 0 {
		threshold = p.cfg.ScoreThreshold
	}
	if strings.TrimSpace(query) == "" {
		return []types.SearchResult{}, nil
	}
	results, err := p.index.SearchByText(ctx, query, p.embedder, k, threshold)
	var de *vectorindex.DimensionError
	if errors.As(err, &de) {
		return nil, fmt.Errorf("%w (model %d, index %d)", ErrDimensionMismatch, de.Got, de.Want)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	p.log.Debug().Str("query", query).Int("results", len(results)).Msg("retrieved")
	return results, nil
}

// FormatContext renders retrieved chunks as the context block of a prompt.
func FormatContext(results []types.SearchResult) string {
	if len(results) == 0 {
		return "No relevant research papers found."
	}

	var b strings.Builder
	b.WriteString("RELEVANT RESEARCH PAPERS:\n")
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n")
	for i, r := range results {
		authors := strings.Join(first(r.Authors, 3), ", ")
		if len(r.Authors) > 3 {
			authors += "..."
		}
		venue := r.Metadata.Venue
		if venue == "" {
			venue = "N/A"
		}
		fmt.Fprintf(&b, "\n[Paper %d] %s\n", i+1, orDefault(r.PaperTitle, "Unknown Title"))
		fmt.Fprintf(&b, "Authors: %s\n", authors)
		fmt.Fprintf(&b, "Source: %s | Citations: %d | Venue: %s\n", r.Source, r.Metadata.CitationCount, venue)
		fmt.Fprintf(&b, "Section: %s | Relevance: %.3f\n", r.ChunkType, r.Score)
		fmt.Fprintf(&b, "Content: %s\n", r.Text)
		b.WriteString(strings.Repeat("-", 40))
		b.WriteString("\n")
	}
	return b.String()
}

// ReferencedPaper is a distinct paper behind an answer's context.
type ReferencedPaper struct {
	PaperID        string   `json:"paper_id" yaml:"paper_id"`
	Title          string   `json:"title" yaml:"title"`
	Authors        []string `json:"authors" yaml:"authors"`
	Source         string   `json:"source" yaml:"source"`
	CitationCount  int      `json:"citation_count" yaml:"citation_count"`
	Venue          string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	RelevanceScore float64  `json:"relevance_score" yaml:"relevance_score"`
}

// Answer is the result of answering one question.
type Answer struct {
	Status     string               `json:"status" yaml:"status"`
	Query      string               `json:"query" yaml:"query"`
	Response   string               `json:"response" yaml:"response"`
	Papers     []ReferencedPaper    `json:"retrieved_papers" yaml:"retrieved_papers"`
	Context    []types.SearchResult `json:"retrieved_context,omitempty" yaml:"retrieved_context,omitempty"`
	Confidence float64              `json:"confidence_score" yaml:"confidence_score"`
	Elapsed    time.Duration        `json:"execution_time" yaml:"execution_time"`
}

// Turn is one question and answer kept in the conversation history.
type Turn struct {
	Time           string  `json:"timestamp" yaml:"timestamp"`
	Query          string  `json:"query" yaml:"query"`
	Response       string  `json:"response" yaml:"response"`
	Papers         int     `json:"referenced_papers" yaml:"referenced_papers"`
	RetrievalScore float64 `json:"retrieval_score" yaml:"retrieval_score"`
}

// Answer retrieves context for question and asks the generation model to
// answer from it. When nothing relevant is stored the model is not called
// and the status is no_context. Successful answers join the conversation
// history, which keeps the last ten turns.
func (p *Pipeline) Answer(ctx context.Context, question string) (Answer, error) {
	start := time.Now()
	if p.generator == nil {
		return Answer{}, ErrNoGenerator
	}

	results, err := p.Retrieve(ctx, question, 0, -1)
	if err != nil {
		return Answer{}, err
	}
	if len(results) == 0 {
		return Answer{
			Status:   StatusNoContext,
			Query:    question,
			Response: noContextMessage,
			Papers:   []ReferencedPaper{},
			Elapsed:  time.Since(start),
		}, nil
	}

	prompt := BuildPrompt(question, FormatContext(results), p.History())
	response, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	papers := referencedPapers(results)
	confidence := results[0].Score

	p.mu.Lock()
	p.history = append(p.history, Turn{
		Time:           carbon.Now().DateTimeString(),
		Query:          question,
		Response:       response,
		Papers:         len(papers),
		RetrievalScore: confidence,
	})
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
	p.mu.Unlock()

	return Answer{
		Status:     StatusSuccess,
		Query:      question,
		Response:   response,
		Papers:     papers,
		Context:    results,
		Confidence: confidence,
		Elapsed:    time.Since(start),
	}, nil
}

// BuildPrompt assembles the answer prompt from the context block, the most
// recent history turns, and the question.
func BuildPrompt(question, contextBlock string, history []Turn) string {
	var b strings.Builder
	b.WriteString(`You are a research assistant AI that helps users understand academic research papers. Your responses should be:
1. ACCURATE: Only use information from the provided research papers
2. COMPREHENSIVE: Synthesize information across multiple papers when relevant
3. CITED: Always reference specific papers and authors when making claims
4. BALANCED: Present different perspectives when papers disagree
5. HELPFUL: Explain complex concepts clearly and provide actionable insights

When you don't have enough information from the papers to answer a question completely, clearly state what you can and cannot answer based on the available research.
`)

	if len(history) > 0 {
		b.WriteString("\nPREVIOUS CONVERSATION:\n")
		for _, t := range history[max(0, len(history)-promptHistory):] {
			fmt.Fprintf(&b, "User: %s\n", t.Query)
			fmt.Fprintf(&b, "Assistant: %s...\n", snippet(t.Response, historySnippet))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", contextBlock)
	fmt.Fprintf(&b, "\nUSER QUESTION: %s\n", question)
	b.WriteString(`
Please provide a comprehensive answer based on the research papers above. Include:
- Direct answers with specific citations (Author, Paper Title)
- Key findings and methodologies mentioned
- Any limitations or areas for future research mentioned
- If multiple papers discuss the topic, synthesize their perspectives

Format citations as: (Author et al., "Paper Title")`)
	return b.String()
}

// History returns a copy of the conversation history, oldest first.
func (p *Pipeline) History() []Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Turn, len(p.history))
	copy(out, p.history)
	return out
}

// ClearHistory forgets all conversation turns.
func (p *Pipeline) ClearHistory() {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
	p.log.Debug().Msg("conversation history cleared")
}

// Stats returns the index statistics.
func (p *Pipeline) Stats() vectorindex.Stats {
	return p.index.Stats()
}

// Index returns the underlying vector index.
func (p *Pipeline) Index() *vectorindex.Index { return p.index }

func referencedPapers(results []types.SearchResult) []ReferencedPaper {
	seen := make(map[string]bool)
	var papers []ReferencedPaper
	for _, r := range results {
		if r.PaperID == "" || seen[r.PaperID] {
			continue
		}
		seen[r.PaperID] = true
		papers = append(papers, ReferencedPaper{
			PaperID:        r.PaperID,
			Title:          r.PaperTitle,
			Authors:        r.Authors,
			Source:         r.Source,
			CitationCount:  r.Metadata.CitationCount,
			Venue:          r.Metadata.Venue,
			RelevanceScore: r.Score,
		})
	}
	return papers
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
