// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-rag/internal/blobstore"
	"github.com/pdiddy/research-rag/internal/chunker"
	"github.com/pdiddy/research-rag/internal/embedding"
	"github.com/pdiddy/research-rag/internal/llm"
	"github.com/pdiddy/research-rag/internal/vectorindex"
	"github.com/pdiddy/research-rag/pkg/types"
)

const testDim = 64

var papers = []types.PaperRecord{
	{
		Title:         "Attention Is All You Need",
		Authors:       []string{"Ashish Vaswani", "Noam Shazeer", "Niki Parmar", "Jakob Uszkoreit"},
		Abstract:      "The dominant sequence transduction models are based on recurrent networks. We propose the Transformer, based solely on attention mechanisms.",
		ArxivID:       "1706.03762",
		Venue:         "NeurIPS",
		CitationCount: 90000,
		Sources:       []string{"arxiv"},
	},
	{
		Title:    "Deep Residual Learning for Image Recognition",
		Authors:  []string{"Kaiming He"},
		Abstract: "Deeper neural networks are more difficult to train. We present a residual learning framework for image recognition.",
		ArxivID:  "1512.03385",
		Sources:  []string{"semantic_scholar"},
	},
}

// zeroEmbedder returns all-zero vectors, as a failed embedding batch does.
type zeroEmbedder struct{}

func (zeroEmbedder) EmbedChunks(_ context.Context, chunks []types.TextChunk, _ int) (map[string]types.Embedding, error) {
	out := make(map[string]types.Embedding, len(chunks))
	for _, c := range chunks {
		out[c.ChunkID] = make(types.Embedding, testDim)
	}
	return out, nil
}

func (zeroEmbedder) EncodeOne(context.Context, string) (types.Embedding, error) {
	return make(types.Embedding, testDim), nil
}

// failingStore refuses every upload.
type failingStore struct{ blobstore.Store }

func (failingStore) Upload(context.Context, string, string) error {
	return errors.New("bucket unreachable")
}

func newPipeline(t *testing.T, store blobstore.Store, e Embedder, opts ...Option) *Pipeline {
	t.Helper()
	if store == nil {
		store = blobstore.NewLocalStore(t.TempDir(), "rag-index")
	}
	if e == nil {
		e = embedding.NewService("hashing", testDim, embedding.OpenHashing(testDim))
	}
	ix, err := vectorindex.New(context.Background(), store, testDim, vectorindex.WithCacheDir(t.TempDir()))
	require.NoError(t, err)
	opts = append([]Option{WithRetrieval(types.RetrievalConfig{TopK: 5, ScoreThreshold: 0})}, opts...)
	return New(chunker.New(types.ChunkerConfig{}), e, ix, opts...)
}

func TestIngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, nil, nil)

	report, err := p.Ingest(ctx, papers, "transformers")
	require.NoError(t, err)
	assert.Equal(t, 2, report.PapersProcessed)
	assert.Positive(t, report.ChunksCreated)
	assert.Equal(t, report.ChunksCreated, report.ChunksStored)
	assert.Zero(t, report.ChunksSkipped)
	assert.True(t, report.Synced)
	assert.Equal(t, report.ChunksStored, report.TotalChunks)

	results, err := p.Retrieve(ctx, "attention mechanisms transformer", 3, -1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)
	assert.Equal(t, "1706.03762", results[0].PaperID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestIngestTwiceSkipsExisting(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, nil, nil)

	first, err := p.Ingest(ctx, papers, "transformers")
	require.NoError(t, err)
	second, err := p.Ingest(ctx, papers, "transformers")
	require.NoError(t, err)

	assert.Zero(t, second.ChunksStored)
	assert.Equal(t, second.ChunksCreated, second.ChunksSkipped)
	assert.Equal(t, first.TotalChunks, second.TotalChunks)

	// The same papers under another topic get distinct chunk ids.
	third, err := p.Ingest(ctx, papers, "vision")
	require.NoError(t, err)
	assert.Equal(t, third.ChunksCreated, third.ChunksStored)
	assert.Equal(t, first.TotalChunks*2, third.TotalChunks)
}

func TestIngestNoChunks(t *testing.T) {
	p := newPipeline(t, nil, nil)
	_, err := p.Ingest(context.Background(), []types.PaperRecord{{Title: "Empty"}}, "t")
	assert.ErrorIs(t, err, ErrNoChunks)

	_, err = p.Ingest(context.Background(), nil, "t")
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestIngestZeroEmbeddings(t *testing.T) {
	p := newPipeline(t, nil, zeroEmbedder{})
	report, err := p.Ingest(context.Background(), papers, "t")
	assert.ErrorIs(t, err, ErrNoEmbeddings)
	assert.Positive(t, report.ChunksCreated)
	assert.Zero(t, p.Index().Len())
}

func TestIngestSyncFailureIsReported(t *testing.T) {
	store := failingStore{blobstore.NewLocalStore(t.TempDir(), "rag-index")}
	p := newPipeline(t, store, nil)

	report, err := p.Ingest(context.Background(), papers, "t")
	require.NoError(t, err)
	assert.False(t, report.Synced)
	assert.Contains(t, report.SyncError, "bucket unreachable")
	assert.Positive(t, report.ChunksStored)

	// Stored chunks stay searchable in memory.
	results, err := p.Retrieve(context.Background(), "residual learning", 5, -1)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestModelDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	// The model reports 32 dimensions; the index was configured for testDim.
	wrong := embedding.NewService("hashing", testDim, embedding.OpenHashing(32))
	p := newPipeline(t, nil, wrong)

	_, err := p.Ingest(ctx, papers, "transformers")
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Zero(t, p.Index().Len())

	_, err = p.Retrieve(ctx, "attention", 0, -1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRetrieveBlankQuery(t *testing.T) {
	p := newPipeline(t, nil, nil)
	_, err := p.Ingest(context.Background(), papers, "t")
	require.NoError(t, err)

	results, err := p.Retrieve(context.Background(), "   ", 5, -1)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	p := newPipeline(t, nil, nil)
	results, err := p.Retrieve(context.Background(), "anything", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "No relevant research papers found.", FormatContext(nil))

	r := types.SearchResult{Score: 0.8123}
	r.PaperTitle = "Attention Is All You Need"
	r.Authors = papers[0].Authors
	r.Source = "arxiv"
	r.ChunkType = types.ChunkAbstract
	r.Text = "We propose the Transformer."
	r.Metadata.CitationCount = 90000

	out := FormatContext([]types.SearchResult{r})
	assert.True(t, strings.HasPrefix(out, "RELEVANT RESEARCH PAPERS:\n"+strings.Repeat("=", 50)))
	assert.Contains(t, out, "[Paper 1] Attention Is All You Need")
	assert.Contains(t, out, "Authors: Ashish Vaswani, Noam Shazeer, Niki Parmar...")
	assert.Contains(t, out, "Source: arxiv | Citations: 90000 | Venue: N/A")
	assert.Contains(t, out, "Section: abstract | Relevance: 0.812")
	assert.Contains(t, out, "Content: We propose the Transformer.")
}

func TestAnswerNoContext(t *testing.T) {
	var calls atomic.Int32
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "unused", nil
	})
	p := newPipeline(t, nil, nil, WithGenerator(gen))

	ans, err := p.Answer(context.Background(), "what is attention?")
	require.NoError(t, err)
	assert.Equal(t, StatusNoContext, ans.Status)
	assert.Equal(t, noContextMessage, ans.Response)
	assert.Empty(t, ans.Papers)
	assert.Zero(t, calls.Load())
	assert.Empty(t, p.History())
}

func TestAnswerNoGenerator(t *testing.T) {
	p := newPipeline(t, nil, nil)
	_, err := p.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoGenerator)
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	var prompts []string
	gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return fmt.Sprintf("answer %d", len(prompts)), nil
	})
	p := newPipeline(t, nil, nil, WithGenerator(gen))
	_, err := p.Ingest(ctx, papers, "transformers")
	require.NoError(t, err)

	ans, err := p.Answer(ctx, "how does attention replace recurrent networks")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, ans.Status)
	assert.Equal(t, "answer 1", ans.Response)
	require.NotEmpty(t, ans.Papers)
	assert.Equal(t, ans.Context[0].Score, ans.Confidence)

	ids := map[string]bool{}
	for _, rp := range ans.Papers {
		assert.False(t, ids[rp.PaperID], "paper %s referenced twice", rp.PaperID)
		ids[rp.PaperID] = true
	}

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "RELEVANT RESEARCH PAPERS:")
	assert.Contains(t, prompts[0], "USER QUESTION: how does attention replace recurrent networks")
	assert.NotContains(t, prompts[0], "PREVIOUS CONVERSATION:")

	_, err = p.Answer(ctx, "what about residual learning")
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "PREVIOUS CONVERSATION:")
	assert.Contains(t, prompts[1], "User: how does attention replace recurrent networks")
	assert.Contains(t, prompts[1], "Assistant: answer 1...")

	history := p.History()
	require.Len(t, history, 2)
	assert.Equal(t, "what about residual learning", history[1].Query)
	assert.NotEmpty(t, history[0].Time)

	p.ClearHistory()
	assert.Empty(t, p.History())
}

func TestAnswerGeneratorError(t *testing.T) {
	ctx := context.Background()
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("model offline")
	})
	p := newPipeline(t, nil, nil, WithGenerator(gen))
	_, err := p.Ingest(ctx, papers, "t")
	require.NoError(t, err)

	_, err = p.Answer(ctx, "attention")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
	assert.Empty(t, p.History())
}

func TestHistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) { return "ok", nil })
	p := newPipeline(t, nil, nil, WithGenerator(gen))
	_, err := p.Ingest(ctx, papers, "t")
	require.NoError(t, err)

	for i := 0; i < maxHistory+3; i++ {
		_, err := p.Answer(ctx, fmt.Sprintf("attention question %d", i))
		require.NoError(t, err)
	}
	history := p.History()
	require.Len(t, history, maxHistory)
	assert.Equal(t, "attention question 3", history[0].Query)
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	var history []Turn
	for i := 0; i < 5; i++ {
		history = append(history, Turn{Query: fmt.Sprintf("q%d", i), Response: strings.Repeat("x", 300)})
	}
	prompt := BuildPrompt("final", "ctx", history)

	assert.NotContains(t, prompt, "User: q1\n")
	assert.Contains(t, prompt, "User: q2\n")
	assert.Contains(t, prompt, "User: q4\n")
	assert.Contains(t, prompt, "Assistant: "+strings.Repeat("x", historySnippet)+"...\n")
	assert.NotContains(t, prompt, strings.Repeat("x", historySnippet+1))
}

func TestStats(t *testing.T) {
	p := newPipeline(t, nil, nil)
	_, err := p.Ingest(context.Background(), papers, "t")
	require.NoError(t, err)

	s := p.Stats()
	assert.Equal(t, p.Index().Len(), s.TotalChunks)
	assert.Equal(t, 2, s.UniquePapers)
	assert.Equal(t, testDim, s.Dimension)
}
