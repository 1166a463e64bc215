// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-rag/pkg/types"
)

const sampleAbstract = `The dominant sequence transduction models are based on complex recurrent or
convolutional neural networks that include an encoder and a decoder. We propose a new simple
network architecture, the Transformer, based solely on attention mechanisms. Experiments on two
machine translation tasks show these models to be superior in quality while being more
parallelizable and requiring significantly less time to train. Our model achieves 28.4 BLEU on the
WMT 2014 English-to-German translation task, improving over the existing best results. We show
that the Transformer generalizes well to other tasks.`

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses whitespace", "Hello   world\n\nthis is a test.", "Hello world this is a test"},
		{"drops short fragments", "Fig. 1. This sentence is long enough.", "This sentence is long enough"},
		{"joins sentences", "First sentence is here. Second sentence is here.", "First sentence is here. Second sentence is here"},
		{"only short sentences", "Hi. Ok. Yes.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanStripsDisallowedCharacters(t *testing.T) {
	got := Clean("Deep learning © works well & scales, (mostly): yes; résumé-ready!")
	assert.NotContains(t, got, "©")
	assert.NotContains(t, got, "&")
	assert.Contains(t, got, "résumé-ready!")
	assert.Contains(t, got, "(mostly):")
}

func TestSplitShortText(t *testing.T) {
	got := Split("A short piece of text.", 300, 50)
	assert.Equal(t, []string{"A short piece of text."}, got)
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, Split("", 300, 50))
	assert.Empty(t, Split("   ", 300, 50))
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := "The cat sat down. It was a sunny day today and nobody minded."
	got := Split(text, 20, 5)
	require.NotEmpty(t, got)
	assert.Equal(t, "The cat sat down.", got[0])
}

func TestSplitFallsBackToWordBoundary(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda"
	got := Split(text, 20, 0)
	require.Greater(t, len(got), 1)
	for _, c := range got {
		for _, w := range strings.Fields(c) {
			assert.Contains(t, text, w)
			assert.True(t, strings.Contains(" "+text+" ", " "+w+" "), "word %q was cut", w)
		}
	}
}

func TestSplitHardBreak(t *testing.T) {
	text := strings.Repeat("a", 250)
	got := Split(text, 100, 10)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 100)
	assert.Len(t, got[1], 100)
	assert.Len(t, got[2], 70)
}

func TestSplitOverlapClamped(t *testing.T) {
	text := strings.Repeat("word ", 100)
	got := Split(text, 30, 500)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.LessOrEqual(t, len([]rune(c)), 30)
	}
}

func TestSplitCoversText(t *testing.T) {
	text := Clean(sampleAbstract + " " + sampleAbstract)
	maxSize, overlap := 120, 20
	chunks := Split(text, maxSize, overlap)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.LessOrEqual(t, len([]rune(c)), maxSize)
		assert.Contains(t, text, c)
	}
	assert.True(t, strings.HasPrefix(text, chunks[0]))
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))

	// Every word of the source appears in at least one chunk.
	joined := strings.Join(chunks, " ")
	for _, w := range strings.Fields(text) {
		assert.Contains(t, joined, w)
	}
}

func TestSplitUnicode(t *testing.T) {
	text := strings.Repeat("日本語のテキスト。", 40)
	chunks := Split(text, 50, 10)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 50)
	}
}

func TestSalientSentences(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, SalientSentences("", 3))
	})

	t.Run("few sentences returned in order", func(t *testing.T) {
		text := "This is the first long enough sentence. This is the second long enough sentence."
		got := SalientSentences(text, 3)
		assert.Equal(t, []string{
			"This is the first long enough sentence",
			"This is the second long enough sentence",
		}, got)
	})

	t.Run("keyword sentences win", func(t *testing.T) {
		text := "Plain filler sentence without anything notable in it at all. " +
			"Another plain filler sentence that goes on for a while longer. " +
			"We propose a novel method that shows superior performance. " +
			"Yet another filler sentence that merely occupies some space here."
		got := SalientSentences(text, 1)
		require.Len(t, got, 1)
		assert.Equal(t, "We propose a novel method that shows superior performance", got[0])
	})

	t.Run("caps at max", func(t *testing.T) {
		got := SalientSentences(sampleAbstract, 2)
		assert.Len(t, got, 2)
	})
}

func TestChunkPaper(t *testing.T) {
	c := New(types.ChunkerConfig{})
	paper := types.PaperRecord{
		Title:         "Attention Is All You Need",
		Authors:       []string{"Ashish Vaswani", "Noam Shazeer"},
		Abstract:      sampleAbstract,
		Summary:       "The paper introduces the Transformer architecture for sequence transduction.",
		ArxivID:       "1706.03762",
		CitationCount: 90000,
		Venue:         "NeurIPS",
		Sources:       []string{"arxiv", "semantic_scholar"},
	}

	chunks := c.Chunk(paper, "transformers")
	require.NotEmpty(t, chunks)

	prefix := TopicHash("transformers") + "_1706.03762_"
	kinds := map[types.ChunkType]int{}
	for _, ch := range chunks {
		assert.True(t, strings.HasPrefix(ch.ChunkID, prefix), ch.ChunkID)
		assert.NotEmpty(t, ch.Text)
		assert.Equal(t, "1706.03762", ch.PaperID)
		assert.Equal(t, "arxiv", ch.Source)
		assert.Equal(t, 90000, ch.Metadata.CitationCount)
		assert.Equal(t, "transformers", ch.Metadata.Topic)
		kinds[ch.ChunkType]++
	}
	assert.Greater(t, kinds[types.ChunkAbstract], 1)
	assert.Equal(t, 1, kinds[types.ChunkSummary])
	assert.Equal(t, 3, kinds[types.ChunkKeySentence])
	assert.Equal(t, prefix+"abstract_0", chunks[0].ChunkID)
}

func TestChunkIDsStableAndTopicScoped(t *testing.T) {
	c := New(types.ChunkerConfig{ChunkSize: 100, Overlap: 20})
	paper := types.PaperRecord{Title: "Some Paper", Abstract: sampleAbstract, DOI: "10.1000/xyz"}

	ids := func(topic string) []string {
		var out []string
		for _, ch := range c.Chunk(paper, topic) {
			out = append(out, ch.ChunkID)
		}
		return out
	}

	first := ids("topic a")
	assert.Equal(t, first, ids("topic a"))

	other := ids("topic b")
	require.Len(t, other, len(first))
	for i := range first {
		assert.NotEqual(t, first[i], other[i])
	}

	untopiced := ids("")
	assert.Equal(t, "10.1000/xyz_abstract_0", untopiced[0])
}

func TestChunkEmptyPaper(t *testing.T) {
	c := New(types.ChunkerConfig{})
	assert.Empty(t, c.Chunk(types.PaperRecord{Title: "No text"}, "t"))
}
