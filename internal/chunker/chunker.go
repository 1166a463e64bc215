// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chunker turns paper text into bounded, overlapping segments and
// picks out salient sentences. Everything here is pure computation: no I/O,
// no errors, and empty input always yields empty output.
package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/research-rag/pkg/types"
)

const (
	// MinSentenceLen is the length a cleaned sentence must exceed to survive Clean.
	MinSentenceLen = 10

	// MinSalientLen is the length a sentence must exceed to be a salient candidate.
	MinSalientLen = 20

	defaultChunkSize       = 300
	defaultOverlap         = 50
	defaultMaxKeySentences = 3

	keywordWeight = 50
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()]`)

	salienceClasses = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(novel|new|propose|introduce|present|develop|method|approach|algorithm|model)\b`),
		regexp.MustCompile(`(?i)\b(results?|findings?|show|demonstrate|reveal|indicate|suggest|conclude)\b`),
		regexp.MustCompile(`(?i)\b(performance|accuracy|improvement|better|superior|state-of-the-art)\b`),
		regexp.MustCompile(`(?i)\b(problem|challenge|limitation|issue|difficult)\b`),
	}
)

// Chunker converts papers into TextChunks.
type Chunker struct {
	chunkSize       int
	overlap         int
	maxKeySentences int
}

// New returns a Chunker. Zero or negative settings fall back to defaults
// (300 characters, 50 overlap, 3 key sentences).
func New(cfg types.ChunkerConfig) *Chunker {
	c := &Chunker{
		chunkSize:       cfg.ChunkSize,
		overlap:         cfg.Overlap,
		maxKeySentences: cfg.MaxKeySentences,
	}
	if c.chunkSize <= 0 {
		c.chunkSize = defaultChunkSize
	}
	if c.overlap < 0 {
		c.overlap = defaultOverlap
	}
	if c.maxKeySentences <= 0 {
		c.maxKeySentences = defaultMaxKeySentences
	}
	return c
}

// Chunk cuts a paper into abstract chunks, summary chunks, and key-sentence
// chunks. Chunk ids are scoped by topic so the same paper ingested under two
// topics yields two distinct chunk sets.
func (c *Chunker) Chunk(paper types.PaperRecord, topic string) []types.TextChunk {
	paperKey := paper.Key()
	prefix := paperKey
	if topic != "" {
		prefix = TopicHash(topic) + "_" + paperKey
	}

	meta := types.ChunkMetadata{
		Published:     paper.Published,
		CitationCount: paper.CitationCount,
		Venue:         paper.Venue,
		FieldsOfStudy: paper.FieldsOfStudy,
		Topic:         topic,
	}

	var chunks []types.TextChunk
	add := func(kind types.ChunkType, texts []string) {
		for i, text := range texts {
			chunks = append(chunks, types.TextChunk{
				ChunkID:    fmt.Sprintf("%s_%s_%d", prefix, kind, i),
				Text:       text,
				PaperID:    paperKey,
				PaperTitle: paper.Title,
				Authors:    paper.Authors,
				Source:     paper.PrimarySource(),
				ChunkType:  kind,
				Metadata:   meta,
			})
		}
	}

	add(types.ChunkAbstract, Split(Clean(paper.Abstract), c.chunkSize, c.overlap))
	add(types.ChunkSummary, Split(Clean(paper.Summary), c.chunkSize, c.overlap))
	add(types.ChunkKeySentence, SalientSentences(paper.Abstract, c.maxKeySentences))
	return chunks
}

// TopicHash returns the first 8 hex characters of the MD5 of topic.
func TopicHash(topic string) string {
	sum := md5.Sum([]byte(topic))
	return hex.EncodeToString(sum[:])[:8]
}

// Clean collapses whitespace, strips characters outside letters, digits,
// and basic punctuation, and drops sentences of MinSentenceLen characters
// or fewer.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	text = disallowedRe.ReplaceAllString(text, "")

	var kept []string
	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if runeLen(s) > MinSentenceLen {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ". ")
}

// Split segments text into chunks of at most maxSize characters. A window
// ends after the last sentence terminator past its midpoint, else at the
// last space, else at maxSize. The next window starts overlap characters
// before the previous end. Chunks are trimmed and never empty.
func Split(text string, maxSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}

	runes := []rune(text)
	if len(runes) <= maxSize {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end >= len(runes) {
			chunks = appendChunk(chunks, runes[start:])
			break
		}

		window := runes[start:end]
		if cut := lastTerminator(window); cut > maxSize/2 {
			end = start + cut + 1
		} else if sp := lastIndexRune(window, ' '); sp > 0 {
			end = start + sp
		}
		chunks = appendChunk(chunks, runes[start:end])

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// SalientSentences returns up to max sentences from text, highest score
// first. A sentence scores its length plus a bonus for each method, result,
// performance, or limitation keyword it contains. When max or fewer
// candidate sentences exist they are returned in text order.
func SalientSentences(text string, max int) []string {
	if text == "" || max <= 0 {
		return nil
	}

	var sentences []string
	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if runeLen(s) > MinSalientLen {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) <= max {
		return sentences
	}

	type scored struct {
		score int
		text  string
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		score := runeLen(s)
		for _, re := range salienceClasses {
			score += keywordWeight * len(re.FindAllStringIndex(s, -1))
		}
		ranked[i] = scored{score: score, text: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]string, max)
	for i := range out {
		out[i] = ranked[i].text
	}
	return out
}

func appendChunk(chunks []string, r []rune) []string {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}

func lastTerminator(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		switch r[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

func lastIndexRune(r []rune, c rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == c {
			return i
		}
	}
	return -1
}

func runeLen(s string) int { return len([]rune(s)) }
