// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"slices"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/pdiddy/research-rag/pkg/types"
)

// DefaultDuplicateThreshold is the combined similarity at or above which
// two records describe the same paper.
const DefaultDuplicateThreshold = 0.85

const (
	titleWeight  = 0.8
	authorWeight = 0.2
)

// AreDuplicates reports whether a and b describe the same paper. Matching
// non-empty arXiv IDs or DOIs (case-insensitive) decide immediately.
// Otherwise the score is 0.8 x Jaccard(title words) + 0.2 x
// Jaccard(author names) and the records match when it reaches threshold.
// The relation is symmetric.
func AreDuplicates(a, b types.PaperRecord, threshold float64) bool {
	if sameID(a.ArxivID, b.ArxivID) || sameID(a.DOI, b.DOI) {
		return true
	}
	return Similarity(a, b) >= threshold
}

// Similarity returns the weighted title and author Jaccard score of a and b.
// An empty word set on either side contributes 0.
func Similarity(a, b types.PaperRecord) float64 {
	title := jaccard(titleTokens(a.Title), titleTokens(b.Title))
	authors := jaccard(authorTokens(a.Authors), authorTokens(b.Authors))
	return titleWeight*title + authorWeight*authors
}

func sameID(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// jaccard scores two token sets. Tokens are joined with spaces because
// edlib splits on them.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(edlib.JaccardSimilarity(strings.Join(a, " "), strings.Join(b, " "), 0))
}

// titleTokens returns the distinct lowercase words of title.
func titleTokens(title string) []string {
	return distinct(strings.Fields(strings.ToLower(title)))
}

// authorTokens returns the distinct lowercase author names, each collapsed
// to a single token.
func authorTokens(authors []string) []string {
	var out []string
	for _, a := range authors {
		name := strings.Join(strings.Fields(strings.ToLower(a)), "_")
		if name != "" {
			out = append(out, name)
		}
	}
	return distinct(out)
}

func distinct(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Deduplicate scans records in order and merges each into the first
// accepted record it duplicates. It returns the unique records and the
// number merged away.
func Deduplicate(records []types.PaperRecord, threshold float64) ([]types.PaperRecord, int) {
	unique := make([]types.PaperRecord, 0, len(records))
	removed := 0

	for _, r := range records {
		merged := false
		for i := range unique {
			if AreDuplicates(unique[i], r, threshold) {
				unique[i] = Merge(unique[i], r)
				merged = true
				removed++
				break
			}
		}
		if !merged {
			unique = append(unique, r)
		}
	}
	return unique, removed
}

// Merge folds secondary into primary: sources are unioned in first-seen
// order and any field primary lacks is taken from secondary.
func Merge(primary, secondary types.PaperRecord) types.PaperRecord {
	out := primary
	out.Sources = slices.Clone(primary.Sources)
	for _, s := range secondary.Sources {
		if !slices.Contains(out.Sources, s) {
			out.Sources = append(out.Sources, s)
		}
	}

	if out.CitationCount == 0 {
		out.CitationCount = secondary.CitationCount
	}
	if out.PDFURL == "" {
		out.PDFURL = secondary.PDFURL
	}
	if out.Venue == "" {
		out.Venue = secondary.Venue
	}
	if out.DOI == "" {
		out.DOI = secondary.DOI
	}
	if out.ArxivID == "" {
		out.ArxivID = secondary.ArxivID
	}
	if out.Abstract == "" {
		out.Abstract = secondary.Abstract
	}
	if out.Published == "" {
		out.Published = secondary.Published
	}
	if out.URL == "" {
		out.URL = secondary.URL
	}
	if len(out.FieldsOfStudy) == 0 {
		out.FieldsOfStudy = slices.Clone(secondary.FieldsOfStudy)
	}
	return out
}
