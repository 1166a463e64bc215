// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"sort"

	"github.com/pdiddy/research-rag/pkg/types"
)

// Rank sorts records in place, best first, by citation count, then
// publication year, then PDF availability. Ties keep their input order.
func Rank(records []types.PaperRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return rankLess(records[j], records[i])
	})
}

// RankByRelevance sorts records in place by LLM relevance score, falling
// back to the Rank order. Unevaluated records score 0.
func RankByRelevance(records []types.PaperRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		si, sj := relevance(records[i]), relevance(records[j])
		if si != sj {
			return si > sj
		}
		return rankLess(records[j], records[i])
	})
}

// rankLess reports whether a ranks strictly below b.
func rankLess(a, b types.PaperRecord) bool {
	if a.CitationCount != b.CitationCount {
		return a.CitationCount < b.CitationCount
	}
	if ay, by := a.Year(), b.Year(); ay != by {
		return ay < by
	}
	return !a.HasPDF() && b.HasPDF()
}

func relevance(r types.PaperRecord) int {
	if r.Relevance == nil {
		return 0
	}
	return r.Relevance.Score
}
