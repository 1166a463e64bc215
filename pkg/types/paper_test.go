// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"testing"
)

func TestPaperKey(t *testing.T) {
	tests := []struct {
		name  string
		paper PaperRecord
		want  string
	}{
		{"arxiv wins", PaperRecord{ArxivID: "1706.03762", DOI: "10.1/X", PaperID: "s2"}, "1706.03762"},
		{"doi lowercased", PaperRecord{DOI: "10.1145/ABC", PaperID: "s2"}, "10.1145/abc"},
		{"provider id", PaperRecord{PaperID: "W123"}, "W123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.paper.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPaperKeyTitleHash(t *testing.T) {
	a := PaperRecord{Title: "Attention Is All You Need"}
	b := PaperRecord{Title: "  attention is all, you need! "}
	if !strings.HasPrefix(a.Key(), "title-") {
		t.Fatalf("Key() = %q, want title- prefix", a.Key())
	}
	if a.Key() != b.Key() {
		t.Errorf("titles differing only in case and punctuation gave %q and %q", a.Key(), b.Key())
	}
	if c := (PaperRecord{Title: "Deep Residual Learning"}); c.Key() == a.Key() {
		t.Errorf("different titles share key %q", a.Key())
	}
}

func TestPaperYear(t *testing.T) {
	tests := []struct {
		published string
		want      int
	}{
		{"2017-06-12", 2017},
		{"2015-12-10T17:58:25Z", 2015},
		{"2020", 2020},
		{"", 0},
		{"June 2017", 0},
		{"17", 0},
	}
	for _, tt := range tests {
		if got := (PaperRecord{Published: tt.published}).Year(); got != tt.want {
			t.Errorf("Year(%q) = %d, want %d", tt.published, got, tt.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	got := NormalizeTitle("  BERT: Pre-training of Deep\tBidirectional Transformers ")
	want := "bert pretraining of deep bidirectional transformers"
	if got != want {
		t.Errorf("NormalizeTitle = %q, want %q", got, want)
	}
}

func TestPaperSources(t *testing.T) {
	var p PaperRecord
	if got := p.PrimarySource(); got != "unknown" {
		t.Errorf("PrimarySource() on empty = %q, want unknown", got)
	}
	p.Sources = []string{"arxiv", "semantic_scholar"}
	if got := p.PrimarySource(); got != "arxiv" {
		t.Errorf("PrimarySource() = %q, want arxiv", got)
	}
	if !p.HasSource("semantic_scholar") {
		t.Error("HasSource(semantic_scholar) = false")
	}
	if p.HasSource("openalex") {
		t.Error("HasSource(openalex) = true")
	}
	if p.HasPDF() {
		t.Error("HasPDF() = true without a PDF URL")
	}
}
