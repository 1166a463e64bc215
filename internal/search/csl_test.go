// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-rag/pkg/types"
)

func TestToCSLItemJournal(t *testing.T) {
	r := types.PaperRecord{
		Title:     "Attention Is All You Need",
		Authors:   []string{"Ashish Vaswani", "Noam Shazeer"},
		Abstract:  "Transformers.",
		Published: "2017-06-12",
		Venue:     "NeurIPS",
		DOI:       "10.5555/3295222",
		ArxivID:   "1706.03762",
	}

	item := toCSLItem(r)

	if item.ID != "1706.03762" {
		t.Errorf("ID = %q, want the paper key", item.ID)
	}
	if item.Type != "article-journal" || item.ContainerTitle != "NeurIPS" {
		t.Errorf("Type = %q, ContainerTitle = %q", item.Type, item.ContainerTitle)
	}
	if item.DOI != "10.5555/3295222" {
		t.Errorf("DOI = %q", item.DOI)
	}
	if len(item.Author) != 2 || item.Author[0].Family != "Vaswani" || item.Author[0].Given != "Ashish" {
		t.Errorf("Author = %+v", item.Author)
	}
	if item.Issued == nil || len(item.Issued.DateParts[0]) != 3 || item.Issued.DateParts[0][1] != 6 {
		t.Errorf("Issued = %+v", item.Issued)
	}
}

func TestToCSLItemPreprint(t *testing.T) {
	item := toCSLItem(types.PaperRecord{Title: "P", Venue: arxivVenue, Published: "2020", Authors: []string{"Plato"}})
	if item.Type != "article" || item.ContainerTitle != "" {
		t.Errorf("Type = %q, ContainerTitle = %q", item.Type, item.ContainerTitle)
	}
	if item.Author[0].Literal != "Plato" {
		t.Errorf("single-token name should be literal: %+v", item.Author[0])
	}
	if item.Issued == nil || len(item.Issued.DateParts[0]) != 1 || item.Issued.DateParts[0][0] != 2020 {
		t.Errorf("Issued = %+v", item.Issued)
	}
}

func TestParseIssued(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"2017-06-12", []int{2017, 6, 12}},
		{"2017-06-12T17:57:34Z", []int{2017, 6, 12}},
		{"2017-06", []int{2017, 6}},
		{"2017", []int{2017}},
		{"", nil},
		{"Unknown", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseIssued(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("parseIssued(%q) = %+v, want nil", tt.in, got)
				}
				return
			}
			if got == nil || len(got.DateParts[0]) != len(tt.want) {
				t.Fatalf("parseIssued(%q) = %+v, want %v", tt.in, got, tt.want)
			}
			for i := range tt.want {
				if got.DateParts[0][i] != tt.want[i] {
					t.Errorf("parseIssued(%q) = %v, want %v", tt.in, got.DateParts[0], tt.want)
				}
			}
		})
	}
}

func TestFormatCSL(t *testing.T) {
	report := types.ResearchReport{Papers: []types.PaperRecord{
		{Title: "One", ArxivID: "2301.00001", Published: "2023"},
		{Title: "Two", DOI: "10.1/two"},
	}}

	var buf bytes.Buffer
	if err := FormatCSL(report, &buf); err != nil {
		t.Fatalf("FormatCSL: %v", err)
	}

	var items []CSLItem
	if err := yaml.Unmarshal(buf.Bytes(), &items); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(items) != 2 || items[1].ID != "10.1/two" {
		t.Errorf("items = %+v", items)
	}
	if !strings.Contains(buf.String(), "date-parts") {
		t.Error("expected date-parts in output")
	}
}
