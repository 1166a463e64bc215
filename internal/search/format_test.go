// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/pdiddy/research-rag/pkg/types"
)

func init() {
	color.NoColor = true
}

func sampleReport() types.ResearchReport {
	return types.ResearchReport{
		Query: "attention",
		Papers: []types.PaperRecord{
			{
				Title:         "Attention Is All You Need",
				Authors:       []string{"Ashish Vaswani", "Noam Shazeer"},
				Published:     "2017-06-12",
				CitationCount: 90000,
				ArxivID:       "1706.03762",
				Sources:       []string{"arxiv", "semantic_scholar"},
				Relevance:     &types.Evaluation{Score: 9},
			},
			{
				Title:   strings.Repeat("Very Long Title ", 10),
				Sources: []string{"openalex"},
			},
		},
		ProviderCounts:    map[string]int{"arxiv": 1, "semantic_scholar": 1, "openalex": 1},
		ProviderErrors:    []string{"patents: unsupported"},
		TotalBeforeDedup:  3,
		DuplicatesRemoved: 1,
	}
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sampleReport(), &buf)
	out := buf.String()

	for _, want := range []string{
		"Rank", "Attention Is All You Need", "Ashish Vas... et al.", "2017", "90000",
		"arxiv,semantic_scholar", "...", "2 results from 3 gathered (1 duplicates removed)",
		"warning: provider patents: unsupported",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(types.ResearchReport{}, &buf)
	if !strings.Contains(buf.String(), "No results found.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatJSON(sampleReport(), &buf); err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	var got types.ResearchReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Query != "attention" || len(got.Papers) != 2 || got.Papers[0].Relevance.Score != 9 {
		t.Errorf("decoded = %+v", got)
	}
}

func TestReportFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "attention.yaml")
	report := sampleReport()

	if err := WriteReportFile(path, report, []string{"arxiv", "semantic_scholar"}); err != nil {
		t.Fatalf("WriteReportFile: %v", err)
	}
	rf, err := ReadReportFile(path)
	if err != nil {
		t.Fatalf("ReadReportFile: %v", err)
	}
	if rf.Report.Query != "attention" || len(rf.Report.Papers) != 2 {
		t.Errorf("report = %+v", rf.Report)
	}
	if rf.Report.Papers[0].ArxivID != "1706.03762" || len(rf.Report.Papers[0].Sources) != 2 {
		t.Errorf("paper = %+v", rf.Report.Papers[0])
	}
	if rf.SavedAt == "" || len(rf.Providers) != 2 {
		t.Errorf("SavedAt = %q, Providers = %v", rf.SavedAt, rf.Providers)
	}
}

func TestReadReportFileErrors(t *testing.T) {
	if _, err := ReadReportFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, []byte("saved_at: now\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadReportFile(empty); err == nil {
		t.Error("expected error for report without query or papers")
	}
}
