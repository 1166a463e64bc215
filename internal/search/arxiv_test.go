// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/research-rag/internal/httputil"
)

const sampleArxivSearchXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All
      You Need</title>
    <summary>The dominant sequence transduction models are based on complex recurrent networks.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <title>BERT: Pre-training of Deep Bidirectional Transformers</title>
    <summary>We introduce BERT.</summary>
    <published>2018-10-11T00:00:00Z</published>
    <author><name>Jacob Devlin</name></author>
  </entry>
</feed>`

func TestArxivProviderSearch(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sampleArxivSearchXML)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	p := &ArxivProvider{Client: ts.Client()}
	records, err := p.Search(context.Background(), "attention transformers", 5)
	if err != nil {
		t.Fatalf("ArxivProvider.Search: %v", err)
	}
	if gotQuery != "all:attention transformers" {
		t.Errorf("search_query = %q", gotQuery)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	r := records[0]
	if r.ArxivID != "1706.03762" {
		t.Errorf("ArxivID = %q, want %q", r.ArxivID, "1706.03762")
	}
	if r.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", r.Title)
	}
	if len(r.Authors) != 2 {
		t.Errorf("len(Authors) = %d, want 2", len(r.Authors))
	}
	if r.Published != "2017-06-12" || r.Year() != 2017 {
		t.Errorf("Published = %q", r.Published)
	}
	if r.PDFURL != "http://arxiv.org/pdf/1706.03762v7" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
	if r.Venue != arxivVenue || r.CitationCount != 0 {
		t.Errorf("Venue = %q, CitationCount = %d", r.Venue, r.CitationCount)
	}
	if len(r.FieldsOfStudy) != 2 || r.FieldsOfStudy[0] != "cs.CL" {
		t.Errorf("FieldsOfStudy = %v", r.FieldsOfStudy)
	}
	if len(r.Sources) != 1 || r.Sources[0] != "arxiv" {
		t.Errorf("Sources = %v", r.Sources)
	}
	if records[1].PDFURL != "" {
		t.Errorf("second entry has no pdf link, got %q", records[1].PDFURL)
	}
}

func TestArxivProviderHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	_, err := (&ArxivProvider{Client: ts.Client()}).Search(context.Background(), "x", 1)
	var se *httputil.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want StatusError 503", err)
	}
	if !httputil.IsTemporary(err) {
		t.Error("503 should be temporary")
	}
}

func TestArxivProviderEmptyQuery(t *testing.T) {
	if _, err := (&ArxivProvider{}).Search(context.Background(), "  ", 1); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041v12", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/hep-th/9901001v1", "hep-th/9901001"},
		{"http://example.com/other", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := extractArxivID(tt.in); got != tt.want {
				t.Errorf("extractArxivID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildArxivQuery(t *testing.T) {
	if got := buildArxivQuery("  graph   neural nets "); got != "all:graph+neural+nets" {
		t.Errorf("buildArxivQuery = %q", got)
	}
	if got := buildArxivQuery(""); got != "" {
		t.Errorf("buildArxivQuery(empty) = %q", got)
	}
}
