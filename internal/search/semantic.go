// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-rag/internal/httputil"
	"github.com/pdiddy/research-rag/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,venue,citationCount,openAccessPdf,fieldsOfStudy,url"

// semanticMaxLimit is the API's per-request result cap.
const semanticMaxLimit = 100

// SemanticScholarProvider queries the Semantic Scholar graph API.
type SemanticScholarProvider struct {
	Client    *http.Client
	UserAgent string
	APIKey    string
}

// Name returns the provider identifier.
func (p *SemanticScholarProvider) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API and returns up to limit papers.
// Rate-limited responses are retried inside the call.
func (p *SemanticScholarProvider) Search(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if limit <= 0 {
		limit = defaultPerProviderLimit
	}
	limit = min(limit, semanticMaxLimit)

	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	if p.APIKey != "" {
		req.Header.Set("x-api-key", p.APIKey)
	}

	resp, err := client(p.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("Semantic Scholar API", resp); err != nil {
		return nil, err
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	records := make([]types.PaperRecord, 0, len(sr.Data))
	for _, paper := range sr.Data {
		r := types.PaperRecord{
			Title:         strings.TrimSpace(paper.Title),
			Abstract:      strings.TrimSpace(paper.Abstract),
			Venue:         paper.Venue,
			CitationCount: paper.CitationCount,
			PaperID:       paper.PaperID,
			URL:           paper.URL,
			DOI:           paper.ExternalIDs.DOI,
			ArxivID:       paper.ExternalIDs.ArXiv,
			FieldsOfStudy: paper.FieldsOfStudy,
			Sources:       []string{"semantic_scholar"},
		}
		if paper.OpenAccessPDF != nil {
			r.PDFURL = paper.OpenAccessPDF.URL
		}
		for _, a := range paper.Authors {
			r.Authors = append(r.Authors, a.Name)
		}

		switch {
		case paper.PublicationDate != "":
			r.Published = paper.PublicationDate
		case paper.Year > 0:
			r.Published = strconv.Itoa(paper.Year)
		}

		records = append(records, r)
	}
	return records, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	Venue           string              `json:"venue"`
	CitationCount   int                 `json:"citationCount"`
	URL             string              `json:"url"`
	FieldsOfStudy   []string            `json:"fieldsOfStudy"`
	OpenAccessPDF   *semanticPDF        `json:"openAccessPdf"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticPDF struct {
	URL string `json:"url"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}
