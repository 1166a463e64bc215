// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-rag/internal/httputil"
	"github.com/pdiddy/research-rag/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const openAlexMaxPerPage = 200

// maxConcepts bounds how many OpenAlex concepts become fields of study.
const maxConcepts = 5

// OpenAlexProvider queries the OpenAlex API.
type OpenAlexProvider struct {
	Client    *http.Client
	UserAgent string

	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the provider identifier.
func (p *OpenAlexProvider) Name() string { return "openalex" }

// Search queries the OpenAlex API and returns up to limit works.
func (p *OpenAlexProvider) Search(ctx context.Context, query string, limit int) ([]types.PaperRecord, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}
	if limit <= 0 {
		limit = defaultPerProviderLimit
	}
	limit = min(limit, openAlexMaxPerPage)

	params := url.Values{
		"search":   {q},
		"per_page": {strconv.Itoa(limit)},
		"page":     {"1"},
	}
	if p.Email != "" {
		params.Set("mailto", p.Email)
	}
	reqURL := openAlexSearchBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := client(p.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("OpenAlex API", resp); err != nil {
		return nil, err
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	records := make([]types.PaperRecord, 0, len(oar.Results))
	for _, work := range oar.Results {
		r := types.PaperRecord{
			Title:         strings.TrimSpace(work.Title),
			Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
			CitationCount: work.CitedByCount,
			PaperID:       work.ID,
			URL:           work.ID,
			PDFURL:        work.OpenAccess.OAURL,
			Sources:       []string{"openalex"},
		}
		// OpenAlex is DOI-centric; strip the resolver prefix to get the bare DOI.
		if work.DOI != "" {
			r.DOI = strings.TrimPrefix(work.DOI, "https://doi.org/")
		}
		if work.PrimaryLocation.Source != nil {
			r.Venue = work.PrimaryLocation.Source.DisplayName
		}
		for _, authorship := range work.Authorships {
			if authorship.Author.DisplayName != "" {
				r.Authors = append(r.Authors, authorship.Author.DisplayName)
			}
		}
		for i, c := range work.Concepts {
			if i == maxConcepts {
				break
			}
			r.FieldsOfStudy = append(r.FieldsOfStudy, c.DisplayName)
		}

		switch {
		case work.PublicationDate != "":
			r.Published = work.PublicationDate
		case work.PublicationYear > 0:
			r.Published = strconv.Itoa(work.PublicationYear)
		}

		records = append(records, r)
	}
	return records, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
	Concepts              []openAlexConcept    `json:"concepts"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

type openAlexLocation struct {
	Source *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

type openAlexConcept struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}
