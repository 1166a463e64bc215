// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// PaperRecord is one research paper as returned by a search provider and
// carried through deduplication, ranking, and ingestion.
type PaperRecord struct {
	// Title is the paper title as returned by the provider.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Published is the publication date (YYYY-MM-DD, RFC 3339, or a bare
	// year). Providers pass through whatever they return.
	Published string `json:"published,omitempty" yaml:"published,omitempty"`

	// Venue is the journal or conference name.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// CitationCount is the number of citations reported by the provider.
	// Zero when the provider does not report it.
	CitationCount int `json:"citation_count" yaml:"citation_count"`

	// DOI is the bare DOI without the https://doi.org/ prefix.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// ArxivID is the arXiv identifier without version suffix (e.g. "1706.03762").
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	// PaperID is the provider-native identifier (Semantic Scholar paperId,
	// OpenAlex work id).
	PaperID string `json:"paper_id,omitempty" yaml:"paper_id,omitempty"`

	// URL is the landing page for the paper.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// PDFURL is a direct link to an open-access PDF, if any.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// FieldsOfStudy lists subject areas reported by the provider.
	FieldsOfStudy []string `json:"fields_of_study,omitempty" yaml:"fields_of_study,omitempty"`

	// Summary is an optional LLM-written summary, chunked alongside the abstract.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Sources lists the providers that contributed this record. Set
	// semantics, kept in first-seen order.
	Sources []string `json:"sources" yaml:"sources"`

	// Relevance holds the LLM grading of this paper against the query.
	// Nil until the paper has been evaluated.
	Relevance *Evaluation `json:"relevance,omitempty" yaml:"relevance,omitempty"`
}

// Evaluation is an LLM's structured assessment of one paper.
type Evaluation struct {
	// Score is the relevance score in [1, 10].
	Score int `json:"score" yaml:"score"`

	KeyContributions string `json:"key_contributions,omitempty" yaml:"key_contributions,omitempty"`
	Limitations      string `json:"limitations,omitempty" yaml:"limitations,omitempty"`
	Importance       string `json:"importance,omitempty" yaml:"importance,omitempty"`

	// Raw is the unparsed model response.
	Raw string `json:"-" yaml:"-"`
}

// Key returns the stable identity used to build chunk ids: the arXiv ID if
// present, then the DOI, then the provider ID, and finally a hash of the
// normalized title.
func (p PaperRecord) Key() string {
	switch {
	case p.ArxivID != "":
		return p.ArxivID
	case p.DOI != "":
		return strings.ToLower(p.DOI)
	case p.PaperID != "":
		return p.PaperID
	}
	sum := md5.Sum([]byte(NormalizeTitle(p.Title)))
	return "title-" + hex.EncodeToString(sum[:])[:12]
}

// Year extracts the publication year from Published. It returns 0 when the
// field is empty or does not start with a four-digit year.
func (p PaperRecord) Year() int {
	s := strings.TrimSpace(p.Published)
	if len(s) < 4 {
		return 0
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return y
}

// HasPDF reports whether an open-access PDF link is known.
func (p PaperRecord) HasPDF() bool { return p.PDFURL != "" }

// HasSource reports whether name is already listed in Sources.
func (p PaperRecord) HasSource(name string) bool {
	for _, s := range p.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// PrimarySource returns the first contributing provider, or "unknown".
func (p PaperRecord) PrimarySource() string {
	if len(p.Sources) == 0 {
		return "unknown"
	}
	return p.Sources[0]
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the title.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
