// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-rag/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes the report's papers as a CSL-YAML list to w.
func FormatCSL(report types.ResearchReport, w io.Writer) error {
	items := make([]CSLItem, len(report.Papers))
	for i, r := range report.Papers {
		items[i] = toCSLItem(r)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a PaperRecord to a CSLItem. Papers with no venue, or
// only an arXiv listing, are typed "article"; the rest are journal articles.
func toCSLItem(r types.PaperRecord) CSLItem {
	item := CSLItem{
		ID:       r.Key(),
		Type:     "article-journal",
		Title:    r.Title,
		Abstract: r.Abstract,
		DOI:      r.DOI,
		URL:      r.URL,
	}
	if r.Venue == "" || r.Venue == arxivVenue {
		item.Type = "article"
	} else {
		item.ContainerTitle = r.Venue
	}

	for _, a := range r.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	item.Issued = parseIssued(r.Published)
	return item
}

// parseIssued converts "YYYY", "YYYY-MM", or "YYYY-MM-DD" into CSL
// date-parts, keeping as many parts as parse.
func parseIssued(published string) *CSLDate {
	parts := strings.SplitN(strings.TrimSpace(published), "-", 3)
	var nums []int
	for _, p := range parts {
		if len(p) > 2 && len(nums) > 0 {
			p = p[:2]
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			break
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return nil
	}
	return &CSLDate{DateParts: [][]int{nums}}
}

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
