// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/pdiddy/research-rag/pkg/types"
)

var (
	headerColor = color.New(color.Bold)
	warnColor   = color.New(color.FgYellow)
)

// FormatTable writes the report as a human-readable table to w.
func FormatTable(report types.ResearchReport, w io.Writer) {
	for _, e := range report.ProviderErrors {
		warnColor.Fprintf(w, "warning: provider %s\n", e)
	}
	if len(report.Papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	headerColor.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %-5s  %s\n",
		"Rank", "Title", "Authors", "Year", "Cites", "Score", "Sources")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, r := range report.Papers {
		year := ""
		if y := r.Year(); y > 0 {
			year = strconv.Itoa(y)
		}
		score := "-"
		if r.Relevance != nil {
			score = strconv.Itoa(r.Relevance.Score)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6d  %-5s  %s\n",
			i+1, truncate(r.Title, 60), formatAuthors(r.Authors), year, r.CitationCount, score,
			strings.Join(r.Sources, ","))
	}

	fmt.Fprintf(w, "\n%d results from %d gathered", len(report.Papers), report.TotalBeforeDedup)
	if report.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", report.DuplicatesRemoved)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes the report as indented JSON to w.
func FormatJSON(report types.ResearchReport, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 13) + " et al."
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
