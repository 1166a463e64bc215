// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/research-rag/pkg/types"
)

// QueryOptions holds parameters for catalog paper queries.
type QueryOptions struct {
	// Query is matched against titles and abstracts. Each whitespace
	// separated term must appear.
	Query string

	// Source keeps papers contributed by this provider.
	Source string

	// MinCitations drops papers cited fewer times.
	MinCitations int

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// PaperHit is a catalogued paper with the time it was first and last seen.
type PaperHit struct {
	types.PaperRecord `yaml:",inline"`

	FirstSeen string `json:"first_seen" yaml:"first_seen"`
	LastSeen  string `json:"last_seen" yaml:"last_seen"`
}

// SearchPapers queries the catalog. Full-text results are ranked by
// relevance; without a query papers are sorted by citation count.
func (s *Store) SearchPapers(ctx context.Context, opts QueryOptions) ([]PaperHit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		match  = ftsQuery(opts.Query)
		useFTS = match != ""
	)

	if useFTS {
		qb.WriteString(`SELECT ` + paperColumns + `
			FROM papers_fts
			JOIN papers p ON p.rowid = papers_fts.rowid
			WHERE papers_fts MATCH ?`)
		args = append(args, match)
	} else {
		qb.WriteString(`SELECT ` + paperColumns + ` FROM papers p WHERE 1=1`)
	}

	if opts.Source != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(p.sources) WHERE value = ?)`)
		args = append(args, opts.Source)
	}
	if opts.MinCitations > 0 {
		qb.WriteString(` AND p.citation_count >= ?`)
		args = append(args, opts.MinCitations)
	}

	if useFTS {
		qb.WriteString(` ORDER BY papers_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.citation_count DESC, p.key`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()
	return scanPapers(rows)
}

const paperColumns = `p.key, p.title, p.authors, p.abstract, p.published, p.venue, p.doi,
	p.arxiv_id, p.url, p.pdf_url, p.citation_count, p.sources, p.first_seen, p.last_seen`

func scanPapers(rows *sql.Rows) ([]PaperHit, error) {
	var hits []PaperHit
	for rows.Next() {
		h, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// scanPaper reads paperColumns followed by any extra destinations.
func scanPaper(row scanner, extra ...any) (PaperHit, error) {
	var (
		h                PaperHit
		key              string
		authors, sources sql.NullString
		abstract, pub    sql.NullString
		venue, doi       sql.NullString
		arxiv, url, pdf  sql.NullString
	)
	dest := append([]any{&key, &h.Title, &authors, &abstract, &pub, &venue, &doi,
		&arxiv, &url, &pdf, &h.CitationCount, &sources, &h.FirstSeen, &h.LastSeen}, extra...)
	if err := row.Scan(dest...); err != nil {
		return h, fmt.Errorf("scanning paper: %w", err)
	}
	h.Abstract = abstract.String
	h.Published = pub.String
	h.Venue = venue.String
	h.DOI = doi.String
	h.ArxivID = arxiv.String
	h.URL = url.String
	h.PDFURL = pdf.String
	if authors.Valid {
		_ = json.Unmarshal([]byte(authors.String), &h.Authors)
	}
	if sources.Valid {
		_ = json.Unmarshal([]byte(sources.String), &h.Sources)
	}
	if h.ArxivID == "" && h.DOI == "" {
		h.PaperID = key
	}
	return h, nil
}

// ftsQuery turns free text into an FTS5 expression that requires every
// term. Terms are quoted so punctuation is never parsed as syntax.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// ResearchRun is a catalogued research query.
type ResearchRun struct {
	ID                string         `json:"id" yaml:"id"`
	Query             string         `json:"query" yaml:"query"`
	CreatedAt         string         `json:"created_at" yaml:"created_at"`
	TotalBeforeDedup  int            `json:"total_before_dedup" yaml:"total_before_dedup"`
	DuplicatesRemoved int            `json:"duplicates_removed" yaml:"duplicates_removed"`
	PaperCount        int            `json:"paper_count" yaml:"paper_count"`
	ProviderCounts    map[string]int `json:"provider_counts" yaml:"provider_counts"`
	ProviderErrors    []string       `json:"provider_errors,omitempty" yaml:"provider_errors,omitempty"`
}

// Runs returns the most recent research runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]ResearchRun, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, created_at, total_before_dedup, duplicates_removed, paper_count, provider_counts, provider_errors
		 FROM research_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying research runs: %w", err)
	}
	defer rows.Close()

	var runs []ResearchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ResearchRun, error) {
	var (
		run          ResearchRun
		counts, errs sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Query, &run.CreatedAt, &run.TotalBeforeDedup,
		&run.DuplicatesRemoved, &run.PaperCount, &counts, &errs); err != nil {
		return run, err
	}
	if counts.Valid {
		_ = json.Unmarshal([]byte(counts.String), &run.ProviderCounts)
	}
	if errs.Valid {
		_ = json.Unmarshal([]byte(errs.String), &run.ProviderErrors)
	}
	return run, nil
}

// Report rebuilds the research report stored under runID, papers in their
// original rank order.
func (s *Store) Report(ctx context.Context, runID string) (types.ResearchReport, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, query, created_at, total_before_dedup, duplicates_removed, paper_count, provider_counts, provider_errors
		 FROM research_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.ResearchReport{}, fmt.Errorf("research run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return types.ResearchReport{}, fmt.Errorf("reading research run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+paperColumns+`, rp.relevance
		FROM run_papers rp JOIN papers p ON p.key = rp.paper_key
		WHERE rp.run_id = ? ORDER BY rp.rank`, runID)
	if err != nil {
		return types.ResearchReport{}, fmt.Errorf("querying run papers: %w", err)
	}
	defer rows.Close()

	report := types.ResearchReport{
		Query:             run.Query,
		Papers:            []types.PaperRecord{},
		ProviderCounts:    run.ProviderCounts,
		ProviderErrors:    run.ProviderErrors,
		TotalBeforeDedup:  run.TotalBeforeDedup,
		DuplicatesRemoved: run.DuplicatesRemoved,
	}
	for rows.Next() {
		var relevance sql.NullInt64
		h, err := scanPaper(rows, &relevance)
		if err != nil {
			return types.ResearchReport{}, err
		}
		if relevance.Valid {
			h.Relevance = &types.Evaluation{Score: int(relevance.Int64)}
		}
		report.Papers = append(report.Papers, h.PaperRecord)
	}
	return report, rows.Err()
}

// IngestRuns returns the most recent ingestion runs, newest first. A
// non-empty topic restricts the list to that topic.
func (s *Store) IngestRuns(ctx context.Context, topic string, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	query := `SELECT id, topic, research_run_id, created_at, papers, chunks_created, chunks_stored, chunks_skipped, synced, sync_error
		FROM ingest_runs`
	var args []any
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var (
			r                 IngestRun
			researchRun, sErr sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Topic, &researchRun, &r.CreatedAt, &r.Papers,
			&r.ChunksCreated, &r.ChunksStored, &r.ChunksSkipped, &r.Synced, &sErr); err != nil {
			return nil, fmt.Errorf("scanning ingest run: %w", err)
		}
		r.ResearchRunID = researchRun.String
		r.SyncError = sErr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
