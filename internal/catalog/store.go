// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog records research runs, the papers they found, and the
// ingestion runs that fed them into the vector index, in a SQLite database
// with full-text search over paper titles and abstracts.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uniplaces/carbon"

	"github.com/pdiddy/research-rag/pkg/types"
)

const dbFile = "research.db"

// ErrNotFound is returned when a run or paper does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the catalog database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates dir/research.db and its schema.
func Open(cfg types.CatalogConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("catalog directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: 20}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the catalog directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			authors TEXT,
			abstract TEXT,
			published TEXT,
			venue TEXT,
			doi TEXT,
			arxiv_id TEXT,
			url TEXT,
			pdf_url TEXT,
			citation_count INTEGER NOT NULL DEFAULT 0,
			sources TEXT,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS research_runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			created_at TEXT NOT NULL,
			total_before_dedup INTEGER NOT NULL,
			duplicates_removed INTEGER NOT NULL,
			paper_count INTEGER NOT NULL,
			provider_counts TEXT,
			provider_errors TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS run_papers (
			run_id TEXT NOT NULL REFERENCES research_runs(id) ON DELETE CASCADE,
			paper_key TEXT NOT NULL REFERENCES papers(key),
			rank INTEGER NOT NULL,
			relevance INTEGER,
			PRIMARY KEY (run_id, paper_key)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			research_run_id TEXT,
			created_at TEXT NOT NULL,
			papers INTEGER NOT NULL,
			chunks_created INTEGER NOT NULL,
			chunks_stored INTEGER NOT NULL,
			chunks_skipped INTEGER NOT NULL,
			synced INTEGER NOT NULL,
			sync_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_papers_key ON run_papers(paper_key)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_runs_topic ON ingest_runs(topic)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE papers_fts USING fts5(title, abstract, content=papers, content_rowid=rowid)`,
		`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
			INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
		END`,
		`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
			INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
		END`,
		`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
			INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// RecordResearch stores a research report as a new run, upserting every
// paper it lists. It returns the run id.
func (s *Store) RecordResearch(ctx context.Context, report types.ResearchReport) (string, error) {
	runID := uuid.NewString()
	now := carbon.Now().DateTimeString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	countsJSON, _ := json.Marshal(report.ProviderCounts)
	errorsJSON, _ := json.Marshal(report.ProviderErrors)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO research_runs (id, query, created_at, total_before_dedup, duplicates_removed, paper_count, provider_counts, provider_errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, report.Query, now, report.TotalBeforeDedup, report.DuplicatesRemoved,
		len(report.Papers), string(countsJSON), string(errorsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("inserting research run: %w", err)
	}

	link, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO run_papers (run_id, paper_key, rank, relevance) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer link.Close()

	for i, p := range report.Papers {
		key := p.Key()
		if err := upsertPaper(ctx, tx, p, now); err != nil {
			return "", fmt.Errorf("upserting paper %s: %w", key, err)
		}
		var relevance sql.NullInt64
		if p.Relevance != nil {
			relevance = sql.NullInt64{Int64: int64(p.Relevance.Score), Valid: true}
		}
		if _, err := link.ExecContext(ctx, runID, key, i+1, relevance); err != nil {
			return "", fmt.Errorf("linking paper %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing research run: %w", err)
	}
	return runID, nil
}

// upsertPaper inserts p or refreshes an existing row. Empty incoming fields
// keep the stored value and the citation count only grows.
func upsertPaper(ctx context.Context, tx *sql.Tx, p types.PaperRecord, now string) error {
	authorsJSON, _ := json.Marshal(p.Authors)
	sourcesJSON, _ := json.Marshal(p.Sources)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO papers (key, title, authors, abstract, published, venue, doi, arxiv_id, url, pdf_url, citation_count, sources, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			title=excluded.title,
			authors=excluded.authors,
			abstract=COALESCE(NULLIF(excluded.abstract, ''), papers.abstract),
			published=COALESCE(NULLIF(excluded.published, ''), papers.published),
			venue=COALESCE(NULLIF(excluded.venue, ''), papers.venue),
			doi=COALESCE(NULLIF(excluded.doi, ''), papers.doi),
			arxiv_id=COALESCE(NULLIF(excluded.arxiv_id, ''), papers.arxiv_id),
			url=COALESCE(NULLIF(excluded.url, ''), papers.url),
			pdf_url=COALESCE(NULLIF(excluded.pdf_url, ''), papers.pdf_url),
			citation_count=MAX(papers.citation_count, excluded.citation_count),
			sources=excluded.sources,
			last_seen=excluded.last_seen`,
		p.Key(), p.Title, string(authorsJSON), p.Abstract, p.Published, p.Venue,
		p.DOI, p.ArxivID, p.URL, p.PDFURL, p.CitationCount, string(sourcesJSON), now, now,
	)
	return err
}

// IngestRun records one ingestion into the vector index.
type IngestRun struct {
	ID    string `json:"id" yaml:"id"`
	Topic string `json:"topic" yaml:"topic"`

	// ResearchRunID links the run whose papers were ingested, if any.
	ResearchRunID string `json:"research_run_id,omitempty" yaml:"research_run_id,omitempty"`

	CreatedAt     string `json:"created_at" yaml:"created_at"`
	Papers        int    `json:"papers" yaml:"papers"`
	ChunksCreated int    `json:"chunks_created" yaml:"chunks_created"`
	ChunksStored  int    `json:"chunks_stored" yaml:"chunks_stored"`
	ChunksSkipped int    `json:"chunks_skipped" yaml:"chunks_skipped"`
	Synced        bool   `json:"synced" yaml:"synced"`
	SyncError     string `json:"sync_error,omitempty" yaml:"sync_error,omitempty"`
}

// RecordIngest stores run, assigning its id and timestamp. It returns the id.
func (s *Store) RecordIngest(ctx context.Context, run IngestRun) (string, error) {
	run.ID = uuid.NewString()
	run.CreatedAt = carbon.Now().DateTimeString()

	var researchRun sql.NullString
	if run.ResearchRunID != "" {
		researchRun = sql.NullString{String: run.ResearchRunID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, topic, research_run_id, created_at, papers, chunks_created, chunks_stored, chunks_skipped, synced, sync_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Topic, researchRun, run.CreatedAt, run.Papers,
		run.ChunksCreated, run.ChunksStored, run.ChunksSkipped, run.Synced, run.SyncError,
	)
	if err != nil {
		return "", fmt.Errorf("inserting ingest run: %w", err)
	}
	return run.ID, nil
}
