// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Export is the catalog content written by ExportYAML and ExportJSON.
type Export struct {
	Papers     []PaperHit    `json:"papers" yaml:"papers"`
	Runs       []ResearchRun `json:"research_runs" yaml:"research_runs"`
	IngestRuns []IngestRun   `json:"ingest_runs" yaml:"ingest_runs"`
}

const exportLimit = 100000

// ExportYAML writes the catalog to dir/export.yaml and returns the path.
// It supports the same filters as SearchPapers; runs are always included.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	export, err := s.export(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(export)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	path := filepath.Join(s.dir, "export.yaml")
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the catalog to dir/export.json and returns the path.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	export, err := s.export(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.dir, "export.json")
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) export(ctx context.Context, opts QueryOptions) (Export, error) {
	opts.MaxResults = exportLimit
	papers, err := s.SearchPapers(ctx, opts)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	runs, err := s.Runs(ctx, exportLimit)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	ingests, err := s.IngestRuns(ctx, "", exportLimit)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}
	if papers == nil {
		papers = []PaperHit{}
	}
	return Export{Papers: papers, Runs: runs, IngestRuns: ingests}, nil
}
