// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/uniplaces/carbon"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-rag/pkg/types"
)

// ReportFile is the on-disk representation of a research run. A saved
// report can be ingested later without re-querying the providers.
type ReportFile struct {
	Report    types.ResearchReport `yaml:"report"`
	Providers []string             `yaml:"providers"`
	SavedAt   string               `yaml:"saved_at"`
}

// WriteReportFile saves report to path as YAML, creating parent directories.
func WriteReportFile(path string, report types.ResearchReport, providers []string) error {
	rf := ReportFile{
		Report:    report,
		Providers: providers,
		SavedAt:   carbon.Now().DateTimeString(),
	}
	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling report file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReportFile loads a report saved by WriteReportFile.
func ReadReportFile(path string) (*ReportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}
	var rf ReportFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing report file: %w", err)
	}
	if rf.Report.Query == "" && len(rf.Report.Papers) == 0 {
		return nil, fmt.Errorf("report file %s has no query or papers", path)
	}
	return &rf, nil
}
