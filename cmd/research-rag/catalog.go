// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-rag/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the catalog of research runs and papers",
	Long: `Catalog reads the SQLite database that records every research run, the
papers it found, and every ingestion into the vector index. Use subcommands
to search papers, list runs, or export.`,
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over catalogued paper titles and abstracts",
	RunE:  runCatalogSearch,
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	store, err := openCatalog(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.SearchPapers(context.Background(), catalogQueryFromFlags(cmd, args))
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	headerColor.Printf("%-4s  %-24s  %-60s  %-6s  %s\n", "Rank", "Key", "Title", "Cites", "Sources")
	fmt.Println(strings.Repeat("-", 120))
	for i, h := range hits {
		fmt.Printf("%-4d  %-24s  %-60s  %-6d  %s\n",
			i+1, clip(h.Key(), 24), clip(h.Title, 60), h.CitationCount, strings.Join(h.Sources, ","))
	}
	fmt.Printf("\n%d results\n", len(hits))
	return nil
}

// --- runs subcommand ---

var catalogRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent research and ingestion runs",
	RunE:  runCatalogRuns,
}

func runCatalogRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	topic, _ := cmd.Flags().GetString("topic")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openCatalog(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	ingests, err := store.IngestRuns(ctx, topic, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(map[string]any{"research_runs": runs, "ingest_runs": ingests})
	}

	headerColor.Println("Research runs")
	for _, r := range runs {
		fmt.Printf("  %s  %s  %3d papers  %q\n", r.ID, r.CreatedAt, r.PaperCount, r.Query)
	}
	headerColor.Println("\nIngest runs")
	for _, r := range ingests {
		synced := "synced"
		if !r.Synced {
			synced = "unsynced"
		}
		fmt.Printf("  %s  %s  %3d stored / %3d created  %-8s  %q\n",
			r.ID, r.CreatedAt, r.ChunksStored, r.ChunksCreated, synced, r.Topic)
	}
	return nil
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export the catalog to YAML or JSON",
	Long: `Export writes catalogued papers, research runs, and ingestion runs to
export.yaml or export.json in the catalog directory. The search filters
select a subset of papers.`,
	RunE: runCatalogExport,
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openCatalog(loadConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	opts := catalogQueryFromFlags(cmd, args)
	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func catalogQueryFromFlags(cmd *cobra.Command, args []string) catalog.QueryOptions {
	source, _ := cmd.Flags().GetString("source")
	minCitations, _ := cmd.Flags().GetInt("min-citations")
	limit, _ := cmd.Flags().GetInt("limit")
	return catalog.QueryOptions{
		Query:        strings.Join(args, " "),
		Source:       source,
		MinCitations: minCitations,
		MaxResults:   limit,
	}
}

func init() {
	for _, c := range []*cobra.Command{catalogSearchCmd, catalogExportCmd} {
		c.Flags().String("source", "", "keep papers found by this provider")
		c.Flags().Int("min-citations", 0, "keep papers cited at least this often")
	}
	catalogSearchCmd.Flags().Int("limit", 0, "maximum results (0 = default 20)")
	catalogSearchCmd.Flags().Bool("json", false, "output results as JSON")

	catalogRunsCmd.Flags().Int("limit", 10, "number of runs of each kind to list")
	catalogRunsCmd.Flags().String("topic", "", "only list ingest runs for this topic")
	catalogRunsCmd.Flags().Bool("json", false, "output runs as JSON")

	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogRunsCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
