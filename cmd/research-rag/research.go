// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-rag/internal/search"
	"github.com/pdiddy/research-rag/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research <query>",
	Short: "Search all providers, deduplicate, and rank papers",
	Long: `Research sends the query to every enabled provider (arXiv, Semantic
Scholar, OpenAlex) in parallel, merges records that describe the same paper,
and ranks the result by citations, recency, and PDF availability.

With --evaluate each ranked paper is graded for relevance by the generation
model and the list is reordered by score. Every run is recorded in the
catalog unless --no-catalog is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().Int("max-results", 0, "number of ranked papers to keep (default 20)")
	researchCmd.Flags().StringSlice("providers", nil, "providers to query: arxiv, semantic_scholar, openalex")
	researchCmd.Flags().Bool("evaluate", false, "grade each paper for relevance with the generation model")
	researchCmd.Flags().Bool("json", false, "output the report as JSON")
	researchCmd.Flags().Bool("csl", false, "output the papers as CSL YAML")
	researchCmd.Flags().String("save", "", "write the report to this YAML file")
	researchCmd.Flags().Bool("no-catalog", false, "do not record the run in the catalog")

	_ = viper.BindPFlag("search.max_results", researchCmd.Flags().Lookup("max-results"))
	_ = viper.BindPFlag("search.providers", researchCmd.Flags().Lookup("providers"))

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	evaluate, _ := cmd.Flags().GetBool("evaluate")
	noCatalog, _ := cmd.Flags().GetBool("no-catalog")

	cfg := loadConfig()
	query := strings.Join(args, " ")

	report, runID, err := research(ctx, cfg, query, evaluate, !noCatalog)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := search.WriteReportFile(path, report, cfg.Search.Providers); err != nil {
			return err
		}
		logger.Info().Str("path", path).Msg("report saved")
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	cslOutput, _ := cmd.Flags().GetBool("csl")
	switch {
	case jsonOutput:
		return search.FormatJSON(report, os.Stdout)
	case cslOutput:
		return search.FormatCSL(report, os.Stdout)
	}
	search.FormatTable(report, os.Stdout)
	if runID != "" {
		fmt.Fprintf(os.Stdout, "catalog run %s\n", runID)
	}
	return nil
}

// research runs the aggregator and, when record is set, stores the report
// in the catalog. A catalog failure is logged; the report is still returned.
func research(ctx context.Context, cfg types.PipelineConfig, query string, evaluate, record bool) (types.ResearchReport, string, error) {
	agg, err := newAggregator(cfg, evaluate)
	if err != nil {
		return types.ResearchReport{}, "", err
	}
	report, err := agg.Research(ctx, query, cfg.Search.MaxResults)
	if err != nil {
		return report, "", err
	}
	if !record {
		return report, "", nil
	}

	store, err := openCatalog(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("catalog unavailable; run not recorded")
		return report, "", nil
	}
	defer store.Close()

	runID, err := store.RecordResearch(ctx, report)
	if err != nil {
		logger.Warn().Err(err).Msg("recording research run")
		return report, "", nil
	}
	return report, runID, nil
}
