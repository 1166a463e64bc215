// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-rag/internal/catalog"
	"github.com/pdiddy/research-rag/internal/rag"
	"github.com/pdiddy/research-rag/internal/search"
	"github.com/pdiddy/research-rag/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [topic]",
	Short: "Chunk, embed, and index the papers for a topic",
	Long: `Ingest adds papers to the vector index. The papers come from a live
research run for the topic, from a saved report (--from), or from a run
recorded in the catalog (--run). Each paper is cut into abstract, summary,
and key-sentence chunks, embedded in one batch, and appended to the index,
which is then written to the blob store. Chunks already indexed under the
same topic are skipped.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("from", "", "ingest the papers of a saved report file")
	ingestCmd.Flags().String("run", "", "ingest the papers of a catalogued research run")
	ingestCmd.Flags().Bool("evaluate", false, "grade papers for relevance during a live research run")
	ingestCmd.Flags().Bool("json", false, "output the ingest report as JSON")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	from, _ := cmd.Flags().GetString("from")
	runID, _ := cmd.Flags().GetString("run")
	evaluate, _ := cmd.Flags().GetBool("evaluate")
	topic := strings.Join(args, " ")

	cfg := loadConfig()

	var (
		report types.ResearchReport
		err    error
	)
	switch {
	case from != "" && runID != "":
		return errors.New("use either --from or --run, not both")
	case from != "":
		rf, err := search.ReadReportFile(from)
		if err != nil {
			return err
		}
		report = rf.Report
	case runID != "":
		store, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		report, err = store.Report(ctx, runID)
		store.Close()
		if err != nil {
			return err
		}
	case topic != "":
		report, runID, err = research(ctx, cfg, topic, evaluate, true)
		if err != nil {
			return err
		}
	default:
		return errors.New("provide a topic, --from, or --run")
	}
	if topic == "" {
		topic = report.Query
	}
	if len(report.Papers) == 0 {
		return fmt.Errorf("no papers to ingest for %q", topic)
	}

	pipeline, closeFn, err := newPipeline(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeFn()

	ir, err := pipeline.Ingest(ctx, report.Papers, topic)
	if err != nil {
		return err
	}
	recordIngest(ctx, cfg, topic, runID, ir)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(ir)
	}
	printIngestReport(topic, ir)
	return nil
}

func recordIngest(ctx context.Context, cfg types.PipelineConfig, topic, runID string, ir rag.IngestReport) {
	store, err := openCatalog(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("catalog unavailable; ingest not recorded")
		return
	}
	defer store.Close()

	_, err = store.RecordIngest(ctx, catalog.IngestRun{
		Topic:         topic,
		ResearchRunID: runID,
		Papers:        ir.PapersProcessed,
		ChunksCreated: ir.ChunksCreated,
		ChunksStored:  ir.ChunksStored,
		ChunksSkipped: ir.ChunksSkipped,
		Synced:        ir.Synced,
		SyncError:     ir.SyncError,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("recording ingest run")
	}
}

func printIngestReport(topic string, ir rag.IngestReport) {
	fmt.Printf("Ingested %q\n", topic)
	fmt.Printf("  papers processed: %d\n", ir.PapersProcessed)
	fmt.Printf("  chunks created:   %d\n", ir.ChunksCreated)
	fmt.Printf("  chunks stored:    %d\n", ir.ChunksStored)
	fmt.Printf("  chunks skipped:   %d\n", ir.ChunksSkipped)
	fmt.Printf("  index size:       %d\n", ir.TotalChunks)
	if !ir.Synced {
		color.New(color.FgYellow).Printf("warning: index not written to the blob store: %s\n", ir.SyncError)
		fmt.Println("the new chunks were not persisted; retry the ingest once the store is reachable")
	}
}
