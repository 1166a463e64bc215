// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-rag/internal/vectorindex"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics",
	Long: `Stats loads the vector index from its blob store and prints the number
of chunks by section type and source, the number of distinct papers, the
embedding dimension, and whether the local state matches the store.`,
	RunE: runStats,
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Reload the vector index from the blob store",
	Long: `Resync discards local state and downloads the index artifacts again.
With --clear-cache the local artifact copies are removed first.`,
	RunE: runResync,
}

func init() {
	statsCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	resyncCmd.Flags().Bool("clear-cache", false, "remove local artifact copies before reloading")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resyncCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ix, err := openIndex(ctx, loadConfig())
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	return printStats(ix.Stats(), format)
}

func runResync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ix, err := openIndex(ctx, loadConfig())
	if err != nil {
		return err
	}
	if clearCache, _ := cmd.Flags().GetBool("clear-cache"); clearCache {
		if err := ix.ClearCache(); err != nil {
			return err
		}
	}
	if err := ix.ForceResync(ctx); err != nil {
		return err
	}
	return printStats(ix.Stats(), "table")
}

func printStats(st vectorindex.Stats, format string) error {
	switch format {
	case "json":
		return writeJSON(st)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(st)
	case "table", "":
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}

	fmt.Printf("location:       %s\n", st.Location)
	fmt.Printf("total chunks:   %d\n", st.TotalChunks)
	fmt.Printf("unique papers:  %d\n", st.UniquePapers)
	fmt.Printf("dimension:      %d\n", st.Dimension)
	fmt.Printf("generation:     %d\n", st.Generation)
	if st.Synced {
		fmt.Println("synced:         yes")
	} else {
		color.New(color.FgYellow).Println("synced:         no")
	}
	if st.LastSyncError != "" {
		fmt.Printf("last error:     %s\n", st.LastSyncError)
	}
	printCounts("chunk types", st.ChunkTypes)
	printCounts("sources", st.Sources)
	return nil
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headerColor.Printf("\n%s\n", title)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}
