// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-rag/internal/rag"
	"github.com/pdiddy/research-rag/pkg/types"
)

var headerColor = color.New(color.Bold)

// --- retrieve ---

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Find the indexed chunks most similar to a query",
	Long: `Retrieve embeds the query and returns the closest chunks in the vector
index, best first. Results below the score threshold are dropped. Use
--context to print the block that would be handed to the answer model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().Int("top-k", 0, "number of chunks to return (default from config, 5)")
	retrieveCmd.Flags().Float64("threshold", -1, "minimum similarity score (default from config, 0.3)")
	retrieveCmd.Flags().Bool("context", false, "print the formatted prompt context instead of a table")
	retrieveCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	topK, _ := cmd.Flags().GetInt("top-k")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	pipeline, closeFn, err := newPipeline(ctx, loadConfig(), false)
	if err != nil {
		return err
	}
	defer closeFn()

	results, err := pipeline.Retrieve(ctx, strings.Join(args, " "), topK, threshold)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(results)
	}
	if showContext, _ := cmd.Flags().GetBool("context"); showContext {
		fmt.Println(rag.FormatContext(results))
		return nil
	}
	printResults(results)
	return nil
}

func printResults(results []types.SearchResult) {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}

	headerColor.Printf("%-4s  %-6s  %-12s  %-40s  %s\n", "Rank", "Score", "Section", "Paper", "Text")
	fmt.Println(strings.Repeat("-", 120))
	for i, r := range results {
		fmt.Printf("%-4d  %-6.3f  %-12s  %-40s  %s\n",
			i+1, r.Score, r.ChunkType, clip(r.PaperTitle, 40), clip(r.Text, 50))
	}
	fmt.Printf("\n%d results\n", len(results))
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed papers",
	Long: `Ask retrieves the chunks most relevant to the question and asks the
generation model to answer from them, citing the papers it used. When the
index holds nothing relevant the model is not called.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("json", false, "output the answer as JSON")
	askCmd.Flags().Bool("show-context", false, "print the retrieved context before the answer")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pipeline, closeFn, err := newPipeline(ctx, loadConfig(), true)
	if err != nil {
		return err
	}
	defer closeFn()

	ans, err := pipeline.Answer(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(ans)
	}
	if showContext, _ := cmd.Flags().GetBool("show-context"); showContext && len(ans.Context) > 0 {
		fmt.Println(rag.FormatContext(ans.Context))
	}

	fmt.Println(ans.Response)
	if ans.Status != rag.StatusSuccess {
		return nil
	}
	fmt.Println()
	headerColor.Println("Referenced papers")
	for i, p := range ans.Papers {
		authors := strings.Join(p.Authors, ", ")
		fmt.Printf("  [%d] %s (%s) score %.3f\n", i+1, p.Title, clip(authors, 40), p.RelevanceScore)
	}
	fmt.Printf("\nconfidence %.3f, %s\n", ans.Confidence, ans.Elapsed.Round(time.Millisecond))
	return nil
}

// --- shared helpers ---

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// clip shortens s to n runes, ending with "..." when cut.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
