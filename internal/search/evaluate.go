// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-rag/internal/llm"
	"github.com/pdiddy/research-rag/pkg/types"
)

// defaultRelevanceScore is used when a response has no parseable score.
const defaultRelevanceScore = 5

const evaluationPrompt = `You are an expert research assistant evaluating academic papers.

Given a research query and a paper's information, evaluate how relevant this paper is.

Research Query: %s

Paper Information:
Title: %s
Authors: %s
Abstract: %s
Published: %s
Venue: %s
Citation Count: %d
Sources: %s

Your task:
1. Rate relevance (1-10, where 10 is highly relevant)
2. Identify key contributions
3. Note potential limitations
4. Suggest why this paper is important for the research topic

Provide your evaluation in this format:

RELEVANCE_SCORE: [1-10]
KEY_CONTRIBUTIONS: [bullet points]
LIMITATIONS: [potential issues or scope limitations]
IMPORTANCE: [why this matters for the research topic]
`

// maxPromptAbstract bounds the abstract length sent to the model.
const maxPromptAbstract = 1000

// Evaluator grades papers against a research query with an LLM.
type Evaluator struct {
	gen         llm.Generator
	concurrency int
	log         zerolog.Logger
}

// NewEvaluator returns an Evaluator that runs up to concurrency requests
// at once (1 when concurrency <= 0).
func NewEvaluator(gen llm.Generator, concurrency int, log zerolog.Logger) *Evaluator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Evaluator{gen: gen, concurrency: concurrency, log: log}
}

// Evaluate grades one paper.
func (e *Evaluator) Evaluate(ctx context.Context, query string, paper types.PaperRecord) (*types.Evaluation, error) {
	resp, err := e.gen.Generate(ctx, BuildEvaluationPrompt(query, paper))
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", paper.Title, err)
	}
	ev := ParseEvaluation(resp)
	return &ev, nil
}

// EvaluateAll sets Relevance on each paper in place. A paper whose
// evaluation fails keeps a nil Relevance; the failure is logged.
func (e *Evaluator) EvaluateAll(ctx context.Context, query string, papers []types.PaperRecord) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range papers {
		g.Go(func() error {
			ev, err := e.Evaluate(ctx, query, papers[i])
			if err != nil {
				e.log.Warn().Err(err).Str("paper", papers[i].Key()).Msg("evaluation failed; keeping paper unscored")
				return nil
			}
			papers[i].Relevance = ev
			e.log.Debug().Str("paper", papers[i].Key()).Int("score", ev.Score).Msg("paper evaluated")
			return nil
		})
	}
	_ = g.Wait()
}

// BuildEvaluationPrompt renders the grading prompt for paper.
func BuildEvaluationPrompt(query string, paper types.PaperRecord) string {
	authors := strings.Join(first(paper.Authors, 3), ", ")
	if len(paper.Authors) > 3 {
		authors += " et al."
	}
	abstract := paper.Abstract
	if r := []rune(abstract); len(r) > maxPromptAbstract {
		abstract = string(r[:maxPromptAbstract])
	}
	return fmt.Sprintf(evaluationPrompt,
		query,
		paper.Title,
		orUnknown(authors),
		orUnknown(abstract),
		orUnknown(paper.Published),
		orUnknown(paper.Venue),
		paper.CitationCount,
		orUnknown(strings.Join(paper.Sources, ", ")),
	)
}

// ParseEvaluation reads a RELEVANCE_SCORE / KEY_CONTRIBUTIONS /
// LIMITATIONS / IMPORTANCE response. The score is clamped to 1..10 and
// defaults to 5 when missing or unparseable. Section text runs until the
// next header.
func ParseEvaluation(text string) types.Evaluation {
	ev := types.Evaluation{Score: defaultRelevanceScore, Raw: text}

	var (
		section       string
		contributions []string
		limitations   []string
		importance    []string
	)
	add := func(line string) {
		line = strings.TrimSpace(strings.TrimLeft(line, "-•* "))
		if line == "" {
			return
		}
		switch section {
		case "contributions":
			contributions = append(contributions, line)
		case "limitations":
			limitations = append(limitations, line)
		case "importance":
			importance = append(importance, line)
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "RELEVANCE_SCORE:"):
			section = ""
			if score, ok := parseScore(strings.TrimPrefix(line, "RELEVANCE_SCORE:")); ok {
				ev.Score = score
			}
		case strings.HasPrefix(line, "KEY_CONTRIBUTIONS:"):
			section = "contributions"
			add(strings.TrimPrefix(line, "KEY_CONTRIBUTIONS:"))
		case strings.HasPrefix(line, "LIMITATIONS:"):
			section = "limitations"
			add(strings.TrimPrefix(line, "LIMITATIONS:"))
		case strings.HasPrefix(line, "IMPORTANCE:"):
			section = "importance"
			add(strings.TrimPrefix(line, "IMPORTANCE:"))
		default:
			add(line)
		}
	}

	ev.KeyContributions = strings.Join(contributions, "\n")
	ev.Limitations = strings.Join(limitations, "\n")
	ev.Importance = strings.Join(importance, " ")
	return ev
}

// parseScore reads the leading integer of s, e.g. "8/10" or "[7]".
func parseScore(s string) (int, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	tok := strings.TrimLeft(fields[0], "[(")
	end := 0
	for end < len(tok) && tok[end] >= '0' && tok[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(tok[:end])
	if err != nil {
		return 0, false
	}
	return min(max(n, 1), 10), true
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
