package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"arbiter/internal/llm"
	"arbiter/internal/pipeline"
	"arbiter/internal/stabilize"
	"arbiter/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	stabilizeFlag bool
	saveFlag      bool
	parallelism   int
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [files...]",
	Short: "Validate decision documents and compute weighted-sum rankings",
	Long: `Runs each file through the pipeline: decode, sanitize, evaluate. With
--stabilize and a configured API key, documents that fail validation are fed
back to the generator for bounded correction attempts. Files are processed
in parallel; results are printed as JSON per file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&stabilizeFlag, "stabilize", false, "regenerate invalid documents via the configured LLM")
	evaluateCmd.Flags().BoolVar(&saveFlag, "save", false, "record successful evaluations in the journal")
	evaluateCmd.Flags().IntVar(&parallelism, "parallelism", 4, "maximum files evaluated concurrently")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var regenerate stabilize.Regenerate
	if stabilizeFlag {
		client, err := llm.NewGenAIClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return fmt.Errorf("stabilization requested but no usable LLM client: %w", err)
		}
		regenerate = llm.Regenerator(client)
	}

	var journal *store.Journal
	if saveFlag {
		var err error
		journal, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	outcomes := make([]*pipeline.Outcome, len(args))

	for i, path := range args {
		g.Go(func() error {
			outcome, err := evaluateFile(gctx, path, regenerate)
			outcomes[i] = outcome
			if err != nil {
				logger.Warn("document failed validation",
					zap.String("file", path), zap.Error(err))
			}
			return nil // per-file failures are reported, not fatal to the batch
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, outcome := range outcomes {
		if outcome == nil {
			failed++
			continue
		}
		printOutcome(args[i], outcome)
		if outcome.Report == nil {
			failed++
			continue
		}
		if journal != nil {
			name := strings.TrimSuffix(filepath.Base(args[i]), filepath.Ext(args[i]))
			if err := journal.Save(name, outcome.Evaluation, outcome.Report); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents did not produce a result", failed, len(args))
	}
	return nil
}

func evaluateFile(ctx context.Context, path string, regenerate stabilize.Regenerate) (*pipeline.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	taskContext := fmt.Sprintf("decision document %q", filepath.Base(path))
	p := pipeline.New(cfg.StabilizeConfig(), cfg.Difficulty(), taskContext)
	return p.Process(ctx, string(data), regenerate)
}

func printOutcome(path string, outcome *pipeline.Outcome) {
	fmt.Printf("=== %s ===\n", path)
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		fmt.Printf("  (unprintable outcome: %v)\n", err)
		return
	}
	fmt.Println(string(data))
}
