package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/probelab/STRATA/internal/config"
	"github.com/probelab/STRATA/internal/optimization"
	"github.com/probelab/STRATA/internal/optimization/strategies"
	"github.com/probelab/STRATA/internal/report"
	"github.com/probelab/STRATA/internal/sim"
	"github.com/probelab/STRATA/internal/trace"
)

var (
	specPath   string
	outDir     string
	seedFlag   int64
	iterations int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an optimization from a YAML run spec",
	Long: `Loads a run spec, executes the optimization loop and writes the
per-evaluation trace, the best-so-far stream and a summary report to the
output directory.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&specPath, "spec", "", "Run spec YAML path (required)")
	runCmd.Flags().StringVar(&outDir, "out", "data/runs", "Output directory for run artifacts")
	runCmd.Flags().Int64Var(&seedFlag, "seed", 0, "Override the run seed from the spec")
	runCmd.Flags().IntVar(&iterations, "iterations", 0, "Override the iteration budget from the spec")

	runCmd.MarkFlagRequired("spec")
	rootCmd.AddCommand(runCmd)
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategy kinds",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(strings.Join(strategies.Kinds(), "\n"))
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	spec, err := config.LoadRunSpec(specPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		spec.Seed = seedFlag
	}
	if iterations > 0 {
		spec.Iterations = iterations
	}

	space, err := spec.Space()
	if err != nil {
		return err
	}
	strategy, err := strategies.New(spec.Strategy, space)
	if err != nil {
		return err
	}
	evaluator, err := sim.New(spec.Evaluator.Name, spec.Evaluator.Noise)
	if err != nil {
		return err
	}

	recorder, err := trace.NewWriter(outDir, spec.Name)
	if err != nil {
		return err
	}

	runner, err := optimization.NewRunner(space, strategy, evaluator, optimization.RunnerConfig{
		Iterations: spec.Iterations,
		BatchSize:  spec.BatchSize,
		Seed:       spec.Seed,
	}, recorder)
	if err != nil {
		recorder.Close()
		return err
	}

	logger.Info("Starting optimization run", map[string]interface{}{
		"name":       spec.Name,
		"strategy":   spec.Strategy.Kind,
		"evaluator":  evaluator.Name(),
		"iterations": spec.Iterations,
		"batch_size": spec.BatchSize,
		"seed":       spec.Seed,
	})

	start := time.Now()
	result, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	summary := report.Build(result)
	summaryPath := filepath.Join(outDir, spec.Name+".summary.json")
	if err := report.Save(summary, summaryPath); err != nil {
		return err
	}

	logger.Info("Optimization run finished", map[string]interface{}{
		"name":        spec.Name,
		"reason":      string(result.Reason),
		"evaluations": result.Evaluations,
		"elapsed":     elapsed.String(),
	})

	if best, ok := result.History.Best(); ok {
		fmt.Printf("Wrote %s (best objective: %g after %d evaluations, %s)\n",
			summaryPath, best.Objective, result.Evaluations, result.Reason)
	} else {
		fmt.Printf("Wrote %s (no evaluations recorded, %s)\n", summaryPath, result.Reason)
	}
	return nil
}
