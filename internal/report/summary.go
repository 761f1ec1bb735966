// Package report builds stable structured summaries of finished
// optimization runs for external reporting and artifact consumers.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"github.com/probelab/STRATA/internal/optimization"
)

// ObjectiveStats are aggregate statistics over all recorded objectives.
type ObjectiveStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
}

// Summary is the stable reporting artifact for one optimization run.
type Summary struct {
	RunType          string                   `json:"run_type"`
	Seed             int64                    `json:"seed"`
	Evaluations      int                      `json:"num_evaluations"`
	SpaceFingerprint string                   `json:"parameter_space_fingerprint"`
	ConfigHash       string                   `json:"config_hash"`
	Reason           string                   `json:"termination_reason"`
	Penalties        int                      `json:"num_penalties"`
	Objective        *ObjectiveStats          `json:"objective,omitempty"`
	Best             *optimization.EvalResult `json:"best,omitempty"`
}

// Build creates the summary for a finished run.
func Build(result *optimization.RunResult) Summary {
	summary := Summary{
		RunType:          "optimization",
		Seed:             result.Seed,
		Evaluations:      result.Evaluations,
		SpaceFingerprint: result.SpaceFingerprint,
		ConfigHash:       result.ConfigHash,
		Reason:           string(result.Reason),
	}

	records := result.History.Records()
	if len(records) == 0 {
		return summary
	}

	objectives := make([]float64, len(records))
	for i, record := range records {
		objectives[i] = record.Objective
		if record.Provenance["source"] == "penalty" {
			summary.Penalties++
		}
	}

	min, max := objectives[0], objectives[0]
	for _, v := range objectives[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	// stat.StdDev needs at least two samples; a single evaluation has zero
	// spread, and a NaN here would make the summary unencodable.
	stddev := 0.0
	if len(objectives) > 1 {
		stddev = stat.StdDev(objectives, nil)
	}
	summary.Objective = &ObjectiveStats{
		Min:    min,
		Max:    max,
		Mean:   stat.Mean(objectives, nil),
		Stddev: stddev,
	}

	if best, ok := result.History.Best(); ok {
		summary.Best = &best
	}
	return summary
}

// Save persists a summary as indented deterministic JSON.
func Save(summary Summary, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
