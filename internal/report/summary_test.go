package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/STRATA/internal/optimization"
)

func sampleResult(t *testing.T) *optimization.RunResult {
	t.Helper()
	history := optimization.NewHistory()
	history.Append(optimization.EvalResult{
		Objective:  4,
		Provenance: map[string]string{"source": "evaluator"},
	})
	history.Append(optimization.EvalResult{
		Objective:  1e12,
		Provenance: map[string]string{"source": "penalty", "error": "crashed"},
	})
	history.Append(optimization.EvalResult{
		Objective:  2,
		ConfigHash: "winner",
		Provenance: map[string]string{"source": "evaluator"},
	})
	return &optimization.RunResult{
		History:          history,
		Seed:             42,
		SpaceFingerprint: "fp",
		ConfigHash:       "ch",
		Reason:           optimization.ReasonIterationLimit,
		Evaluations:      3,
	}
}

func TestBuildSummary(t *testing.T) {
	summary := Build(sampleResult(t))

	assert.Equal(t, "optimization", summary.RunType)
	assert.Equal(t, int64(42), summary.Seed)
	assert.Equal(t, 3, summary.Evaluations)
	assert.Equal(t, "fp", summary.SpaceFingerprint)
	assert.Equal(t, "ch", summary.ConfigHash)
	assert.Equal(t, "iteration_limit", summary.Reason)
	assert.Equal(t, 1, summary.Penalties)

	require.NotNil(t, summary.Objective)
	assert.Equal(t, 2.0, summary.Objective.Min)
	assert.Equal(t, 1e12, summary.Objective.Max)

	require.NotNil(t, summary.Best)
	assert.Equal(t, "winner", summary.Best.ConfigHash)
}

func TestBuildSingleEvaluation(t *testing.T) {
	history := optimization.NewHistory()
	history.Append(optimization.EvalResult{
		Objective:  3,
		Provenance: map[string]string{"source": "evaluator"},
	})
	summary := Build(&optimization.RunResult{
		History:     history,
		Reason:      optimization.ReasonIterationLimit,
		Evaluations: 1,
	})

	require.NotNil(t, summary.Objective)
	assert.Equal(t, 3.0, summary.Objective.Min)
	assert.Equal(t, 3.0, summary.Objective.Max)
	assert.Equal(t, 3.0, summary.Objective.Mean)
	assert.Equal(t, 0.0, summary.Objective.Stddev)

	// A one-evaluation summary must still serialize.
	path := filepath.Join(t.TempDir(), "one.summary.json")
	require.NoError(t, Save(summary, path))
}

func TestBuildEmptyHistory(t *testing.T) {
	summary := Build(&optimization.RunResult{
		History: optimization.NewHistory(),
		Reason:  optimization.ReasonCancelled,
	})
	assert.Equal(t, 0, summary.Penalties)
	assert.Nil(t, summary.Objective)
	assert.Nil(t, summary.Best)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "run.summary.json")

	summary := Build(sampleResult(t))
	require.NoError(t, Save(summary, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Summary
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, summary.Seed, loaded.Seed)
	assert.Equal(t, summary.Reason, loaded.Reason)
	assert.Equal(t, summary.Objective.Min, loaded.Objective.Min)
}
