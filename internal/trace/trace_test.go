package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/STRATA/internal/optimization"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func record(objective float64, hash string) optimization.EvalResult {
	return optimization.EvalResult{
		Theta:      optimization.Config{"x": objective},
		Objective:  objective,
		Seed:       1,
		ConfigHash: hash,
		Provenance: map[string]string{"source": "evaluator"},
	}
}

func TestWriterStreams(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "myrun")
	require.NoError(t, err)

	// Objectives 5, 3, 4, 3: best stream gets 5, 3 and the tying 3.
	results := []float64{5, 3, 4, 3}
	best := 5.0
	for i, obj := range results {
		if obj < best {
			best = obj
		}
		require.NoError(t, w.Record(i, record(obj, "h"), record(best, "h")))
	}
	require.NoError(t, w.Close())

	entries := readEntries(t, filepath.Join(dir, "myrun.trace.jsonl"))
	require.Len(t, entries, 4)
	for i, entry := range entries {
		assert.Equal(t, i, entry.Iteration)
		assert.Equal(t, results[i], entry.Objective)
	}
	assert.Equal(t, 3.0, entries[3].BestObjective)

	bests := readEntries(t, filepath.Join(dir, "myrun.best.jsonl"))
	require.Len(t, bests, 3)
	assert.Equal(t, 5.0, bests[0].Objective)
	assert.Equal(t, 3.0, bests[1].Objective)
	assert.Equal(t, 3.0, bests[2].Objective)
}

func TestWriterFlush(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "flushed")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Record(0, record(1, "h"), record(1, "h")))
	require.NoError(t, w.Flush())

	entries := readEntries(t, filepath.Join(dir, "flushed.trace.jsonl"))
	assert.Len(t, entries, 1)
}

func TestWriterCloseIdempotent(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "r")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWriterTruncatesPreviousRun(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, "r")
	require.NoError(t, err)
	require.NoError(t, w.Record(0, record(1, "h"), record(1, "h")))
	require.NoError(t, w.Close())

	w, err = NewWriter(dir, "r")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries := readEntries(t, filepath.Join(dir, "r.trace.jsonl"))
	assert.Empty(t, entries)
}
