// Package trace writes per-evaluation optimization artifacts as JSONL. It
// implements the Runner's recorder boundary: one line per told result plus a
// separate best-so-far snapshot stream.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/probelab/STRATA/internal/optimization"
)

// Entry is a single trace line.
type Entry struct {
	Iteration     int                 `json:"iteration"`
	Objective     float64             `json:"objective"`
	BestObjective float64             `json:"best_objective"`
	Seed          int64               `json:"seed"`
	ConfigHash    string              `json:"config_hash"`
	Theta         optimization.Config `json:"theta"`
	Metrics       map[string]float64  `json:"metrics,omitempty"`
	Provenance    map[string]string   `json:"provenance,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// Writer streams trace entries to <dir>/<run>.trace.jsonl and best-so-far
// snapshots to <dir>/<run>.best.jsonl. It is safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	traceFile *os.File
	trace     *bufio.Writer
	bestFile  *os.File
	best      *bufio.Writer
	haveBest  bool
	bestSeen  float64
	closed    bool
}

// NewWriter creates the output directory and both streams, truncating any
// previous run of the same name.
func NewWriter(dir, run string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}

	traceFile, err := os.Create(filepath.Join(dir, run+".trace.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	bestFile, err := os.Create(filepath.Join(dir, run+".best.jsonl"))
	if err != nil {
		traceFile.Close()
		return nil, fmt.Errorf("opening best file: %w", err)
	}

	return &Writer{
		traceFile: traceFile,
		trace:     bufio.NewWriterSize(traceFile, 64*1024),
		bestFile:  bestFile,
		best:      bufio.NewWriterSize(bestFile, 64*1024),
	}, nil
}

// Record appends one trace line, and a best snapshot when the result matches
// or improves the best objective seen so far.
func (w *Writer) Record(iteration int, result optimization.EvalResult, best optimization.EvalResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := Entry{
		Iteration:     iteration,
		Objective:     result.Objective,
		BestObjective: best.Objective,
		Seed:          result.Seed,
		ConfigHash:    result.ConfigHash,
		Theta:         result.Theta,
		Metrics:       result.Metrics,
		Provenance:    result.Provenance,
		Timestamp:     time.Now().UTC(),
	}
	if err := writeLine(w.trace, entry); err != nil {
		return fmt.Errorf("writing trace entry: %w", err)
	}

	if !w.haveBest || result.Objective <= w.bestSeen {
		w.haveBest = true
		w.bestSeen = result.Objective
		if err := writeLine(w.best, entry); err != nil {
			return fmt.Errorf("writing best snapshot: %w", err)
		}
	}
	return nil
}

// Flush writes buffered entries to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.trace.Flush(); err != nil {
		return err
	}
	return w.best.Flush()
}

// Close flushes and closes both streams. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	for _, step := range []func() error{
		w.trace.Flush,
		w.best.Flush,
		w.traceFile.Close,
		w.bestFile.Close,
	} {
		if err := step(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeLine(w *bufio.Writer, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}
