package optimization

// Candidate is a proposal from a strategy. It carries the decoded
// configuration and its encoded vector; the evaluation seed is assigned by
// the Runner, never by the strategy.
type Candidate struct {
	// Theta is the decoded configuration to evaluate.
	Theta Config
	// Vector is the encoded form of Theta in space order.
	Vector []float64
}

// EvalResult is one evaluation record. It is immutable once constructed.
type EvalResult struct {
	// Theta is the configuration that was evaluated.
	Theta Config `json:"theta"`
	// Objective is the scalar outcome; lower is better.
	Objective float64 `json:"objective"`
	// Metrics are informational only and never used for ranking.
	Metrics map[string]float64 `json:"metrics,omitempty"`
	// Seed is the exact integer used for this evaluation.
	Seed int64 `json:"seed"`
	// ConfigHash is the stable hash of Theta.
	ConfigHash string `json:"config_hash"`
	// Provenance records where the result came from, including failure
	// details for penalty records.
	Provenance map[string]string `json:"provenance,omitempty"`
}

// History is an append-only ordered collection of evaluation records.
// Records are never reordered or deleted.
type History struct {
	records []EvalResult
	bestIdx int
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{bestIdx: -1}
}

// Append adds a record at the end of the history.
func (h *History) Append(result EvalResult) {
	// Strict comparison keeps the earliest record on ties.
	if h.bestIdx < 0 || result.Objective < h.records[h.bestIdx].Objective {
		h.bestIdx = len(h.records)
	}
	h.records = append(h.records, result)
}

// Len returns the number of records.
func (h *History) Len() int { return len(h.records) }

// At returns the record at index i.
func (h *History) At(i int) EvalResult { return h.records[i] }

// Records returns a copy of all records in insertion order.
func (h *History) Records() []EvalResult {
	return append([]EvalResult(nil), h.records...)
}

// Best returns the record with the minimal objective seen so far, tie-broken
// by earliest insertion order. The second return is false for an empty
// history.
func (h *History) Best() (EvalResult, bool) {
	if h.bestIdx < 0 {
		return EvalResult{}, false
	}
	return h.records[h.bestIdx], true
}
