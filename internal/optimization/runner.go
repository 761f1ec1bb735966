package optimization

import (
	"context"
	"fmt"
)

// DefaultPenaltyObjective is the sentinel objective assigned to failed
// evaluations when the runner config does not override it.
const DefaultPenaltyObjective = 1e12

// TerminationReason explains why a run stopped.
type TerminationReason string

const (
	// ReasonIterationLimit means the full evaluation budget was spent.
	ReasonIterationLimit TerminationReason = "iteration_limit"
	// ReasonConverged means the strategy reported convergence early.
	ReasonConverged TerminationReason = "converged"
	// ReasonExhausted means a composite strategy ran out of proposals.
	ReasonExhausted TerminationReason = "exhausted"
	// ReasonEvaluatorErrorLimit means too many consecutive evaluator
	// failures occurred.
	ReasonEvaluatorErrorLimit TerminationReason = "evaluator_error_limit"
	// ReasonCancelled means the caller's context was cancelled.
	ReasonCancelled TerminationReason = "cancelled"
)

// Recorder consumes the append-only record stream the runner emits after
// each told result. Implementations write traces, snapshots or metrics; the
// runner only defines the record shape.
type Recorder interface {
	Record(iteration int, result EvalResult, best EvalResult) error
	Close() error
}

// RunnerConfig configures one optimization run.
type RunnerConfig struct {
	// Iterations is the number of ask/tell rounds.
	Iterations int
	// BatchSize is the number of candidates asked per round. Composite
	// strategies are always driven with an effective batch of one.
	BatchSize int
	// Seed is the run-level seed; per-evaluation seeds derive from it.
	Seed int64
	// PenaltyObjective is the sentinel objective for failed evaluations.
	// Zero selects DefaultPenaltyObjective.
	PenaltyObjective float64
	// MaxConsecutiveFailures terminates the run with
	// ReasonEvaluatorErrorLimit once that many evaluator failures occur in
	// a row. Zero means unlimited.
	MaxConsecutiveFailures int
}

// RunResult is the outcome of a run: the accumulated history plus the
// metadata needed to replay or summarize it.
type RunResult struct {
	History          *History
	Seed             int64
	SpaceFingerprint string
	ConfigHash       string
	Reason           TerminationReason
	Evaluations      int
}

// DeriveSeed returns the evaluation seed for the given global ordinal. It is
// a pure function of the run seed and the ordinal, so reruns with the same
// run seed reproduce the same per-candidate seeds regardless of candidate
// content. Within one run all derived seeds are distinct.
func DeriveSeed(runSeed int64, ordinal int) int64 {
	return runSeed + int64(ordinal)
}

// Runner drives the ask/tell loop against an evaluator. Each runner owns
// exactly one strategy instance and one history for the duration of a run.
type Runner struct {
	space     *Space
	strategy  Strategy
	evaluator Evaluator
	cfg       RunnerConfig
	recorder  Recorder

	history     *History
	ordinal     int
	consecFails int
}

// NewRunner validates the wiring and builds a runner. The recorder may be
// nil when no artifact stream is wanted; a non-nil recorder is owned by the
// runner from here on and is closed when Run returns.
func NewRunner(space *Space, strategy Strategy, evaluator Evaluator, cfg RunnerConfig, recorder Recorder) (*Runner, error) {
	if space == nil {
		return nil, NewValidationError("", "runner requires a parameter space")
	}
	if strategy == nil {
		return nil, NewValidationError("", "runner requires a strategy")
	}
	if evaluator == nil {
		return nil, NewValidationError("", "runner requires an evaluator")
	}
	if cfg.Iterations < 0 {
		return nil, NewValidationError("", "iterations must be >= 0, got %d", cfg.Iterations)
	}
	if cfg.BatchSize <= 0 {
		return nil, NewValidationError("", "batch size must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.PenaltyObjective == 0 {
		cfg.PenaltyObjective = DefaultPenaltyObjective
	}
	return &Runner{
		space:     space,
		strategy:  strategy,
		evaluator: evaluator,
		cfg:       cfg,
		recorder:  recorder,
		history:   NewHistory(),
	}, nil
}

// History returns the run's history accumulated so far.
func (r *Runner) History() *History { return r.history }

// Run executes up to Iterations x BatchSize evaluations. Early termination
// through convergence, exhaustion or the failure limit is a normal outcome
// recorded in the result, not an error. On context cancellation the partial
// result is still returned. The recorder is closed on every exit path.
func (r *Runner) Run(ctx context.Context) (result *RunResult, err error) {
	defer func() {
		if r.recorder == nil {
			return
		}
		if cerr := r.recorder.Close(); cerr != nil && err == nil {
			result = nil
			err = fmt.Errorf("closing recorder: %w", cerr)
		}
	}()

	total := r.cfg.Iterations * r.cfg.BatchSize
	batch := r.cfg.BatchSize
	if RequiresSequentialTell(r.strategy) {
		batch = 1
	}

	reason := ReasonIterationLimit
loop:
	for r.history.Len() < total {
		if r.strategy.Converged() {
			reason = ReasonConverged
			break
		}
		if ctx.Err() != nil {
			reason = ReasonCancelled
			break
		}

		n := batch
		if remaining := total - r.history.Len(); n > remaining {
			n = remaining
		}

		// Ask the whole batch before any tell. With batch == 1 this
		// degenerates to strict ask/tell pairing.
		candidates := make([]Candidate, 0, n)
		exhausted := false
		for len(candidates) < n {
			cand, err := r.strategy.Ask()
			if err != nil {
				if _, ok := IsExhausted(err); ok {
					exhausted = true
					break
				}
				return nil, err
			}
			candidates = append(candidates, cand)
		}

		for _, cand := range candidates {
			result := r.evaluate(ctx, cand)
			if err := r.strategy.Tell(result); err != nil {
				return nil, err
			}
			r.history.Append(result)
			if r.recorder != nil {
				best, _ := r.history.Best()
				if err := r.recorder.Record(r.history.Len()-1, result, best); err != nil {
					return nil, fmt.Errorf("recording evaluation: %w", err)
				}
			}
			if r.cfg.MaxConsecutiveFailures > 0 && r.consecFails >= r.cfg.MaxConsecutiveFailures {
				reason = ReasonEvaluatorErrorLimit
				break loop
			}
		}
		if exhausted {
			reason = ReasonExhausted
			break
		}
	}

	return &RunResult{
		History:          r.history,
		Seed:             r.cfg.Seed,
		SpaceFingerprint: r.space.Fingerprint(),
		ConfigHash:       r.runConfigHash(),
		Reason:           reason,
		Evaluations:      r.history.Len(),
	}, nil
}

// evaluate invokes the evaluator with a defensive copy of the configuration
// and converts any failure, error or panic, into a deterministic penalty
// record so the ask/tell state machine stays total.
func (r *Runner) evaluate(ctx context.Context, cand Candidate) EvalResult {
	seed := DeriveSeed(r.cfg.Seed, r.ordinal)
	r.ordinal++
	hash := cand.Theta.Hash()

	objective, metrics, err := r.safeEvaluate(ctx, cand.Theta, seed)
	if err != nil {
		r.consecFails++
		return EvalResult{
			Theta:      cand.Theta,
			Objective:  r.cfg.PenaltyObjective,
			Metrics:    map[string]float64{"penalty": 1},
			Seed:       seed,
			ConfigHash: hash,
			Provenance: map[string]string{"source": "penalty", "error": err.Error()},
		}
	}
	r.consecFails = 0
	return EvalResult{
		Theta:      cand.Theta,
		Objective:  objective,
		Metrics:    metrics,
		Seed:       seed,
		ConfigHash: hash,
		Provenance: map[string]string{"source": "evaluator"},
	}
}

func (r *Runner) safeEvaluate(ctx context.Context, theta Config, seed int64) (objective float64, metrics map[string]float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("evaluator panic: %v", rec)
		}
	}()
	return r.evaluator.Evaluate(ctx, theta.Clone(), seed)
}

func (r *Runner) runConfigHash() string {
	return Config{
		"iterations":        r.cfg.Iterations,
		"batch_size":        r.cfg.BatchSize,
		"seed":              r.cfg.Seed,
		"penalty_objective": r.cfg.PenaltyObjective,
		"space":             r.space.Fingerprint(),
	}.Hash()
}
