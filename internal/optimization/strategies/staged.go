package strategies

import (
	"github.com/probelab/STRATA/internal/optimization"
)

func init() {
	register(KindStaged, func(spec Spec, space *optimization.Space) (optimization.Strategy, error) {
		if len(spec.Stages) == 0 {
			return nil, optimization.NewValidationError("", "staged strategy requires at least one stage")
		}
		stages := make([]Stage, 0, len(spec.Stages))
		for _, stage := range spec.Stages {
			member, err := New(stage.Strategy, space)
			if err != nil {
				return nil, err
			}
			stages = append(stages, Stage{Strategy: member, Cap: stage.Cap})
		}
		return NewStaged(stages...)
	})
}

// Stage pairs a member strategy with an optional tell cap (zero = uncapped).
type Stage struct {
	Strategy optimization.Strategy
	Cap      int
}

// Staged runs member strategies in sequence. The active stage advances when
// it converges or when its tell cap is reached; once the last stage
// finishes, the composite is terminal: Converged reports true and Ask fails
// with ExhaustedError.
type Staged struct {
	stages []Stage
	index  int
	tells  int // tells delivered to the current stage
	hist   *optimization.History
}

// NewStaged creates a staged composition. Stage strategies are owned by the
// composite and must not be shared.
func NewStaged(stages ...Stage) (*Staged, error) {
	if len(stages) == 0 {
		return nil, optimization.NewValidationError("", "staged strategy requires at least one stage")
	}
	for _, stage := range stages {
		if stage.Strategy == nil {
			return nil, optimization.NewValidationError("", "staged strategy stage must not be nil")
		}
		if stage.Cap < 0 {
			return nil, optimization.NewValidationError("", "stage cap must be >= 0, got %d", stage.Cap)
		}
	}
	return &Staged{stages: stages, hist: optimization.NewHistory()}, nil
}

// SequentialTell marks the composite for one-tell-per-ask driving.
func (s *Staged) SequentialTell() bool { return true }

// Ask delegates to the current stage.
func (s *Staged) Ask() (optimization.Candidate, error) {
	if s.index >= len(s.stages) {
		return optimization.Candidate{}, &optimization.ExhaustedError{Strategy: "staged"}
	}
	return s.stages[s.index].Strategy.Ask()
}

// Tell delegates to the current stage, then advances at most one stage if
// the stage converged or its cap was reached. A stage that converges exactly
// as its cap is hit still advances exactly once.
func (s *Staged) Tell(result optimization.EvalResult) error {
	if s.index >= len(s.stages) {
		return optimization.NewValidationError("", "staged strategy told after exhaustion")
	}
	stage := s.stages[s.index]
	if err := stage.Strategy.Tell(result); err != nil {
		return err
	}
	s.hist.Append(result)
	s.tells++
	if stage.Strategy.Converged() || (stage.Cap > 0 && s.tells >= stage.Cap) {
		s.index++
		s.tells = 0
	}
	return nil
}

// Converged reports whether every stage has finished.
func (s *Staged) Converged() bool { return s.index >= len(s.stages) }

// History returns the merged history: stage order, intra-stage insertion
// order. Stages never interleave, so this equals tell order.
func (s *Staged) History() *optimization.History { return s.hist }
