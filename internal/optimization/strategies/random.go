package strategies

import (
	"math/rand"

	"github.com/probelab/STRATA/internal/optimization"
)

func init() {
	register(KindRandom, func(spec Spec, space *optimization.Space) (optimization.Strategy, error) {
		return NewRandom(space, spec.Seed, spec.MaxEvals)
	})
}

// Random is the always-available baseline: independent uniform draws over
// every parameter, categorical ones included.
type Random struct {
	params   []optimization.Parameter
	space    *optimization.Space
	rng      *rand.Rand
	maxEvals int
	hist     *optimization.History
	done     bool
}

// NewRandom creates a uniform-random strategy. maxEvals of zero means the
// strategy never converges on its own.
func NewRandom(space *optimization.Space, seed int64, maxEvals int) (*Random, error) {
	if space == nil {
		return nil, optimization.NewValidationError("", "random strategy requires a parameter space")
	}
	return &Random{
		params:   space.Parameters(),
		space:    space,
		rng:      rand.New(rand.NewSource(seed)),
		maxEvals: maxEvals,
		hist:     optimization.NewHistory(),
	}, nil
}

// Ask draws one candidate uniformly at random.
func (s *Random) Ask() (optimization.Candidate, error) {
	vec := make([]float64, len(s.params))
	for i, p := range s.params {
		if p.IsNumeric() {
			vec[i] = p.Bounds.Low + s.rng.Float64()*(p.Bounds.High-p.Bounds.Low)
		} else {
			vec[i] = float64(s.rng.Intn(len(p.Choices)))
		}
	}
	theta, err := s.space.Decode(vec)
	if err != nil {
		return optimization.Candidate{}, err
	}
	return optimization.Candidate{Theta: theta, Vector: vec}, nil
}

// Tell records the result.
func (s *Random) Tell(result optimization.EvalResult) error {
	s.hist.Append(result)
	if s.maxEvals > 0 && s.hist.Len() >= s.maxEvals {
		s.done = true
	}
	return nil
}

// Converged reports whether the evaluation cap was reached.
func (s *Random) Converged() bool { return s.done }

// History returns everything told to this strategy.
func (s *Random) History() *optimization.History { return s.hist }
