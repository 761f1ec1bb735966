package strategies

import (
	"math/rand"

	"github.com/probelab/STRATA/internal/optimization"
)

func init() {
	register(KindHalton, func(spec Spec, space *optimization.Space) (optimization.Strategy, error) {
		return NewHalton(space, spec.Seed, spec.MaxEvals)
	})
}

// Halton is a quasi-random low-discrepancy strategy using digit-scrambled
// Halton sequences, one prime base per dimension. It is numeric-only: the
// sequence fills a continuous box, so categorical parameters are rejected
// at construction.
type Halton struct {
	params   []optimization.Parameter
	space    *optimization.Space
	bases    []uint64
	perms    [][]uint64
	index    uint64
	maxEvals int
	hist     *optimization.History
	done     bool
}

// NewHalton creates a scrambled-Halton strategy. The seed selects the digit
// permutations; maxEvals of zero means no self-imposed cap.
func NewHalton(space *optimization.Space, seed int64, maxEvals int) (*Halton, error) {
	if space == nil {
		return nil, optimization.NewValidationError("", "halton strategy requires a parameter space")
	}
	if !space.IsNumeric() {
		return nil, optimization.NewValidationError("", "halton is numeric-only and cannot run over a space with categorical parameters")
	}

	bases := firstPrimes(space.Len())
	rng := rand.New(rand.NewSource(seed))
	perms := make([][]uint64, len(bases))
	for i, base := range bases {
		// Permute digits 1..b-1 and keep 0 fixed so the implicit
		// leading zeros of the radical inverse stay zero.
		perm := make([]uint64, base)
		for d := uint64(0); d < base; d++ {
			perm[d] = d
		}
		rng.Shuffle(int(base-1), func(a, b int) {
			perm[a+1], perm[b+1] = perm[b+1], perm[a+1]
		})
		perms[i] = perm
	}

	return &Halton{
		params:   space.Parameters(),
		space:    space,
		bases:    bases,
		perms:    perms,
		index:    1, // index 0 maps every dimension to 0.0
		maxEvals: maxEvals,
		hist:     optimization.NewHistory(),
	}, nil
}

// Ask returns the next point of the sequence scaled into the bounds.
func (s *Halton) Ask() (optimization.Candidate, error) {
	vec := make([]float64, len(s.params))
	for i, p := range s.params {
		u := radicalInverse(s.index, s.bases[i], s.perms[i])
		vec[i] = p.Bounds.Low + u*(p.Bounds.High-p.Bounds.Low)
	}
	s.index++
	theta, err := s.space.Decode(vec)
	if err != nil {
		return optimization.Candidate{}, err
	}
	return optimization.Candidate{Theta: theta, Vector: vec}, nil
}

// Tell records the result.
func (s *Halton) Tell(result optimization.EvalResult) error {
	s.hist.Append(result)
	if s.maxEvals > 0 && s.hist.Len() >= s.maxEvals {
		s.done = true
	}
	return nil
}

// Converged reports whether the evaluation cap was reached.
func (s *Halton) Converged() bool { return s.done }

// History returns everything told to this strategy.
func (s *Halton) History() *optimization.History { return s.hist }

// radicalInverse computes the base-b van der Corput radical inverse of n
// with the given digit permutation applied.
func radicalInverse(n, base uint64, perm []uint64) float64 {
	inv := 1.0 / float64(base)
	f := inv
	result := 0.0
	for n > 0 {
		result += float64(perm[n%base]) * f
		n /= base
		f *= inv
	}
	return result
}

// firstPrimes returns the first n primes by trial division.
func firstPrimes(n int) []uint64 {
	primes := make([]uint64, 0, n)
	for candidate := uint64(2); len(primes) < n; candidate++ {
		isPrime := true
		for _, p := range primes {
			if p*p > candidate {
				break
			}
			if candidate%p == 0 {
				isPrime = false
				break
			}
		}
		if isPrime {
			primes = append(primes, candidate)
		}
	}
	return primes
}
