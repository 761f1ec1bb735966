package optimization

// Strategy is the ask/tell proposer contract. Two constructions with the
// same (space, seed) must produce identical Ask sequences given identical
// Tell sequences; no strategy may consult wall-clock time or a random
// source other than its injected seed.
type Strategy interface {
	// Ask returns the next candidate to evaluate. A composite strategy
	// whose members are all converged fails with ExhaustedError.
	Ask() (Candidate, error)

	// Tell records evaluation feedback for a previously asked candidate.
	// Results must arrive in the order their candidates were asked.
	Tell(result EvalResult) error

	// Converged reports whether the strategy considers the optimization
	// finished. Once true it never becomes false again.
	Converged() bool

	// History returns the strategy's own view of everything told to it.
	History() *History
}

// SequentialTeller is implemented by strategies whose Tell routing depends
// on a single determinate in-flight candidate. The Runner drives such
// strategies with an effective batch size of one, pairing every Ask with a
// Tell before the next Ask.
type SequentialTeller interface {
	SequentialTell() bool
}

// RequiresSequentialTell reports whether the Runner must pair every Ask
// with an immediate Tell for this strategy.
func RequiresSequentialTell(s Strategy) bool {
	if st, ok := s.(SequentialTeller); ok {
		return st.SequentialTell()
	}
	return false
}
