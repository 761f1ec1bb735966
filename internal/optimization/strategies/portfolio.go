package strategies

import (
	"github.com/probelab/STRATA/internal/optimization"
)

func init() {
	register(KindPortfolio, func(spec Spec, space *optimization.Space) (optimization.Strategy, error) {
		if len(spec.Members) == 0 {
			return nil, optimization.NewValidationError("", "portfolio strategy requires at least one member")
		}
		members := make([]optimization.Strategy, 0, len(spec.Members))
		for _, member := range spec.Members {
			built, err := New(member, space)
			if err != nil {
				return nil, err
			}
			members = append(members, built)
		}
		return NewPortfolio(members...)
	})
}

// Portfolio rotates asks across member strategies round-robin, skipping
// converged members. Rotation is strictly index-based and never randomized,
// so the same tell sequence reproduces the same dispatch order.
type Portfolio struct {
	members []optimization.Strategy
	cursor  int
	pending []int // owner indices of asked-but-untold candidates, FIFO
	hist    *optimization.History
}

// NewPortfolio creates a portfolio composition. Member strategies are owned
// by the composite and must not be shared.
func NewPortfolio(members ...optimization.Strategy) (*Portfolio, error) {
	if len(members) == 0 {
		return nil, optimization.NewValidationError("", "portfolio strategy requires at least one member")
	}
	for _, member := range members {
		if member == nil {
			return nil, optimization.NewValidationError("", "portfolio member must not be nil")
		}
	}
	return &Portfolio{members: members, hist: optimization.NewHistory()}, nil
}

// SequentialTell marks the composite for one-tell-per-ask driving.
func (s *Portfolio) SequentialTell() bool { return true }

// Ask scans forward from the cursor, dispatches to the first member that has
// not converged, and leaves the cursor just past it. Fails with
// ExhaustedError when every member is converged.
func (s *Portfolio) Ask() (optimization.Candidate, error) {
	for range s.members {
		owner := s.cursor
		member := s.members[owner]
		s.cursor = (s.cursor + 1) % len(s.members)
		if member.Converged() {
			continue
		}
		cand, err := member.Ask()
		if err != nil {
			return optimization.Candidate{}, err
		}
		s.pending = append(s.pending, owner)
		return cand, nil
	}
	return optimization.Candidate{}, &optimization.ExhaustedError{Strategy: "portfolio"}
}

// Tell routes the result to the member that produced the oldest undelivered
// ask.
func (s *Portfolio) Tell(result optimization.EvalResult) error {
	if len(s.pending) == 0 {
		return optimization.NewValidationError("", "portfolio strategy told before ask")
	}
	owner := s.pending[0]
	s.pending = s.pending[1:]
	if err := s.members[owner].Tell(result); err != nil {
		return err
	}
	s.hist.Append(result)
	return nil
}

// Converged reports whether every member has converged.
func (s *Portfolio) Converged() bool {
	for _, member := range s.members {
		if !member.Converged() {
			return false
		}
	}
	return true
}

// History returns the merged history of all members in global ask order.
func (s *Portfolio) History() *optimization.History { return s.hist }
