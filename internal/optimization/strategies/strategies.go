// Package strategies provides the ask/tell strategy variants: uniform
// random, scrambled Halton, CMA-ES, and the staged and portfolio
// compositions. Every variant is deterministic given its construction seed
// and tell sequence.
package strategies

import (
	"sort"
	"strings"

	"github.com/probelab/STRATA/internal/optimization"
)

// Strategy kind names accepted by New.
const (
	KindRandom    = "random"
	KindHalton    = "halton"
	KindCMAES     = "cmaes"
	KindStaged    = "staged"
	KindPortfolio = "portfolio"
)

// Spec is a declarative strategy description, nested for composites. It maps
// directly onto the run-spec YAML and the server's JSON request body.
type Spec struct {
	Kind     string      `json:"kind" yaml:"kind"`
	Seed     int64       `json:"seed" yaml:"seed"`
	MaxEvals int         `json:"max_evals,omitempty" yaml:"max_evals,omitempty"`
	Sigma    float64     `json:"sigma,omitempty" yaml:"sigma,omitempty"`
	Stages   []StageSpec `json:"stages,omitempty" yaml:"stages,omitempty"`
	Members  []Spec      `json:"members,omitempty" yaml:"members,omitempty"`
}

// StageSpec pairs a member strategy with an optional per-stage evaluation
// cap; zero means uncapped.
type StageSpec struct {
	Strategy Spec `json:"strategy" yaml:"strategy"`
	Cap      int  `json:"cap,omitempty" yaml:"cap,omitempty"`
}

type builder func(spec Spec, space *optimization.Space) (optimization.Strategy, error)

// registry maps backend names to constructors. Variants register themselves
// at init time, so a build that omits a backend simply leaves it
// unregistered and New reports it as unavailable.
var registry = map[string]builder{}

func register(kind string, b builder) {
	registry[kind] = b
}

// Kinds returns the registered backend names, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds the strategy described by spec over the given space. An
// unregistered kind fails with DependencyUnavailableError so callers can
// branch on the error kind.
func New(spec Spec, space *optimization.Space) (optimization.Strategy, error) {
	b, ok := registry[spec.Kind]
	if !ok {
		return nil, &optimization.DependencyUnavailableError{
			Backend:     spec.Kind,
			Remediation: "available backends: " + strings.Join(Kinds(), ", "),
		}
	}
	return b(spec, space)
}
