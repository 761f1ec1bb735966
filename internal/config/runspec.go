package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/probelab/STRATA/internal/optimization"
	"github.com/probelab/STRATA/internal/optimization/strategies"
)

// RunSpec is a declarative optimization run: the parameter space, the
// strategy tree, the evaluator selection and the budget. It is loaded from
// YAML by the CLI and accepted as JSON by the server.
type RunSpec struct {
	Name       string          `json:"name" yaml:"name"`
	Evaluator  EvaluatorSpec   `json:"evaluator" yaml:"evaluator"`
	Parameters []ParameterSpec `json:"parameters" yaml:"parameters"`
	Strategy   strategies.Spec `json:"strategy" yaml:"strategy"`
	Iterations int             `json:"iterations" yaml:"iterations"`
	BatchSize  int             `json:"batch_size" yaml:"batch_size"`
	Seed       int64           `json:"seed" yaml:"seed"`
}

// EvaluatorSpec selects a named evaluator adapter.
type EvaluatorSpec struct {
	Name  string  `json:"name" yaml:"name"`
	Noise float64 `json:"noise,omitempty" yaml:"noise,omitempty"`
}

// ParameterSpec declares one dimension. Bounds is a [low, high] pair for
// numeric parameters; Choices lists the categorical values. Exactly one of
// the two must be present.
type ParameterSpec struct {
	Name    string        `json:"name" yaml:"name"`
	Path    string        `json:"path,omitempty" yaml:"path,omitempty"`
	Bounds  []float64     `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Choices []interface{} `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// LoadRunSpec reads and parses a YAML run spec file.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run spec %s: %w", path, err)
	}
	spec, err := ParseRunSpec(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run spec %s: %w", path, err)
	}
	return spec, nil
}

// ParseRunSpec parses a YAML run spec and applies defaults.
func ParseRunSpec(data []byte) (*RunSpec, error) {
	spec := &RunSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, err
	}
	if spec.Name == "" {
		spec.Name = "optimization"
	}
	if spec.BatchSize == 0 {
		spec.BatchSize = 1
	}
	if spec.Iterations <= 0 {
		return nil, fmt.Errorf("run spec requires iterations > 0")
	}
	if spec.Strategy.Kind == "" {
		return nil, fmt.Errorf("run spec requires a strategy kind")
	}
	if len(spec.Parameters) == 0 {
		return nil, fmt.Errorf("run spec requires at least one parameter")
	}
	return spec, nil
}

// Space builds the parameter space declared by the spec.
func (rs *RunSpec) Space() (*optimization.Space, error) {
	params := make([]optimization.Parameter, 0, len(rs.Parameters))
	for _, p := range rs.Parameters {
		if len(p.Bounds) != 0 && len(p.Bounds) != 2 {
			return nil, fmt.Errorf("parameter %s: bounds must be a [low, high] pair", p.Name)
		}
		param := optimization.Parameter{Name: p.Name, Path: p.Path, Choices: p.Choices}
		if len(p.Bounds) == 2 {
			param.Bounds = &optimization.Bounds{Low: p.Bounds[0], High: p.Bounds[1]}
		}
		params = append(params, param)
	}
	return optimization.NewSpace(params...)
}
