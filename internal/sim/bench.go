// Package sim provides built-in benchmark evaluators behind the Evaluator
// contract. Real simulation adapters live outside the optimization core and
// conform to the same contract; these functions stand in for them in the
// server, the CLI and end-to-end tests.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/probelab/STRATA/internal/optimization"
)

// Benchmark objective names accepted by New.
const (
	Sphere     = "sphere"
	Rosenbrock = "rosenbrock"
	Rastrigin  = "rastrigin"
)

// Benchmark evaluates a named synthetic objective over the numeric values of
// a configuration. A non-zero noise level adds seed-derived Gaussian noise,
// so the same (config, seed) pair always reproduces the same objective.
type Benchmark struct {
	name  string
	noise float64
	fn    func(x []float64) float64
}

// New creates a benchmark evaluator for the given objective name.
func New(name string, noise float64) (*Benchmark, error) {
	var fn func(x []float64) float64
	switch name {
	case Sphere:
		fn = sphere
	case Rosenbrock:
		fn = rosenbrock
	case Rastrigin:
		fn = rastrigin
	default:
		return nil, optimization.NewValidationError(name, "unknown benchmark objective (want %s)", strings.Join([]string{Sphere, Rosenbrock, Rastrigin}, ", "))
	}
	if noise < 0 {
		return nil, optimization.NewValidationError(name, "noise level must be >= 0, got %v", noise)
	}
	return &Benchmark{name: name, noise: noise, fn: fn}, nil
}

// Name returns the objective name.
func (b *Benchmark) Name() string { return b.name }

// Evaluate computes the objective over the config's numeric leaves, sorted
// by path so the dimension order is stable. Categorical values contribute
// nothing to the objective but are surfaced in the metrics.
func (b *Benchmark) Evaluate(ctx context.Context, config optimization.Config, seed int64) (float64, map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	x := numericLeaves(config)
	objective := b.fn(x)
	if b.noise > 0 {
		rng := rand.New(rand.NewSource(seed))
		objective += b.noise * rng.NormFloat64()
	}

	metrics := map[string]float64{
		"dimensions": float64(len(x)),
		"raw":        b.fn(x),
	}
	return objective, metrics, nil
}

// numericLeaves flattens the numeric leaf values of a configuration in
// sorted path order.
func numericLeaves(config optimization.Config) []float64 {
	paths := make([]string, 0, len(config))
	values := make(map[string]float64)
	collectNumeric("", map[string]interface{}(config), &paths, values)
	sort.Strings(paths)

	x := make([]float64, len(paths))
	for i, p := range paths {
		x[i] = values[p]
	}
	return x
}

func collectNumeric(prefix string, node map[string]interface{}, paths *[]string, values map[string]float64) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]interface{}:
			collectNumeric(path, v, paths, values)
		case optimization.Config:
			collectNumeric(path, v, paths, values)
		case float64:
			*paths = append(*paths, path)
			values[path] = v
		case int:
			*paths = append(*paths, path)
			values[path] = float64(v)
		}
	}
}

func sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func rosenbrock(x []float64) float64 {
	if len(x) < 2 {
		return sphere(x)
	}
	sum := 0.0
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

func rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}
