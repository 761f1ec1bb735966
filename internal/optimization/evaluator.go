package optimization

import "context"

// Evaluator is the external collaborator that maps a configuration and seed
// to an objective scalar plus a metric map. Implementations may be expensive
// and may fail; the Runner converts failures into penalty records. An
// evaluator must use the seed it is given and must not retain or mutate the
// configuration.
type Evaluator interface {
	Evaluate(ctx context.Context, config Config, seed int64) (float64, map[string]float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, config Config, seed int64) (float64, map[string]float64, error)

// Evaluate calls the underlying function.
func (f EvaluatorFunc) Evaluate(ctx context.Context, config Config, seed int64) (float64, map[string]float64, error) {
	return f(ctx, config, seed)
}
