package optimization

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStrategy draws seeded uniform candidates and records the drive
// pattern so tests can assert on ask/tell interleaving.
type scriptedStrategy struct {
	space      *Space
	rng        *rand.Rand
	hist       *History
	maxEvals   int
	sequential bool
	exhaustAt  int // asks before ExhaustedError; zero disables
	tellErr    error
	asks       int
	pattern    []string
}

func newScriptedStrategy(t *testing.T, space *Space, seed int64) *scriptedStrategy {
	t.Helper()
	return &scriptedStrategy{
		space: space,
		rng:   rand.New(rand.NewSource(seed)),
		hist:  NewHistory(),
	}
}

func (s *scriptedStrategy) Ask() (Candidate, error) {
	if s.exhaustAt > 0 && s.asks >= s.exhaustAt {
		return Candidate{}, &ExhaustedError{Strategy: "scripted"}
	}
	s.asks++
	s.pattern = append(s.pattern, "ask")

	params := s.space.Parameters()
	vec := make([]float64, len(params))
	for i, p := range params {
		vec[i] = p.Bounds.Low + s.rng.Float64()*(p.Bounds.High-p.Bounds.Low)
	}
	theta, err := s.space.Decode(vec)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Theta: theta, Vector: vec}, nil
}

func (s *scriptedStrategy) Tell(result EvalResult) error {
	if s.tellErr != nil {
		return s.tellErr
	}
	s.pattern = append(s.pattern, "tell")
	s.hist.Append(result)
	return nil
}

func (s *scriptedStrategy) Converged() bool {
	return s.maxEvals > 0 && s.hist.Len() >= s.maxEvals
}

func (s *scriptedStrategy) History() *History { return s.hist }

func (s *scriptedStrategy) SequentialTell() bool { return s.sequential }

func runnerSpace(t *testing.T) *Space {
	t.Helper()
	space, err := NewSpace(Numeric("x", -5, 5), Numeric("y", -5, 5))
	require.NoError(t, err)
	return space
}

func sumSquares(ctx context.Context, cfg Config, seed int64) (float64, map[string]float64, error) {
	x := cfg["x"].(float64)
	y := cfg["y"].(float64)
	return x*x + y*y, nil, nil
}

func TestRunnerDeterminism(t *testing.T) {
	run := func() *RunResult {
		space := runnerSpace(t)
		strategy := newScriptedStrategy(t, space, 7)
		runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
			Iterations: 10,
			BatchSize:  1,
			Seed:       42,
		}, nil)
		require.NoError(t, err)
		result, err := runner.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	a := run()
	b := run()

	require.Equal(t, a.Evaluations, b.Evaluations)
	assert.Equal(t, a.SpaceFingerprint, b.SpaceFingerprint)
	assert.Equal(t, a.ConfigHash, b.ConfigHash)
	for i := 0; i < a.History.Len(); i++ {
		assert.Equal(t, a.History.At(i), b.History.At(i), "record %d", i)
	}
}

func TestRunnerSeedDerivation(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
		Iterations: 5,
		BatchSize:  2,
		Seed:       100,
	}, nil)
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, result.Evaluations)

	seen := make(map[int64]struct{})
	for i := 0; i < result.History.Len(); i++ {
		seed := result.History.At(i).Seed
		assert.Equal(t, DeriveSeed(100, i), seed)
		_, dup := seen[seed]
		assert.False(t, dup, "seed %d assigned twice", seed)
		seen[seed] = struct{}{}
	}
	assert.Equal(t, ReasonIterationLimit, result.Reason)
}

func TestRunnerPenaltyIsolation(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)

	calls := 0
	evaluator := EvaluatorFunc(func(ctx context.Context, cfg Config, seed int64) (float64, map[string]float64, error) {
		calls++
		if calls%2 == 0 {
			return 0, nil, errors.New("sim crashed")
		}
		return sumSquares(ctx, cfg, seed)
	})

	runner, err := NewRunner(space, strategy, evaluator, RunnerConfig{
		Iterations: 6,
		BatchSize:  1,
		Seed:       1,
	}, nil)
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, result.Evaluations)

	for i := 0; i < result.History.Len(); i++ {
		record := result.History.At(i)
		if i%2 == 1 {
			assert.Equal(t, DefaultPenaltyObjective, record.Objective)
			assert.Equal(t, "penalty", record.Provenance["source"])
			assert.Contains(t, record.Provenance["error"], "sim crashed")
		} else {
			assert.Equal(t, "evaluator", record.Provenance["source"])
			assert.Less(t, record.Objective, DefaultPenaltyObjective)
		}
		// Failures still consume a seed and a history slot.
		assert.Equal(t, DeriveSeed(1, i), record.Seed)
	}

	best, ok := result.History.Best()
	require.True(t, ok)
	assert.NotEqual(t, DefaultPenaltyObjective, best.Objective)
}

func TestRunnerEvaluatorPanicBecomesPenalty(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	evaluator := EvaluatorFunc(func(ctx context.Context, cfg Config, seed int64) (float64, map[string]float64, error) {
		panic("boom")
	})

	runner, err := NewRunner(space, strategy, evaluator, RunnerConfig{Iterations: 2, BatchSize: 1}, nil)
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Evaluations)
	for i := 0; i < result.History.Len(); i++ {
		record := result.History.At(i)
		assert.Equal(t, DefaultPenaltyObjective, record.Objective)
		assert.Contains(t, record.Provenance["error"], "boom")
	}
}

func TestRunnerConsecutiveFailureLimit(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	evaluator := EvaluatorFunc(func(ctx context.Context, cfg Config, seed int64) (float64, map[string]float64, error) {
		return 0, nil, errors.New("always failing")
	})

	runner, err := NewRunner(space, strategy, evaluator, RunnerConfig{
		Iterations:             100,
		BatchSize:              1,
		MaxConsecutiveFailures: 3,
	}, nil)
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonEvaluatorErrorLimit, result.Reason)
	assert.Equal(t, 3, result.Evaluations)
}

func TestRunnerConvergedEarlyStop(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	strategy.maxEvals = 4

	runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
		Iterations: 100,
		BatchSize:  1,
	}, nil)
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonConverged, result.Reason)
	assert.Equal(t, 4, result.Evaluations)
}

func TestRunnerExhaustion(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	strategy.exhaustAt = 3

	runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
		Iterations: 100,
		BatchSize:  1,
	}, nil)
	require.NoError(t, err)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, result.Reason)
	assert.Equal(t, 3, result.Evaluations)
}

func TestRunnerCancellation(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
		Iterations: 10,
		BatchSize:  1,
	}, nil)
	require.NoError(t, err)

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, result.Reason)
	assert.Equal(t, 0, result.Evaluations)
}

func TestRunnerBatchDrivePattern(t *testing.T) {
	space := runnerSpace(t)

	t.Run("batched strategy sees all asks before tells", func(t *testing.T) {
		strategy := newScriptedStrategy(t, space, 7)
		runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
			Iterations: 1,
			BatchSize:  3,
		}, nil)
		require.NoError(t, err)
		_, err = runner.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"ask", "ask", "ask", "tell", "tell", "tell"}, strategy.pattern)
	})

	t.Run("sequential strategy is driven one at a time", func(t *testing.T) {
		strategy := newScriptedStrategy(t, space, 7)
		strategy.sequential = true
		runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
			Iterations: 1,
			BatchSize:  3,
		}, nil)
		require.NoError(t, err)
		_, err = runner.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"ask", "tell", "ask", "tell", "ask", "tell"}, strategy.pattern)
	})
}

// collectingRecorder captures record calls for assertions.
type collectingRecorder struct {
	iterations []int
	bests      []float64
	closed     bool
}

func (c *collectingRecorder) Record(iteration int, result EvalResult, best EvalResult) error {
	c.iterations = append(c.iterations, iteration)
	c.bests = append(c.bests, best.Objective)
	return nil
}

func (c *collectingRecorder) Close() error {
	c.closed = true
	return nil
}

func TestRunnerRecorderStream(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	recorder := &collectingRecorder{}

	runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
		Iterations: 5,
		BatchSize:  1,
	}, recorder)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, recorder.iterations)
	assert.True(t, recorder.closed)
	for i := 1; i < len(recorder.bests); i++ {
		assert.LessOrEqual(t, recorder.bests[i], recorder.bests[i-1], "best must be monotone")
	}
}

func TestRunnerClosesRecorderOnError(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	strategy.tellErr = errors.New("tell rejected")
	recorder := &collectingRecorder{}

	runner, err := NewRunner(space, strategy, EvaluatorFunc(sumSquares), RunnerConfig{
		Iterations: 5,
		BatchSize:  1,
	}, recorder)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, recorder.closed, "recorder must be closed on every exit path")
}

func TestNewRunnerValidation(t *testing.T) {
	space := runnerSpace(t)
	strategy := newScriptedStrategy(t, space, 7)
	evaluator := EvaluatorFunc(sumSquares)

	_, err := NewRunner(nil, strategy, evaluator, RunnerConfig{Iterations: 1, BatchSize: 1}, nil)
	assert.Error(t, err)

	_, err = NewRunner(space, nil, evaluator, RunnerConfig{Iterations: 1, BatchSize: 1}, nil)
	assert.Error(t, err)

	_, err = NewRunner(space, strategy, nil, RunnerConfig{Iterations: 1, BatchSize: 1}, nil)
	assert.Error(t, err)

	_, err = NewRunner(space, strategy, evaluator, RunnerConfig{Iterations: 1, BatchSize: 0}, nil)
	assert.Error(t, err)
}

func TestDeriveSeedDistinct(t *testing.T) {
	seen := make(map[int64]struct{})
	for i := 0; i < 1000; i++ {
		seed := DeriveSeed(12345, i)
		if _, dup := seen[seed]; dup {
			t.Fatalf("duplicate seed at ordinal %d", i)
		}
		seen[seed] = struct{}{}
	}
	// Same inputs, same seed.
	assert.Equal(t, DeriveSeed(9, 4), DeriveSeed(9, 4))
}
