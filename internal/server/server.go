package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/probelab/STRATA/internal/config"
	"github.com/probelab/STRATA/internal/logging"
	"github.com/probelab/STRATA/internal/optimization"
	"github.com/probelab/STRATA/internal/optimization/strategies"
	"github.com/probelab/STRATA/internal/sim"
)

// Logger defines the logging interface used by the server.
// This allows us to be flexible with our logging implementation.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// RunState tracks one optimization run. The outer fields are guarded by the
// server's runs mutex; the progress fields are guarded by the state's own
// mutex because the run goroutine updates them on every evaluation.
type RunState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Cancel      context.CancelFunc
	LastUpdated time.Time

	mu          sync.Mutex
	evaluations int
	best        *optimization.EvalResult
	result      *optimization.RunResult
	failure     string
}

// Server implements the HTTP API for the optimization run service. It manages
// runs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *Metrics

	// Run state management
	runs   map[string]*RunState
	runsMu sync.RWMutex // Protects the runs map
}

// NewServer creates a new server instance with the given config and logger.
// The logger parameter accepts any type that implements the Logger interface.
func NewServer(cfg *config.Config, logger Logger, metrics *Metrics) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		runs:    make(map[string]*RunState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/{id}", s.handleRunStatus)
		r.Delete("/runs/{id}", s.handleCancelRun)
	})
}

// handleStartRun handles POST /runs. The request body is a run spec in JSON,
// the same shape the CLI reads from YAML.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var spec config.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.applyDefaults(&spec)

	space, err := spec.Space()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	strategy, err := strategies.New(spec.Strategy, space)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	evaluator, err := sim.New(spec.Evaluator.Name, spec.Evaluator.Noise)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Generate a unique ID for this run
	id := fmt.Sprintf("run_%d", time.Now().UnixNano())

	// Create a cancellable context
	ctx, cancel := context.WithCancel(context.Background())

	state := &RunState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		Cancel:      cancel,
		LastUpdated: time.Now(),
	}

	runner, err := optimization.NewRunner(space, strategy, evaluator, optimization.RunnerConfig{
		Iterations:             spec.Iterations,
		BatchSize:              spec.BatchSize,
		Seed:                   spec.Seed,
		PenaltyObjective:       s.cfg.Optimization.PenaltyObjective,
		MaxConsecutiveFailures: s.cfg.Optimization.MaxConsecutiveFailures,
	}, &runRecorder{metrics: s.metrics, state: state, run: id})
	if err != nil {
		cancel()
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Store the run state
	s.runsMu.Lock()
	s.runs[id] = state
	s.runsMu.Unlock()

	s.logger.Info("Starting optimization run", map[string]interface{}{
		"run_id":     id,
		"strategy":   spec.Strategy.Kind,
		"evaluator":  evaluator.Name(),
		"iterations": spec.Iterations,
		"batch_size": spec.BatchSize,
		"seed":       spec.Seed,
	})

	// Execute the run in a goroutine
	go s.executeRun(ctx, state, runner)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": id,
		"status": "pending",
	})
}

// applyDefaults fills unset run spec fields from the server configuration.
func (s *Server) applyDefaults(spec *config.RunSpec) {
	if spec.Iterations <= 0 {
		spec.Iterations = s.cfg.Optimization.DefaultIterations
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = s.cfg.Optimization.DefaultBatchSize
	}
	if spec.Evaluator.Name == "" {
		spec.Evaluator.Name = sim.Sphere
	}
}

// executeRun drives the runner to completion and records the outcome.
func (s *Server) executeRun(ctx context.Context, state *RunState, runner *optimization.Runner) {
	s.metrics.RunsActive.Inc()
	defer s.metrics.RunsActive.Dec()

	// Update state to running
	s.runsMu.Lock()
	state.Status = "running"
	state.LastUpdated = time.Now()
	s.runsMu.Unlock()

	result, err := runner.Run(ctx)

	// Update state with results
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	if err != nil {
		s.logger.Error("Optimization run failed", map[string]interface{}{
			"run_id": state.ID,
			"error":  err.Error(),
		})
		state.Status = "failed"
		state.mu.Lock()
		state.failure = err.Error()
		state.mu.Unlock()
		return
	}

	state.mu.Lock()
	state.result = result
	state.mu.Unlock()

	if result.Reason == optimization.ReasonCancelled {
		state.Status = "cancelled"
	} else {
		state.Status = "completed"
	}

	s.logger.Info("Optimization run finished", map[string]interface{}{
		"run_id":      state.ID,
		"reason":      string(result.Reason),
		"evaluations": result.Evaluations,
	})
}

// handleRunStatus handles GET /runs/{id}. It returns the current status,
// progress and results of a run.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.RLock()
	state, exists := s.runs[id]
	if !exists {
		s.runsMu.RUnlock()
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	response := map[string]interface{}{
		"run_id":      state.ID,
		"status":      state.Status,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	s.runsMu.RUnlock()

	state.mu.Lock()
	response["evaluations"] = state.evaluations
	if state.best != nil {
		response["best"] = state.best
	}
	if state.failure != "" {
		response["error"] = state.failure
	}
	if state.result != nil {
		response["termination_reason"] = string(state.result.Reason)
		response["seed"] = state.result.Seed
		response["space_fingerprint"] = state.result.SpaceFingerprint
		response["config_hash"] = state.result.ConfigHash
	}
	state.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancelRun handles DELETE /runs/{id}. It cancels a running
// optimization; the run goroutine records the terminal state.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.Lock()
	state, exists := s.runs[id]
	if !exists {
		s.runsMu.Unlock()
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		// Already in a terminal state
		status := state.Status
		s.runsMu.Unlock()
		s.respondError(w, http.StatusConflict, fmt.Sprintf("cannot cancel run with status: %s", status))
		return
	}

	if state.Cancel != nil {
		state.Cancel()
	}
	state.LastUpdated = time.Now()
	s.runsMu.Unlock()

	s.logger.Info("Run cancellation requested", map[string]interface{}{
		"run_id": id,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  status,
		"message": message,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
	})
}

// Close cancels all running optimizations.
func (s *Server) Close() error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	for _, state := range s.runs {
		if state.Cancel != nil {
			state.Cancel()
		}
	}
	return nil
}

// runRecorder feeds per-evaluation progress into the run state and the
// prometheus collectors. It implements optimization.Recorder.
type runRecorder struct {
	metrics *Metrics
	state   *RunState
	run     string
}

func (r *runRecorder) Record(iteration int, result optimization.EvalResult, best optimization.EvalResult) error {
	r.metrics.EvaluationsTotal.Inc()
	if result.Provenance["source"] == "penalty" {
		r.metrics.PenaltiesTotal.Inc()
	}
	r.metrics.BestObjective.WithLabelValues(r.run).Set(best.Objective)

	r.state.mu.Lock()
	r.state.evaluations = iteration + 1
	bestCopy := best
	r.state.best = &bestCopy
	r.state.mu.Unlock()
	return nil
}

func (r *runRecorder) Close() error { return nil }
