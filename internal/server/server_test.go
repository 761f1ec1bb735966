package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelab/STRATA/internal/config"
	"github.com/probelab/STRATA/internal/logging"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.Optimization.PenaltyObjective = 1e12
	cfg.Optimization.DefaultIterations = 5
	cfg.Optimization.DefaultBatchSize = 1
	return cfg
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := logging.New(logging.ErrorLevel, io.Discard)
	metrics := NewMetrics(prometheus.NewRegistry())
	srv := NewServer(testConfig(t), logger, metrics)

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func startRun(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.RunID)
	assert.Equal(t, "pending", started.Status)
	return started.RunID
}

func getStatus(t *testing.T, ts *httptest.Server, id string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/v1/runs/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

const sampleRunRequest = `{
	"name": "test",
	"evaluator": {"name": "sphere"},
	"parameters": [
		{"name": "x", "bounds": [-5, 5]},
		{"name": "y", "bounds": [-5, 5]}
	],
	"strategy": {"kind": "random", "seed": 7},
	"iterations": 10,
	"batch_size": 1,
	"seed": 42
}`

func TestRunLifecycle(t *testing.T) {
	_, ts := testServer(t)
	id := startRun(t, ts, sampleRunRequest)

	require.Eventually(t, func() bool {
		return getStatus(t, ts, id)["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	status := getStatus(t, ts, id)
	assert.Equal(t, "iteration_limit", status["termination_reason"])
	assert.Equal(t, float64(10), status["evaluations"])
	assert.Equal(t, float64(42), status["seed"])
	assert.NotEmpty(t, status["space_fingerprint"])
	assert.NotEmpty(t, status["config_hash"])
	assert.NotNil(t, status["best"])
	assert.NotEmpty(t, status["end_time"])
}

func TestRunUsesConfigDefaults(t *testing.T) {
	_, ts := testServer(t)
	// No iterations or evaluator: server defaults apply (5 iterations, sphere).
	id := startRun(t, ts, `{
		"parameters": [{"name": "x", "bounds": [0, 1]}],
		"strategy": {"kind": "random"}
	}`)

	require.Eventually(t, func() bool {
		return getStatus(t, ts, id)["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(5), getStatus(t, ts, id)["evaluations"])
}

func TestStartRunRejectsBadRequests(t *testing.T) {
	_, ts := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no parameters", `{"strategy": {"kind": "random"}}`},
		{"unknown strategy", `{
			"parameters": [{"name": "x", "bounds": [0, 1]}],
			"strategy": {"kind": "bayesian"}
		}`},
		{"unknown evaluator", `{
			"parameters": [{"name": "x", "bounds": [0, 1]}],
			"strategy": {"kind": "random"},
			"evaluator": {"name": "nope"}
		}`},
		{"bad bounds", `{
			"parameters": [{"name": "x", "bounds": [1, 0]}],
			"strategy": {"kind": "random"}
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRunStatusNotFound(t *testing.T) {
	_, ts := testServer(t)
	resp, err := http.Get(ts.URL + "/api/v1/runs/run_unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelCompletedRunConflicts(t *testing.T) {
	_, ts := testServer(t)
	id := startRun(t, ts, sampleRunRequest)

	require.Eventually(t, func() bool {
		return getStatus(t, ts, id)["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/runs/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelUnknownRun(t *testing.T) {
	_, ts := testServer(t)
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/runs/run_unknown", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
