package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

func count(n int) *int { return &n }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "History replayed into a fresh session",
		History: map[string][]ChunkSpec{
			"message": {
				{Seq: chunk.Seq(1), Type: "MESSAGE_START"},
				{Seq: chunk.Seq(2), Type: "TEXT", Text: "hi"},
			},
		},
		Steps: []Step{
			{Action: StepStartBuffering},
			{Action: StepCatchUp},
		},
		Assertions: []Assertion{
			{Type: AssertDispatchOrder, Labels: []string{"1:MESSAGE_START", "2:TEXT"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "live", result.FinalState)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, "reconciled", result.Reports[0].Outcome)
	assert.Equal(t, 2, result.Reports[0].Replayed)
}

func TestRun_FailingAssertionReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "Assertion that cannot hold",
		NoHistory:   true,
		Steps: []Step{
			{Action: StepLive, Chunks: []ChunkSpec{{Seq: chunk.Seq(1), Type: "TEXT"}}},
		},
		Assertions: []Assertion{
			{Type: AssertDispatchCount, Count: count(2)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "dispatch_count")
	assert.Contains(t, result.Errors[0], "2 dispatches")
}

func TestRun_GuardSkipReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "repeat",
		Description: "Second catch-up is refused once completed",
		History: map[string][]ChunkSpec{
			"message": {{Seq: chunk.Seq(1), Type: "TEXT"}},
		},
		Steps: []Step{
			{Action: StepCatchUp},
			{Action: StepCatchUp, During: []ChunkSpec{{Seq: chunk.Seq(2), Type: "TEXT"}}},
		},
		Assertions: []Assertion{
			{Type: AssertDispatchOrder, Labels: []string{"1:TEXT", "2:TEXT"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Reports, 2)
	assert.Equal(t, "skipped", result.Reports[1].Outcome)
	assert.Equal(t, "completed", result.Reports[1].Skip)
}

func TestRun_ResetReturnsToIdle(t *testing.T) {
	scenario := &Scenario{
		Name:        "reset",
		Description: "Reset clears the session",
		NoHistory:   true,
		Steps: []Step{
			{Action: StepLive, Chunks: []ChunkSpec{{Seq: chunk.Seq(1), Type: "TEXT"}}},
			{Action: StepReset},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, State: "idle"},
			{Type: AssertProcessed, Count: count(0)},
			{Type: AssertDispatchCount, Count: count(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ForceBypassesBuffer(t *testing.T) {
	scenario := &Scenario{
		Name:        "force",
		Description: "Forced chunks dispatch while buffering",
		NoHistory:   true,
		Steps: []Step{
			{Action: StepStartBuffering},
			{Action: StepLive, Force: true, Chunks: []ChunkSpec{{Seq: chunk.Seq(7), Type: "ERROR"}}},
		},
		Assertions: []Assertion{
			{Type: AssertDispatchOrder, Labels: []string{"7:ERROR"}},
			{Type: AssertFinalState, State: "buffering"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetHistoryWithoutRetriever(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "set_history needs a retriever",
		NoHistory:   true,
		Steps: []Step{
			{Action: StepSetHistory, Channel: "message", Chunks: []ChunkSpec{{Type: "TEXT"}}},
		},
		Assertions: []Assertion{{Type: AssertNoDuplicates}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (set_history)")
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
