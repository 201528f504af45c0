package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

func TestMarshalSnapshot_Deterministic(t *testing.T) {
	r := NewResult()
	r.Trace = []TraceEvent{{Step: 1, Channel: "message", Seq: chunk.Seq(1), Type: "TEXT", Text: "a <b>"}}
	r.FinalState = "live"
	r.Processed = 1

	first, err := MarshalSnapshot(Snapshot("s", r))
	require.NoError(t, err)
	second, err := MarshalSnapshot(Snapshot("s", r))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, byte('\n'), first[len(first)-1])
	assert.Contains(t, string(first), `"scenario_name": "s"`)
	assert.NotContains(t, string(first), `"pass"`)
}

func TestAssertGolden_OpenMessage(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/open_message_then_live.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario.Name, result))
}
