package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	data := []byte(`
name: basic
description: "basic scenario"
channels: [message, ADMIN_AI_CHAT]
history:
  message:
    - {seq: 1, type: MESSAGE_START}
    - {seq: 2, type: APPROVAL_REQUEST, approval_request_id: r1, approval_type: CLIENT, command: ls}
steps:
  - action: start_buffering
  - action: catch_up
    from: 0
assertions:
  - type: processed
    count: 2
`)
	s, err := ParseScenario(data)
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, []string{"message", "ADMIN_AI_CHAT"}, s.Channels)
	require.Len(t, s.History["message"], 2)

	c := s.History["message"][1].Chunk()
	assert.Equal(t, "r1", c.ApprovalRequestID)
	assert.Equal(t, "ls", c.Command)
	seq, ok := c.Seq()
	assert.True(t, ok)
	assert.Equal(t, int64(2), seq)

	require.Len(t, s.Steps, 2)
	require.NotNil(t, s.Steps[1].From)
	assert.Equal(t, int64(0), *s.Steps[1].From)
}

func TestParseScenario_UnknownField(t *testing.T) {
	data := []byte(`
name: typo
description: "typo"
steps:
  - action: catch_up
assertion:
  - type: no_duplicates
`)
	_, err := ParseScenario(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{action: catch_up}]\nassertions: [{type: no_duplicates}]\n",
			want: "name is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\nassertions: [{type: no_duplicates}]\n",
			want: "steps list is required",
		},
		{
			name: "unknown action",
			yaml: "name: n\ndescription: d\nsteps: [{action: jump}]\nassertions: [{type: no_duplicates}]\n",
			want: `unknown action "jump"`,
		},
		{
			name: "live without chunks",
			yaml: "name: n\ndescription: d\nsteps: [{action: live}]\nassertions: [{type: no_duplicates}]\n",
			want: "chunks are required for live",
		},
		{
			name: "reconnect with from",
			yaml: "name: n\ndescription: d\nsteps: [{action: reconnect, from: 3}]\nassertions: [{type: no_duplicates}]\n",
			want: "from is not allowed",
		},
		{
			name: "chunk without type",
			yaml: "name: n\ndescription: d\nsteps: [{action: live, chunks: [{seq: 1}]}]\nassertions: [{type: no_duplicates}]\n",
			want: "type is required",
		},
		{
			name: "count missing",
			yaml: "name: n\ndescription: d\nsteps: [{action: catch_up}]\nassertions: [{type: processed}]\n",
			want: "non-negative count is required",
		},
		{
			name: "seq missing",
			yaml: "name: n\ndescription: d\nsteps: [{action: catch_up}]\nassertions: [{type: not_dispatched_through}]\n",
			want: "seq is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{action: catch_up}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "no_history with failures",
			yaml: "name: n\ndescription: d\nno_history: true\nfailures: {message: boom}\nsteps: [{action: catch_up}]\nassertions: [{type: no_duplicates}]\n",
			want: "no_history cannot be combined",
		},
		{
			name: "blank channel",
			yaml: "name: n\ndescription: d\nchannels: [\" \"]\nsteps: [{action: catch_up}]\nassertions: [{type: no_duplicates}]\n",
			want: "empty channel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	content := "name: f\ndescription: d\nsteps: [{action: start_buffering}]\nassertions: [{type: final_state, state: buffering}]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "f", s.Name)
}
