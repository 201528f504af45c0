package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, []chunk.Channel{chunk.ChannelClient}, cfg.Channels)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "catchup.db", cfg.Store.Path)
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Breaker.Interval)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, []string{"CLIENT"}, cfg.DisplayApprovalTypes)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "valid.cue"))
	require.NoError(t, err)

	assert.Equal(t, []chunk.Channel{chunk.ChannelClient, chunk.ChannelAdmin}, cfg.Channels)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "/var/lib/catchup/history.db", cfg.Store.Path)
	assert.Equal(t, uint32(3), cfg.Breaker.MaxFailures)
	assert.Equal(t, 5*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Breaker.Interval, "unset fields keep defaults")
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_field.cue"))
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeSchema, ce.Code)
}

func TestLoadString_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `channels: [`, ErrCodeLoadFailed},
		{"bad level", `log: level: "trace"`, ErrCodeSchema},
		{"max failures below one", `breaker: max_failures: 0`, ErrCodeSchema},
		{"blank channel", `channels: [" "]`, ErrCodeInvalidChannel},
		{"duplicate channel", `channels: ["message", "CLIENT_CHAT"]`, ErrCodeInvalidChannel},
		{"empty channels", `channels: []`, ErrCodeInvalidChannel},
		{"bad duration", `fetch_timeout: "soon"`, ErrCodeInvalidDuration},
		{"zero breaker timeout", `breaker: timeout: "0s"`, ErrCodeInvalidDuration},
		{"empty store path", `store: path: ""`, ErrCodeSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			require.Error(t, err)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.code, ce.Code, ce.Error())
		})
	}
}

func TestLoadString_ZeroFetchTimeoutAllowed(t *testing.T) {
	cfg, err := LoadString(`fetch_timeout: "0s"`)
	require.NoError(t, err)
	assert.Zero(t, cfg.FetchTimeout)
}

func TestError_Format(t *testing.T) {
	e := &Error{Code: ErrCodeSchema, Field: "log.level", Message: "bad"}
	assert.Equal(t, "[E202] log.level: bad", e.Error())
}
