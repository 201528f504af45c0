package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chunkcatchup/internal/chunk"
	"github.com/roach88/chunkcatchup/internal/retrieval"
)

//go:embed schema.cue
var schemaCUE string

// Config is a decoded, validated session configuration.
type Config struct {
	Channels             []chunk.Channel `json:"channels"`
	FetchTimeout         time.Duration   `json:"fetch_timeout"`
	Store                StoreConfig     `json:"store"`
	Breaker              BreakerConfig   `json:"breaker"`
	Log                  LogConfig       `json:"log"`
	DisplayApprovalTypes []string        `json:"display_approval_types"`
}

// StoreConfig locates the SQLite history file.
type StoreConfig struct {
	Path string `json:"path"`
}

// BreakerConfig controls the per-channel history circuit breakers.
type BreakerConfig struct {
	Enabled bool `json:"enabled"`
	retrieval.BreakerConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  slog.Level `json:"level"`
	Format string     `json:"format"`
}

// raw mirrors #Config as CUE decodes it.
type raw struct {
	Channels     []string `json:"channels"`
	FetchTimeout string   `json:"fetch_timeout"`
	Store        struct {
		Path string `json:"path"`
	} `json:"store"`
	Breaker struct {
		Enabled     bool   `json:"enabled"`
		MaxFailures uint32 `json:"max_failures"`
		Timeout     string `json:"timeout"`
		Interval    string `json:"interval"`
	} `json:"breaker"`
	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
	DisplayApprovalTypes []string `json:"display_approval_types"`
}

// Default returns the configuration produced by the schema defaults alone.
func Default() *Config {
	cfg, err := decode(schemaValue(cuecontext.New()))
	if err != nil {
		// The embedded schema is covered by tests.
		panic(fmt.Sprintf("config: default schema invalid: %v", err))
	}
	return cfg
}

// Load reads a CUE file, unifies it with #Config and decodes the result.
// An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{path}, &load.Config{})
	if len(instances) == 0 {
		return nil, &Error{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &Error{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE file: %v", inst.Err)}
	}

	user := ctx.BuildInstance(inst)
	if err := user.Err(); err != nil {
		return nil, formatCUEError(ErrCodeLoadFailed, err)
	}

	return decode(schemaValue(ctx).Unify(user))
}

// LoadString is Load for in-memory CUE source.
func LoadString(src string) (*Config, error) {
	ctx := cuecontext.New()
	user := ctx.CompileString(src, cue.Filename("config.cue"))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(ErrCodeLoadFailed, err)
	}
	return decode(schemaValue(ctx).Unify(user))
}

func schemaValue(ctx *cue.Context) cue.Value {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	return schema.LookupPath(cue.ParsePath("#Config"))
}

func decode(v cue.Value) (*Config, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}

	var r raw
	if err := v.Decode(&r); err != nil {
		return nil, formatCUEError(ErrCodeSchema, err)
	}

	cfg, errs := fromRaw(r)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}

// fromRaw converts and validates decoded values. It collects every error.
func fromRaw(r raw) (*Config, []*Error) {
	var errs []*Error
	cfg := &Config{
		Store:                StoreConfig{Path: r.Store.Path},
		DisplayApprovalTypes: r.DisplayApprovalTypes,
	}

	seen := make(map[chunk.Channel]bool)
	for i, s := range r.Channels {
		ch, err := chunk.ParseChannel(s)
		if err != nil {
			errs = append(errs, &Error{Code: ErrCodeInvalidChannel, Field: fmt.Sprintf("channels[%d]", i), Message: err.Error()})
			continue
		}
		if seen[ch] {
			errs = append(errs, &Error{Code: ErrCodeInvalidChannel, Field: fmt.Sprintf("channels[%d]", i), Message: fmt.Sprintf("duplicate channel %q", ch)})
			continue
		}
		seen[ch] = true
		cfg.Channels = append(cfg.Channels, ch)
	}
	if len(r.Channels) == 0 {
		errs = append(errs, &Error{Code: ErrCodeInvalidChannel, Field: "channels", Message: "at least one channel is required"})
	}

	cfg.FetchTimeout = parseDuration("fetch_timeout", r.FetchTimeout, true, &errs)

	cfg.Breaker = BreakerConfig{
		Enabled: r.Breaker.Enabled,
		BreakerConfig: retrieval.BreakerConfig{
			MaxFailures: r.Breaker.MaxFailures,
			Timeout:     parseDuration("breaker.timeout", r.Breaker.Timeout, false, &errs),
			Interval:    parseDuration("breaker.interval", r.Breaker.Interval, false, &errs),
		},
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(r.Log.Level)); err != nil {
		errs = append(errs, &Error{Code: ErrCodeSchema, Field: "log.level", Message: err.Error()})
	}
	cfg.Log = LogConfig{Level: level, Format: r.Log.Format}

	if cfg.Store.Path == "" {
		errs = append(errs, &Error{Code: ErrCodeSchema, Field: "store.path", Message: "store path must be non-empty"})
	}

	return cfg, errs
}

func parseDuration(field, s string, allowZero bool, errs *[]*Error) time.Duration {
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		*errs = append(*errs, &Error{Code: ErrCodeInvalidDuration, Field: field, Message: err.Error()})
	case d < 0 || (d == 0 && !allowZero):
		*errs = append(*errs, &Error{Code: ErrCodeInvalidDuration, Field: field, Message: fmt.Sprintf("duration must be positive, got %s", s)})
	}
	return d
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}

	first := errs[0]
	var pos token.Pos
	if positions := errors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &Error{Code: code, Field: "cue", Message: first.Error(), Pos: pos}
}
