package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/roach88/chunkcatchup/internal/chunk"
	"github.com/roach88/chunkcatchup/internal/engine"
)

// Default circuit breaker settings.
const (
	defaultMaxFailures uint32        = 5
	defaultTimeout     time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the per-channel circuit breakers.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before a channel's
	// circuit opens.
	MaxFailures uint32 `json:"max_failures"`
	// Timeout is how long a circuit stays open before a half-open probe.
	Timeout time.Duration `json:"timeout"`
	// Interval is the cyclic period of the closed state for clearing
	// failure counts. Zero selects the default.
	Interval time.Duration `json:"interval"`
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = defaultMaxFailures
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	return c
}

// ErrCircuitOpen is returned, wrapped, when a channel's breaker rejects a
// fetch without calling the inner retriever.
var ErrCircuitOpen = errors.New("history circuit open")

// Breaker wraps a Retriever with one circuit breaker per channel.
//
// Thread-safety: Breaker is safe for concurrent use.
type Breaker struct {
	inner  engine.Retriever
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[chunk.Channel]*gobreaker.CircuitBreaker[[]chunk.Chunk]
}

// NewBreaker wraps inner. Zero-valued config fields take defaults.
func NewBreaker(inner engine.Retriever, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		inner:    inner,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[chunk.Channel]*gobreaker.CircuitBreaker[[]chunk.Chunk]),
	}
}

// FetchChunks implements engine.Retriever.
//
// Context cancellation is not counted as a failure of the history source.
func (b *Breaker) FetchChunks(ctx context.Context, dialogID string, ch chunk.Channel, from *int64) ([]chunk.Chunk, error) {
	cb := b.breakerFor(ch)
	chunks, err := cb.Execute(func() ([]chunk.Chunk, error) {
		return b.inner.FetchChunks(ctx, dialogID, ch, from)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("channel %q: %w: %w", ch, ErrCircuitOpen, err)
		}
		return nil, err
	}
	return chunks, nil
}

// State returns the breaker state for a channel. Channels never fetched
// report closed.
func (b *Breaker) State(ch chunk.Channel) gobreaker.State {
	b.mu.Lock()
	cb, ok := b.breakers[ch]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// Counts returns the failure and success counts for a channel.
func (b *Breaker) Counts(ch chunk.Channel) gobreaker.Counts {
	b.mu.Lock()
	cb, ok := b.breakers[ch]
	b.mu.Unlock()
	if !ok {
		return gobreaker.Counts{}
	}
	return cb.Counts()
}

func (b *Breaker) breakerFor(ch chunk.Channel) *gobreaker.CircuitBreaker[[]chunk.Chunk] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[ch]; ok {
		return cb
	}

	maxFailures := b.cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[[]chunk.Chunk](gobreaker.Settings{
		Name:        "history:" + string(ch),
		MaxRequests: 1, // one probe while half-open
		Interval:    b.cfg.Interval,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	b.breakers[ch] = cb
	return cb
}

var _ engine.Retriever = (*Breaker)(nil)
