package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/chunkcatchup/internal/chunk"
	"github.com/roach88/chunkcatchup/internal/engine"
	"github.com/roach88/chunkcatchup/internal/testutil"
)

// DefaultDialog is the dialog id used when a scenario names none.
const DefaultDialog = "dialog-1"

// fetchWait bounds how long a step waits for the engine to reach the
// retriever or to finish a catch-up.
const fetchWait = 5 * time.Second

// Harness runs one scenario against a fresh engine.
type Harness struct {
	scenario  *Scenario
	engine    *engine.Engine
	retriever *testutil.ScriptedRetriever
	channels  []chunk.Channel
	logger    *slog.Logger

	mu     sync.Mutex
	step   int
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine and a scripted retriever.
// Execution flow:
//  1. Build the retriever from history and failures
//  2. Execute steps in order, recording every dispatch
//  3. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	h, err := newHarness(scenario, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	for i, st := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, st); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
		}
	}

	result := h.result
	result.FinalState = h.engine.State().String()
	result.Processed = h.engine.ProcessedCount()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario, logger *slog.Logger) (*Harness, error) {
	h := &Harness{scenario: s, logger: logger, result: NewResult()}

	for _, name := range s.Channels {
		ch, err := chunk.ParseChannel(name)
		if err != nil {
			return nil, fmt.Errorf("channels: %w", err)
		}
		h.channels = append(h.channels, ch)
	}
	if len(h.channels) == 0 {
		h.channels = chunk.DefaultChannels()
	}

	dialog := s.Dialog
	if dialog == "" {
		dialog = DefaultDialog
	}

	opts := []engine.Option{
		engine.WithDialog(dialog),
		engine.WithChannels(h.channels...),
		engine.WithLogger(logger),
		engine.WithFetchTimeout(fetchWait),
	}

	if !s.NoHistory {
		h.retriever = testutil.NewScriptedRetriever()
		for name, specs := range s.History {
			ch, err := chunk.ParseChannel(name)
			if err != nil {
				return nil, fmt.Errorf("history: %w", err)
			}
			h.retriever.SetHistory(ch, toChunks(specs)...)
		}
		for name, msg := range s.Failures {
			ch, err := chunk.ParseChannel(name)
			if err != nil {
				return nil, fmt.Errorf("failures: %w", err)
			}
			h.retriever.FailWith(ch, errors.New(msg))
		}
		opts = append(opts, engine.WithRetriever(h.retriever))
	}

	h.engine = engine.New(h.record, opts...)
	return h, nil
}

// record is the engine handler.
func (h *Harness) record(c chunk.Chunk, ch chunk.Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev := TraceEvent{Step: h.step, Channel: string(ch), Type: string(c.Kind), Text: c.Text}
	if seq, ok := c.Seq(); ok {
		ev.Seq = chunk.Seq(seq)
	}
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) setStep(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.step = n
}

func (h *Harness) executeStep(ctx context.Context, n int, st Step) error {
	h.setStep(n)

	ch := chunk.ChannelClient
	if st.Channel != "" {
		parsed, err := chunk.ParseChannel(st.Channel)
		if err != nil {
			return err
		}
		ch = parsed
	}

	switch st.Action {
	case StepStartBuffering:
		h.engine.StartInitialBuffering()

	case StepReset:
		h.engine.Reset()

	case StepLive:
		for _, c := range toChunks(st.Chunks) {
			h.engine.ProcessChunk(c, ch, st.Force)
		}

	case StepSetHistory:
		if h.retriever == nil {
			return errors.New("set_history requires a retriever")
		}
		h.retriever.SetHistory(ch, toChunks(st.Chunks)...)

	case StepCatchUp, StepReconnect:
		run := func() engine.Report {
			if st.Action == StepReconnect {
				return h.engine.ResetAndCatchUp(ctx)
			}
			return h.engine.CatchUp(ctx, st.From)
		}
		rep, err := h.runCatchUp(run, toChunks(st.During), ch)
		if err != nil {
			return err
		}
		h.result.Reports = append(h.result.Reports, toStepReport(n, st.Action, rep))

	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

// runCatchUp runs a catch-up, delivering during chunks while the fetch is
// held in flight. Without a retriever there is no fetch to hold, so during
// chunks are delivered first.
func (h *Harness) runCatchUp(run func() engine.Report, during []chunk.Chunk, ch chunk.Channel) (engine.Report, error) {
	if len(during) == 0 {
		return run(), nil
	}

	if h.retriever == nil {
		for _, c := range during {
			h.engine.ProcessChunk(c, ch, false)
		}
		return run(), nil
	}

	drain(h.retriever.Entered())
	h.retriever.Hold()
	defer h.retriever.Release()

	done := make(chan engine.Report, 1)
	go func() { done <- run() }()

	for range h.channels {
		select {
		case <-h.retriever.Entered():
		case rep := <-done:
			// Guard refused the call before fetching.
			for _, c := range during {
				h.engine.ProcessChunk(c, ch, false)
			}
			return rep, nil
		case <-time.After(fetchWait):
			return engine.Report{}, errors.New("catch-up never reached the retriever")
		}
	}

	for _, c := range during {
		h.engine.ProcessChunk(c, ch, false)
	}
	h.retriever.Release()

	select {
	case rep := <-done:
		return rep, nil
	case <-time.After(fetchWait):
		return engine.Report{}, errors.New("catch-up did not finish")
	}
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func toChunks(specs []ChunkSpec) []chunk.Chunk {
	out := make([]chunk.Chunk, len(specs))
	for i, s := range specs {
		out[i] = s.Chunk()
	}
	return out
}

func toStepReport(n int, action string, rep engine.Report) StepReport {
	sr := StepReport{
		Step:           n,
		Action:         action,
		From:           rep.From,
		Outcome:        string(rep.Outcome),
		Skip:           string(rep.Skip),
		Fetched:        rep.Fetched,
		Buffered:       rep.Buffered,
		Merged:         rep.Merged,
		Replayed:       rep.Replayed,
		AlreadyApplied: rep.AlreadyApplied,
		Flushed:        rep.Flushed,
		LastCompleted:  rep.Boundary.LastCompleted,
		OpenStart:      rep.Boundary.OpenStart,
	}
	for _, ch := range rep.FailedChannels() {
		sr.FailedChannels = append(sr.FailedChannels, string(ch))
	}
	return sr
}
