package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/chunkcatchup/internal/chunk"
	"github.com/roach88/chunkcatchup/internal/engine"
	"github.com/roach88/chunkcatchup/internal/retrieval"
	"github.com/roach88/chunkcatchup/internal/store"
	"github.com/roach88/chunkcatchup/internal/transcript"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	Dialog    string
	Live      string
	From      int64
	Reconnect bool

	// SessionID overrides the generated session id (for testing).
	SessionID string
}

// DispatchedChunk is one chunk handed to the session consumer.
type DispatchedChunk struct {
	Phase   string      `json:"phase"`
	Channel string      `json:"channel"`
	Chunk   chunk.Chunk `json:"chunk"`
}

// RunResult is the run command output.
type RunResult struct {
	SessionID  string                          `json:"session_id"`
	DialogID   string                          `json:"dialog_id"`
	Reports    []engine.Report                 `json:"reports"`
	Dispatched []DispatchedChunk               `json:"dispatched"`
	Messages   []transcript.Message            `json:"messages"`
	Escalated  map[string]transcript.Escalated `json:"escalated,omitempty"`
	Processed  int                             `json:"processed"`
	State      string                          `json:"state"`
}

func (r RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s (dialog %s)\n", r.SessionID, r.DialogID)
	for i, rep := range r.Reports {
		fmt.Fprintf(&b, "Catch-up %d: %s", i+1, rep.Outcome)
		if rep.Skip != engine.SkipNone {
			fmt.Fprintf(&b, " (%s)", rep.Skip)
		}
		fmt.Fprintf(&b, ", fetched %d, buffered %d, replayed %d, flushed %d\n",
			rep.Fetched, rep.Buffered, rep.Replayed, rep.Flushed)
		for _, f := range rep.Failures {
			fmt.Fprintf(&b, "  ✗ %s: %v\n", f.Channel, f.Err)
		}
	}

	fmt.Fprintf(&b, "Dispatched %d chunk(s):\n", len(r.Dispatched))
	for _, d := range r.Dispatched {
		fmt.Fprintf(&b, "  [%s] %-13s %s", d.Phase, d.Channel, d.Chunk)
		if d.Chunk.Text != "" {
			fmt.Fprintf(&b, " %q", d.Chunk.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Transcript: %d message(s)\n", len(r.Messages))
	for i, m := range r.Messages {
		state := "open"
		if m.Complete {
			state = "complete"
		}
		fmt.Fprintf(&b, "  #%d (%s)\n", i+1, state)
		for _, seg := range m.Segments {
			fmt.Fprintf(&b, "    %s", seg.Kind)
			switch {
			case seg.Text != "":
				fmt.Fprintf(&b, ": %s", seg.Text)
			case seg.Tool != nil:
				fmt.Fprintf(&b, ": %s/%s", seg.Tool.IntegratedToolType, seg.Tool.ToolFunction)
			case seg.Approval != nil:
				fmt.Fprintf(&b, ": %s [%s]", seg.Approval.Command, seg.Approval.Status)
			case seg.Message != "":
				fmt.Fprintf(&b, ": %s", seg.Message)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "State: %s, processed %d", r.State, r.Processed)
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a catch-up session against stored history",
		Long: `Run one catch-up session for a dialog.

The session starts buffering, delivers every --live line tagged "during"
into the buffer, runs the catch-up against the store and then delivers the
remaining live lines. With --reconnect a second catch-up resumes from the
last dispatched sequence id, as after a transport reconnect.

Live lines are JSON objects: {"channel": "message", "during": true, "chunk": {...}}

Example:
  catchup run --db ./history.db --dialog d-42
  catchup run --dialog d-42 --live live.jsonl --format json
  catchup run --dialog d-42 --from 120 --reconnect`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Dialog, "dialog", "", "dialog id (required)")
	cmd.Flags().StringVar(&opts.Live, "live", "", "live chunk JSONL file")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "resume point; only history after this sequence id is fetched")
	cmd.Flags().BoolVar(&opts.Reconnect, "reconnect", false, "run a reconnect catch-up after the live lines")
	_ = cmd.MarkFlagRequired("dialog")

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)

	var (
		live     []LiveLine
		channels []chunk.Channel
	)
	if opts.Live != "" {
		in, name, err := openInput(opts.Live, cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open live input", err)
		}
		live, channels, err = readLive(in, name)
		in.Close()
		if err != nil {
			_ = formatter.Error(ErrCodeInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid live input", err)
		}
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	if _, err := os.Stat(dbPath); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath), err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	var retriever engine.Retriever = st
	if cfg.Breaker.Enabled {
		retriever = retrieval.NewBreaker(st, cfg.Breaker.BreakerConfig, logger)
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.Must(uuid.NewV7()).String()
	}
	logger = logger.With("session", sessionID)

	result := RunResult{
		SessionID:  sessionID,
		DialogID:   opts.Dialog,
		Reports:    []engine.Report{},
		Dispatched: []DispatchedChunk{},
	}

	acc := transcript.NewAccumulator(transcript.WithDisplayApprovalTypes(cfg.DisplayApprovalTypes...))
	var (
		mu    sync.Mutex
		phase = "catch-up"
	)
	handler := func(c chunk.Chunk, ch chunk.Channel) {
		mu.Lock()
		result.Dispatched = append(result.Dispatched, DispatchedChunk{Phase: phase, Channel: string(ch), Chunk: c})
		mu.Unlock()
		acc.Handle(c, ch)
	}
	setPhase := func(p string) {
		mu.Lock()
		phase = p
		mu.Unlock()
	}

	eng := engine.New(handler,
		engine.WithDialog(opts.Dialog),
		engine.WithChannels(cfg.Channels...),
		engine.WithRetriever(retriever),
		engine.WithLogger(logger),
		engine.WithFetchTimeout(cfg.FetchTimeout),
	)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var from *int64
	if cmd.Flags().Changed("from") {
		from = chunk.Seq(opts.From)
	}

	logger.Info("session starting",
		"dialog", opts.Dialog,
		"channels", len(cfg.Channels),
		"live_lines", len(live),
		"breaker", cfg.Breaker.Enabled,
	)

	eng.StartInitialBuffering()
	for i, l := range live {
		if l.During {
			eng.ProcessChunk(l.Chunk, channels[i], false)
		}
	}
	result.Reports = append(result.Reports, eng.CatchUp(ctx, from))

	setPhase("live")
	for i, l := range live {
		if !l.During {
			eng.ProcessChunk(l.Chunk, channels[i], false)
		}
	}

	if opts.Reconnect {
		setPhase("reconnect")
		result.Reports = append(result.Reports, eng.ResetAndCatchUp(ctx))
	}

	result.Messages = acc.Messages()
	result.Escalated = acc.Escalated()
	result.Processed = eng.ProcessedCount()
	result.State = eng.State().String()

	logger.Info("session finished",
		"dispatched", len(result.Dispatched),
		"processed", result.Processed,
		"state", result.State,
	)

	return formatter.Success(result)
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
