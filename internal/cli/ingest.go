package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chunkcatchup/internal/chunk"
	"github.com/roach88/chunkcatchup/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
	Dialog   string
	Channel  string
	File     string

	// IDGenerator overrides the batch id generator (for testing).
	// If nil, the store's UUIDv7 generator is used.
	IDGenerator store.IDGenerator
}

// IngestResult is the ingest command output.
type IngestResult struct {
	DialogID string `json:"dialog_id"`
	Channel  string `json:"channel"`
	store.WriteResult
	Duplicates int `json:"duplicates"`
}

func (r IngestResult) String() string {
	return fmt.Sprintf("Ingested %d of %d chunk(s) into %s/%s (batch %s, %d duplicate(s))",
		r.Inserted, r.Submitted, r.DialogID, r.Channel, r.BatchID, r.Duplicates)
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Append history chunks to the store",
		Long: `Append chunk history for one dialog channel.

Reads one JSON chunk per line. Ingest is idempotent: a chunk whose dedup key
is already stored for the dialog channel is skipped.

Example:
  catchup ingest --db ./history.db --dialog d-42 < chunks.jsonl
  catchup ingest --dialog d-42 --channel ADMIN_AI_CHAT --file admin.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Dialog, "dialog", "", "dialog id (required)")
	cmd.Flags().StringVar(&opts.Channel, "channel", string(chunk.ChannelClient), "channel tag or chat type")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "chunk JSONL file (- for stdin)")
	_ = cmd.MarkFlagRequired("dialog")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ch, err := chunk.ParseChannel(opts.Channel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid channel", err)
	}

	in, name, err := openInput(opts.File, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open input", err)
	}
	defer in.Close()

	chunks, err := readChunks(in, name)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid chunk input", err)
	}
	formatter.VerboseLog("Read %d chunk(s) from %s", len(chunks), name)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}

	var storeOpts []store.Option
	if opts.IDGenerator != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
	}
	st, err := store.Open(dbPath, storeOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	res, err := st.WriteChunks(commandContext(cmd), opts.Dialog, ch, chunks)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "ingest failed", err)
	}

	return formatter.Success(IngestResult{
		DialogID:    opts.Dialog,
		Channel:     string(ch),
		WriteResult: res,
		Duplicates:  res.Duplicates(),
	})
}
