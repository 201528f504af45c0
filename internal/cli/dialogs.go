package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chunkcatchup/internal/store"
)

// DialogsOptions holds flags for the dialogs command.
type DialogsOptions struct {
	*RootOptions
	Database string
}

// DialogList is the dialogs command output.
type DialogList struct {
	Dialogs []store.DialogSummary `json:"dialogs"`
}

func (l DialogList) String() string {
	if len(l.Dialogs) == 0 {
		return "No dialogs stored."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-14s %8s %10s\n", "DIALOG", "CHANNEL", "CHUNKS", "LAST SEQ")
	for _, d := range l.Dialogs {
		last := "-"
		if d.LastSeq != nil {
			last = fmt.Sprintf("%d", *d.LastSeq)
		}
		fmt.Fprintf(&b, "%-24s %-14s %8d %10s\n", d.DialogID, d.Channel, d.Chunks, last)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewDialogsCommand creates the dialogs command.
func NewDialogsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DialogsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dialogs",
		Short: "List stored dialog channels",
		Long: `List every dialog channel in the history store with its chunk count
and highest sequence id.

Example:
  catchup dialogs --db ./history.db
  catchup dialogs --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDialogs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runDialogs(opts *DialogsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
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
	defer st.Close()

	dialogs, err := st.ListDialogs(commandContext(cmd))
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to list dialogs", err)
	}

	return formatter.Success(DialogList{Dialogs: dialogs})
}
