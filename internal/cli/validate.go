package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chunkcatchup/internal/config"
)

// ValidationError is one config problem, as reported by validate.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Config *config.Config    `json:"config,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a CUE config file",
		Long: `Load a CUE config file, unify it with the built-in schema and check
every value.

The file may be given as an argument or with --config. With neither, the
schema defaults are validated and printed.

Example:
  catchup validate ./catchup.cue
  catchup validate --config ./catchup.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	if path == "" {
		formatter.VerboseLog("No config file given, validating schema defaults")
	} else {
		formatter.VerboseLog("Validating %s", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		if config.IsNotFound(err) {
			_ = formatter.Error(config.ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "config not found", err)
		}
		return outputValidationErrors(formatter, []ValidationError{toValidationError(err)})
	}

	return outputValidateSuccess(formatter, cfg)
}

func toValidationError(err error) ValidationError {
	var ce *config.Error
	if !errors.As(err, &ce) {
		return ValidationError{Code: ErrCodeConfig, Message: err.Error()}
	}
	ve := ValidationError{Code: ce.Code, Field: ce.Field, Message: ce.Message}
	if ce.Pos.IsValid() {
		ve.File = ce.Pos.Filename()
		ve.Line = ce.Pos.Line()
	}
	return ve
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, cfg *config.Config) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Config: cfg})
	}

	fmt.Fprintln(formatter.Writer, "✓ Config valid")
	if formatter.Verbose {
		fmt.Fprintf(formatter.Writer, "  channels: %v\n", cfg.Channels)
		fmt.Fprintf(formatter.Writer, "  fetch_timeout: %s\n", cfg.FetchTimeout)
		fmt.Fprintf(formatter.Writer, "  store.path: %s\n", cfg.Store.Path)
		fmt.Fprintf(formatter.Writer, "  breaker: enabled=%t max_failures=%d\n", cfg.Breaker.Enabled, cfg.Breaker.MaxFailures)
	}
	return nil
}

// outputValidationErrors outputs validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		}
		if err.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
		}
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
