package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/table"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                    `json:"valid"`
	Platform string                  `json:"platform,omitempty"`
	Rows     int                     `json:"rows,omitempty"`
	Hash     string                  `json:"hash,omitempty"`
	Errors   []table.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [table.cue]",
		Short: "Validate a capability table",
		Long: `Compile a CUE capability table and run every static check on it.

Reports schema errors with their source position, row and core validation
errors (E2xx), and dependency cycles in any codec/domain graph (E240).
Without an argument the --table path is checked, or the built-in table.

Exit codes:
  0 - Table is valid
  1 - Validation failed
  2 - Command error (file not found, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Table
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	name, src := "waipio.cue", table.WaipioSource()
	if path != "" {
		var err error
		src, err = os.ReadFile(path)
		if err != nil {
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("table file not found: %s", path))
		}
		name = filepath.Base(path)
	}
	formatter.VerboseLog("Compiling %s (%d bytes)", name, len(src))

	p, err := table.CompileBytes(name, src)
	if err != nil {
		var compileErr *table.CompileError
		if !errors.As(err, &compileErr) {
			return outputValidationErrors(formatter, []table.ValidationError{{
				Field: "cue", Message: err.Error(), Code: ErrCodeLoadFailed,
			}})
		}
		line := 0
		if compileErr.Pos.IsValid() {
			line = compileErr.Pos.Line()
		}
		return outputValidationErrors(formatter, []table.ValidationError{{
			Field: compileErr.Field, Message: compileErr.Message, Code: ErrCodeLoadFailed, Line: line,
		}})
	}

	formatter.VerboseLog("Validating %d capability rows", len(p.Capabilities))
	validationErrors := table.Validate(p)

	for _, w := range table.AnalyzeCycles(p) {
		validationErrors = append(validationErrors, table.ValidationError{
			Field:   fmt.Sprintf("graph.%s.%s", w.Codec, w.Domain),
			Message: w.Message,
			Code:    ErrCodeCycle,
		})
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:    true,
			Platform: p.Name,
			Rows:     len(p.Capabilities),
			Hash:     p.Hash,
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ Table %s valid (%d capability rows)\n", p.Name, len(p.Capabilities))
	formatter.VerboseLog("Table hash: %s", p.Hash)
	return nil
}

// outputValidateError outputs a command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, errs []table.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Errors: errs}
		if err := formatter.Report(result, "", errs[0].Code, errs[0].Message); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return failure
}
