package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/repgraph/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Classes int                        `json:"classes"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate class declarations without writing IR",
		Long: `Validate CUE class declarations.

Checks syntax, property types, replication conditions, references between
classes and nesting cycles. Reports every problem found.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromTokenPos(loadErr.Pos),
			})
		}
	}

	if len(loadResult.Classes) > 0 {
		validationErrors = append(validationErrors, compiler.Validate(loadResult.Classes)...)
		for _, nerr := range compiler.AnalyzeNesting(loadResult.Classes) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "class." + nerr.Path[0],
				Message: nerr.Message,
				Code:    ErrCodeNestingCycle,
			})
		}
	}

	result := ValidationResult{
		Valid:   len(validationErrors) == 0,
		Classes: len(loadResult.Classes),
		Errors:  validationErrors,
	}
	for _, class := range loadResult.Classes {
		formatter.VerboseLog("Validated class: %s", class.Name)
	}

	if formatter.IsJSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    validationErrors[0].Code,
				Message: validationErrors[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(validationErrors)))
	}

	if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ %d class(es) valid\n", result.Classes)
		return nil
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, verr := range validationErrors {
		fmt.Fprintf(formatter.Writer, "  %s\n", verr.Error())
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(validationErrors)))
}

func getLineFromTokenPos(pos token.Pos) int {
	if !pos.IsValid() {
		return 0
	}
	return pos.Line()
}
