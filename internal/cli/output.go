package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/bebedizo/DKO/internal/cond"
	"github.com/bebedizo/DKO/internal/filterdef"
	"github.com/bebedizo/DKO/internal/scope"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The document rendered or ran but failed (resolution, evaluation)
	ExitCommandError = 2 // Command error (bad document, missing file, no database)
)

// CLI error codes. Document errors keep their E2xx codes from filterdef.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeConfig     = "E002" // Config file or flags unusable
	ErrCodeDatabase   = "E003" // Database open or statement failure
	ErrCodeResolve    = "E004" // Field not found, ambiguous or self-join error
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeRows       = "E006" // Row file unreadable
	ErrCodeEvaluation = "E007" // In-memory evaluation failed
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written by an OutputFormatter
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsReported reports whether err was already written to the user by
// OutputFormatter.Fail, so the caller should not print it again.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Table writes rows as an aligned text table.
func (f *OutputFormatter) Table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(f.Writer)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err with the given fallback code and returns the ExitError the
// command should return. Document, resolution and evaluation errors get their
// own codes.
func (f *OutputFormatter) Fail(fallback string, err error) error {
	code, exit := classify(fallback, err)
	var details any
	var de *filterdef.DefinitionError
	if errors.As(err, &de) && de.Path != "" {
		details = map[string]string{"path": de.Path}
	}
	_ = f.Error(code, err.Error(), details)
	exitErr := WrapExitError(exit, code, err)
	exitErr.reported = true
	return exitErr
}

func classify(fallback string, err error) (string, int) {
	var de *filterdef.DefinitionError
	switch {
	case errors.As(err, &de):
		return de.Code, ExitCommandError
	case scope.IsFieldNotFound(err), scope.IsAmbiguousField(err),
		cond.IsMultiWaySelfJoin(err), cond.IsColumnCountExceeded(err):
		return ErrCodeResolve, ExitFailure
	case cond.IsUnsupportedInMemory(err):
		return ErrCodeEvaluation, ExitFailure
	case fallback == ErrCodeEvaluation:
		return fallback, ExitFailure
	default:
		return fallback, ExitCommandError
	}
}
