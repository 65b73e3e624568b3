package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/roach88/reprojcheck/internal/harness"
	"github.com/roach88/reprojcheck/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Run reached its iteration target with no divergence
	ExitFailure      = 1 // Consistency violation
	ExitCommandError = 2 // Setup, configuration or command error
)

// Error codes reported in CLI output, unified across commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeInvalidConfig = "E002" // Rejected flags or plan values
	ErrCodeInvalidPlan   = "E003" // Plan file failed to parse or validate
	ErrCodeSetupFailed   = "E004" // Handle construction or reference transform failed
	ErrCodeNotFound      = "E005" // File or run not found
	ErrCodeViolation     = "E006" // Worker output diverged from the reference
	ErrCodeDatabase      = "E007" // Run ledger error
	ErrCodeInterrupted   = "E008" // Run cancelled before reaching its target
)

// ErrorCodeFor maps an error to its CLI error code.
func ErrorCodeFor(err error) string {
	var (
		violation *harness.ConsistencyViolation
		setup     *harness.SetupError
		config    *harness.ConfigError
		plan      *harness.PlanError
	)
	switch {
	case errors.As(err, &violation):
		return ErrCodeViolation
	case errors.As(err, &setup):
		return ErrCodeSetupFailed
	case errors.As(err, &config):
		return ErrCodeInvalidConfig
	case errors.As(err, &plan):
		return ErrCodeInvalidPlan
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeInterrupted
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, store.ErrNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodeGeneric
	}
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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
// Returns ExitCommandError (2) if the error is not an ExitError, since
// anything unclassified happened outside a run.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
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
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context, e.g. a partial run report
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

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// fail reports err through the formatter and returns the ExitError the
// command should return. The message carries the error code so callers
// that only see the returned error can still classify it.
func fail(f *OutputFormatter, exitCode int, err error, details any) error {
	code := ErrorCodeFor(err)
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exitCode, code, err)
}
