package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeInvalidTag        = "INVALID_TAG"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeMalformedAction   = "MALFORMED_ACTION"
	CodeLLMTransport      = "LLM_TRANSPORT"
	CodeLLMApplication    = "LLM_APPLICATION"
	CodeIO                = "IO_ERROR"
	CodeDeadlockGuard     = "DEADLOCK_GUARD"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeMaxIterations     = "MAX_ITERATIONS"
	CodeLockHeld          = "LOCK_HELD"
)

// MnemoError is a structured error with a code and actionable suggestion.
type MnemoError struct {
	Code       string // machine-readable code (e.g. CONFIG_INVALID)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *MnemoError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *MnemoError) Unwrap() error {
	return e.Err
}

// New creates a MnemoError with the given code and message.
func New(code, message string) *MnemoError {
	return &MnemoError{Code: code, Message: message}
}

// Wrap creates a MnemoError wrapping an existing error.
func Wrap(code, message string, err error) *MnemoError {
	return &MnemoError{Code: code, Message: message, Err: err}
}

// WithSuggestion returns a copy with the suggestion set.
func (e *MnemoError) WithSuggestion(suggestion string) *MnemoError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *MnemoError) Is(target error) bool {
	var me *MnemoError
	if errors.As(target, &me) {
		return e.Code == me.Code
	}
	return false
}

// AsCode extracts the MnemoError code from an error, or "" if not a MnemoError.
func AsCode(err error) string {
	var me *MnemoError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a MnemoError.
func Suggestion(err error) string {
	var me *MnemoError
	if errors.As(err, &me) {
		return me.Suggestion
	}
	return ""
}

// Recoverable reports whether an error is an iteration-level error the
// agent can observe and react to, as opposed to one that must abort the run.
func Recoverable(err error) bool {
	switch AsCode(err) {
	case CodeMalformedResponse, CodeMalformedAction, CodeLLMTransport, CodeLLMApplication, CodeInvalidTag:
		return true
	}
	return false
}
