package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// SynthesisErrorMessage is shown when no decision could be formed for an utterance.
	SynthesisErrorMessage = "could not understand the request"
	// WorkflowErrorMessage is shown when a decision cannot be compiled into an automation.
	WorkflowErrorMessage = "could not build that automation"
)

var (
	ErrMissingWorkflowSpec = errors.New("workflow spec requires a trigger and an action list")
	ErrUnknownTrigger      = errors.New("unknown trigger")
	ErrComponentNotFound   = errors.New("component not found")
	ErrSynthesisFailed     = errors.New("synthesis failed")
	ErrNoAnalyses          = errors.New("no successful analyses")
	ErrEmptyAnalysis       = errors.New("analyzer returned no analysis")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// MissingWorkflowSpec reports a decision that asked for a workflow without naming a trigger or actions.
func MissingWorkflowSpec() *AppError {
	return New(ErrMissingWorkflowSpec, http.StatusUnprocessableEntity, WorkflowErrorMessage)
}

// UnknownTrigger reports a trigger that the component registry cannot resolve.
func UnknownTrigger(service, event string) *AppError {
	return New(fmt.Errorf("%w: %s/%s", ErrUnknownTrigger, service, event), http.StatusUnprocessableEntity, WorkflowErrorMessage)
}

// Synthesis wraps a synthesizer failure so callers can decline gracefully.
func Synthesis(err error) *AppError {
	if err == nil {
		err = ErrNoAnalyses
	}
	return New(fmt.Errorf("%w: %w", ErrSynthesisFailed, err), http.StatusBadGateway, SynthesisErrorMessage)
}

// UserMessage returns the safe message carried by the first AppError in the chain.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}
