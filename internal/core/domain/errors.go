package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDocument indicates a document produced no segments.
	ErrEmptyDocument = errors.New("document has no content")

	// ErrUnsupportedType indicates an unknown provider, metric or strategy.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConfiguration indicates invalid splitter, overlap, group-size or
	// retrieval settings. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrConvergence indicates an index build failed to reduce to one root.
	ErrConvergence = errors.New("index did not converge")

	// ErrTransient indicates a collaborator failure worth retrying:
	// rate limiting, timeouts, connection failures and upstream 5xx.
	ErrTransient = errors.New("transient collaborator failure")

	// ErrCollaborator indicates a failure reported by the LLM, embedding,
	// rerank or storage collaborator.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrOutputShape indicates a collaborator response could not be parsed.
	ErrOutputShape = errors.New("unexpected collaborator output")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Index builds require an LLM.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRerankUnavailable indicates no cross-encoder is configured.
	ErrRerankUnavailable = errors.New("rerank service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrCircuitOpen indicates calls are being rejected after repeated failures.
	ErrCircuitOpen = errors.New("circuit open")
)

// ConfigurationError reports an invalid setting, detected before any work runs.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ConvergenceError reports an index level that did not shrink, or a build
// that hit its depth limit with more than one node left.
type ConvergenceError struct {
	Depth  int
	Before int
	After  int
	Reason string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("index did not converge at depth %d (%d -> %d nodes): %s",
		e.Depth, e.Before, e.After, e.Reason)
}

// Is matches ErrConvergence.
func (e *ConvergenceError) Is(target error) bool { return target == ErrConvergence }

// CollaboratorError wraps a failure from an external service.
type CollaboratorError struct {
	// Collaborator names the service, e.g. "openai".
	Collaborator string

	// Op is the operation that failed, e.g. "generate".
	Op string

	// StatusCode is the HTTP status, 0 if none was received.
	StatusCode int

	// Transient marks the failure as retryable.
	Transient bool

	Err error
}

func (e *CollaboratorError) Error() string {
	msg := e.Collaborator + " " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is matches ErrCollaborator, and ErrTransient when the failure is transient.
func (e *CollaboratorError) Is(target error) bool {
	if target == ErrCollaborator {
		return true
	}
	return target == ErrTransient && e.Transient
}

// OutputShapeError reports a response that did not have the expected shape.
type OutputShapeError struct {
	Collaborator string
	Reason       string
}

func (e *OutputShapeError) Error() string {
	return fmt.Sprintf("%s: unexpected output: %s", e.Collaborator, e.Reason)
}

// Is matches ErrOutputShape.
func (e *OutputShapeError) Is(target error) bool { return target == ErrOutputShape }

// IsTransientStatus reports whether an HTTP status code should be retried.
func IsTransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// IsTransient reports whether err belongs to the retryable failure class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}
