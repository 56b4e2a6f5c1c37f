package model

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalUnavailable marks a retrieval source that could not be queried.
	// It is non-fatal while another source survives.
	ErrRetrievalUnavailable = errors.New("retrieval source unavailable")
	// ErrNoContextAvailable marks that no source produced any result,
	// either because every enabled source failed or all came back empty.
	ErrNoContextAvailable = errors.New("no context available")
	// ErrEmbeddingFailure is fatal: no retrieval is possible without a query vector.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrLlmProvider is fatal to the current query.
	ErrLlmProvider = errors.New("llm provider error")
	// ErrValidation marks malformed query input.
	ErrValidation = errors.New("validation error")
)

// RetrievalError reports an unavailable retrieval source
type RetrievalError struct {
	Source Source
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s retrieval unavailable: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func (e *RetrievalError) Is(target error) bool { return target == ErrRetrievalUnavailable }

// NoContextError reports that retrieval produced nothing. Causes holds the
// source failures, if any; it is empty when all sources were simply empty.
type NoContextError struct {
	Causes []error
}

func (e *NoContextError) Error() string {
	if len(e.Causes) == 0 {
		return ErrNoContextAvailable.Error()
	}
	return fmt.Sprintf("%v: %v", ErrNoContextAvailable, errors.Join(e.Causes...))
}

func (e *NoContextError) Unwrap() []error { return e.Causes }

func (e *NoContextError) Is(target error) bool { return target == ErrNoContextAvailable }

// EmbeddingError reports a failure of the embedding collaborator
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%v: %v", ErrEmbeddingFailure, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbeddingFailure }

// LlmProviderError reports a failure of the language-model collaborator
// together with the provider name, so callers can retry or switch providers.
type LlmProviderError struct {
	Provider string
	Err      error
}

func (e *LlmProviderError) Error() string {
	return fmt.Sprintf("llm provider %s: %v", e.Provider, e.Err)
}

func (e *LlmProviderError) Unwrap() error { return e.Err }

func (e *LlmProviderError) Is(target error) bool { return target == ErrLlmProvider }

// ValidationError reports malformed input, rejected before embedding starts
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
