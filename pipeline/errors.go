package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDocSinkStoreRequired is returned when a sink store is not provided.
	ErrDocSinkStoreRequired = errors.New("doc sink store required")

	// ErrDocumentStoreRequired is returned when a document store is not provided.
	ErrDocumentStoreRequired = errors.New("document store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrRetrieverRegistryRequired is returned when a retriever registry is
	// not provided.
	ErrRetrieverRegistryRequired = errors.New("retriever registry required")

	// ErrInvalidMaxAttempts is returned when a retry budget is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrEmptyContent is returned when a fetched page yields no text.
	ErrEmptyContent = errors.New("no text content")
)

// Stages of the ingestion pipeline, used in Failure values.
const (
	StageSearch  = "search"
	StageFetch   = "fetch"
	StageConvert = "convert"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StagePersist = "persist"
)

// Failure wraps a stage error with the stage it occurred in.
type Failure struct {
	Stage string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pipeline %s stage: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// failure builds a *Failure for the given stage.
func failure(stage string, err error) error {
	return &Failure{Stage: stage, Err: err}
}
