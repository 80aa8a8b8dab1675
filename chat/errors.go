package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for a missing or blank question.
	ErrInvalidInput = errors.New("no question provided")
	// ErrProcessingFailure matches every *ProcessingError.
	ErrProcessingFailure = errors.New("error processing request")
)

// FailureKind names the pipeline stage that failed. It is meant for logs;
// callers outside the service should only test for ErrProcessingFailure.
type FailureKind string

const (
	KindEmbedding  FailureKind = "embedding"
	KindIndex      FailureKind = "index"
	KindRetrieval  FailureKind = "retrieval"
	KindCompletion FailureKind = "completion"
	KindTimeout    FailureKind = "timeout"
)

type ProcessingError struct {
	Kind FailureKind
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessingFailure
}

func processingError(kind FailureKind, err error) error {
	return &ProcessingError{Kind: kind, Err: err}
}
