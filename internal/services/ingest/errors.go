package ingest

import (
	"fmt"

	"creator-coach/pkg/apperror/status"
)

// Kind classifies an ingestion failure.
type Kind string

const (
	KindInvalidInput            Kind = "invalid_input"
	KindFileTooLarge            Kind = "file_too_large"
	KindUnsupportedMediaType    Kind = "unsupported_media_type"
	KindEmptyExtraction         Kind = "empty_extraction"
	KindChunkingProducedNothing Kind = "chunking_produced_nothing"
	KindTooManyChunks           Kind = "too_many_chunks"
	KindEmbedding               Kind = "embedding_error"
	KindStoreInconsistency      Kind = "store_inconsistency"
	KindStore                   Kind = "store_error"
)

var kindCodes = map[Kind]status.ErrorCode{
	KindInvalidInput:            status.IngestInvalidInput,
	KindFileTooLarge:            status.IngestFileTooLarge,
	KindUnsupportedMediaType:    status.IngestUnsupportedMediaType,
	KindEmptyExtraction:         status.IngestEmptyExtraction,
	KindChunkingProducedNothing: status.IngestChunkingProducedNothing,
	KindTooManyChunks:           status.IngestTooManyChunks,
	KindEmbedding:               status.IngestEmbeddingFailed,
	KindStoreInconsistency:      status.IngestStoreInconsistency,
	KindStore:                   status.IngestStoreFailed,
}

// Sentinels for errors.Is; any *Error of the same Kind matches.
var (
	ErrInvalidInput            = &Error{Kind: KindInvalidInput}
	ErrFileTooLarge            = &Error{Kind: KindFileTooLarge}
	ErrUnsupportedMediaType    = &Error{Kind: KindUnsupportedMediaType}
	ErrEmptyExtraction         = &Error{Kind: KindEmptyExtraction}
	ErrChunkingProducedNothing = &Error{Kind: KindChunkingProducedNothing}
	ErrTooManyChunks           = &Error{Kind: KindTooManyChunks}
	ErrEmbedding               = &Error{Kind: KindEmbedding}
	ErrStoreInconsistency      = &Error{Kind: KindStoreInconsistency}
	ErrStore                   = &Error{Kind: KindStore}
)

// Error is an ingestion failure with a message meant for the uploader.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// ErrorCode implements status.CodedError.
func (e *Error) ErrorCode() status.ErrorCode {
	if code, ok := kindCodes[e.Kind]; ok {
		return code
	}
	return status.Internal
}
