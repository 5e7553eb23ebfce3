package status

// ErrorCode is a numeric code to classify API errors in a stable way
type ErrorCode int

// Reserved ranges:
//
//	0-999:     client errors (bad input, unreadable file, nothing left to serve)
//	1000-1999: internal errors (embedding provider, storage, llm)
const (
	BadRequestBase    ErrorCode = 0
	InternalErrorBase ErrorCode = 1000
)

// Request shape errors
const (
	InvalidRequestBody ErrorCode = BadRequestBase + iota // 0
	MissingParams                                        // 1
	NotFound                                             // 2
)

// Ingestion client errors start at 100
const (
	IngestInvalidInput            ErrorCode = BadRequestBase + 100 + iota // 100
	IngestFileTooLarge                                                    // 101
	IngestUnsupportedMediaType                                            // 102
	IngestEmptyExtraction                                                 // 103
	IngestChunkingProducedNothing                                         // 104
	IngestTooManyChunks                                                   // 105
)

// Serving client errors start at 200
const (
	AdviceSourceNotConfigured ErrorCode = BadRequestBase + 200 + iota // 200
	AdviceExhausted                                                   // 201
)

// Internal errors start at 1000
const (
	Internal                 ErrorCode = InternalErrorBase + iota // 1000
	IngestEmbeddingFailed                                         // 1001
	IngestStoreInconsistency                                      // 1002
	IngestStoreFailed                                             // 1003
	RetrieverSearchFailed                                         // 1004
	QueryCompletionFailed                                         // 1005
)

// CodedError represents an error with an associated ErrorCode
type CodedError interface {
	error
	ErrorCode() ErrorCode
}

type codedError struct {
	code ErrorCode
	err  error
}

func (e codedError) Error() string        { return e.err.Error() }
func (e codedError) Unwrap() error        { return e.err }
func (e codedError) ErrorCode() ErrorCode { return e.code }

// New creates a new CodedError with the given code and underlying error
func New(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return codedError{code: code, err: err}
}

// IsClient reports whether the code belongs to the client range.
func (c ErrorCode) IsClient() bool {
	return c < InternalErrorBase
}
