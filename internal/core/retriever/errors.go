package retriever

import (
	"creator-coach/pkg/apperror/status"
)

type Kind string

const (
	KindSourceNotConfigured Kind = "source_not_configured"
	KindExhausted           Kind = "exhausted"
	KindSearch              Kind = "search_error"
)

var (
	ErrSourceNotConfigured = &Error{Kind: KindSourceNotConfigured, Message: "no advice document has been ingested"}
	ErrExhausted           = &Error{Kind: KindExhausted, Message: "every advice excerpt has already been shown"}
)

// Error is a serving failure. Errors of the same Kind match under errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
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

func (e *Error) ErrorCode() status.ErrorCode {
	switch e.Kind {
	case KindSourceNotConfigured:
		return status.AdviceSourceNotConfigured
	case KindExhausted:
		return status.AdviceExhausted
	}
	return status.RetrieverSearchFailed
}
