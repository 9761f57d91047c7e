// Package errs defines the error kinds surfaced by indexing, ingestion and retrieval so that
// callers can tell "index not ready" from "bad document" without parsing messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// IndexUnavailable means no ready index could be produced (load and rebuild both failed).
	IndexUnavailable
	// IndexLoad is an I/O or format failure reading the snapshot.
	IndexLoad
	// Persist is an I/O failure writing the snapshot; the on-disk state is unchanged.
	Persist
	// Extraction means one document could not be read; its batch was aborted.
	Extraction
	// EmptyBatch means no text was extracted from any document in the batch.
	EmptyBatch
	// DimensionMismatch means embeddings from incompatible models were combined.
	DimensionMismatch
	// NoCorpus means none of the candidate directories held an ingestible document.
	NoCorpus
	// InvalidInput is a malformed request (empty question, unsupported upload type).
	InvalidInput
)

func (k Kind) String() string {
	switch k {
	case IndexUnavailable:
		return "index_unavailable"
	case IndexLoad:
		return "index_load"
	case Persist:
		return "persist"
	case Extraction:
		return "extraction"
	case EmptyBatch:
		return "empty_batch"
	case DimensionMismatch:
		return "dimension_mismatch"
	case NoCorpus:
		return "no_corpus"
	case InvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrIndexUnavailable  = &Error{Kind: IndexUnavailable}
	ErrIndexLoad         = &Error{Kind: IndexLoad}
	ErrPersist           = &Error{Kind: Persist}
	ErrExtraction        = &Error{Kind: Extraction}
	ErrEmptyBatch        = &Error{Kind: EmptyBatch}
	ErrDimensionMismatch = &Error{Kind: DimensionMismatch}
	ErrNoCorpus          = &Error{Kind: NoCorpus}
	ErrInvalidInput      = &Error{Kind: InvalidInput}
)

// Error carries a kind, the operation that failed, and optionally the offending document.
type Error struct {
	Kind     Kind
	Op       string
	Document string
	Msg      string
	Err      error
}

// E builds an *Error. Msg is optional when err already describes the failure.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error with a formatted message and no cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WithDocument returns a copy of e naming the document that failed.
func (e *Error) WithDocument(doc string) *Error {
	c := *e
	c.Document = doc
	return &c
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Document != "" {
		msg += " (" + e.Document + ")"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DocumentOf returns the first document name found in err's chain.
func DocumentOf(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Document != "" {
			return e.Document
		}
		err = errors.Unwrap(err)
	}
	return ""
}
