package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFilingStatusNotFound is returned when no lifecycle row exists for
	// the requested (filer, tax year).
	ErrFilingStatusNotFound = errors.New("filing status not found")

	// ErrTransmissionNotFound is returned when no stored transmission matches
	// the requested receipt identifier.
	ErrTransmissionNotFound = errors.New("transmission not found")

	// ErrMixedBatch is returned when a batch mixes original and correction
	// records.
	ErrMixedBatch = errors.New("batch mixes original and correction records")

	// ErrEnvironmentMismatch is returned when a transmission built for one
	// environment is handed to a transport bound to the other.
	ErrEnvironmentMismatch = errors.New("transmission environment does not match transport")

	// ErrEmptyBatch is returned when a build is attempted with no records.
	ErrEmptyBatch = errors.New("batch contains no records")
)

// AuthError reports a failed token acquisition or refresh. Body is the
// authority's response body when one was received.
type AuthError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// EncodeError reports a record or batch that cannot be rendered to the wire
// format. RecordID is empty for batch-level failures.
type EncodeError struct {
	RecordID string
	Field    string
	Msg      string
}

func (e *EncodeError) Error() string {
	switch {
	case e.RecordID != "" && e.Field != "":
		return fmt.Sprintf("encode record %s: field %s: %s", e.RecordID, e.Field, e.Msg)
	case e.RecordID != "":
		return fmt.Sprintf("encode record %s: %s", e.RecordID, e.Msg)
	}
	return fmt.Sprintf("encode: %s", e.Msg)
}

// TransportError reports a failed exchange with the authority after retries
// are exhausted. Retryable tells callers whether a later attempt could
// succeed.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Retryable  bool
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports an authority response that could not be interpreted.
// The raw body has already been persisted by the time this is returned.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
