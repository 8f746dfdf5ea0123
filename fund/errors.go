/*
errors.go - Centralized error types for the fund returns pipeline

PURPOSE:
  All error kinds in one place. Every operation boundary (an HTTP handler,
  the ingest command) converts these into a user-visible message; none are
  retried.

ERROR CATEGORIES:
  1. Storage     - store file inaccessible, schema creation failed
  2. Ingestion   - per-row parse failures, empty batches, failed writes
  3. Query       - read failures, invalid filters
  4. Annotation  - external narrative call failed

USAGE:
  Structured errors unwrap to their sentinel, so callers branch with
  errors.Is and extract context with errors.As:

    var werr *fund.WriteError
    if errors.As(err, &werr) {
        log.Printf("batch of %d rolled back: %v", werr.Count, werr.Err)
    }

SEE ALSO:
  - normalize.go: Produces RowError
  - store/sqlite/sqlite.go: Produces StorageError, WriteError, QueryError
  - annotate/annotate.go: Produces AnnotatorError
*/
package fund

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStorageUnavailable is returned when the store file cannot be opened
	// or the schema cannot be created. Fatal for the current operation.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrParseFailure marks a single input row that could not be normalized.
	ErrParseFailure = errors.New("row parse failure")

	// ErrEmptyBatch is returned when normalization produced no records.
	ErrEmptyBatch = errors.New("no records to write")

	// ErrWriteFailed is returned when a batch insert failed and was rolled back.
	ErrWriteFailed = errors.New("write failed")

	// ErrQueryFailed is returned when a read query raised.
	ErrQueryFailed = errors.New("query failed")

	// ErrAnnotatorFailed is returned when the narrative service errored.
	ErrAnnotatorFailed = errors.New("annotator failed")

	// ErrInvalidRange is returned for missing or inverted date ranges.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidQuery is returned for malformed query parameters.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnknownPeriod is returned for an unrecognized return period.
	ErrUnknownPeriod = errors.New("unknown return period")

	// ErrPurgeNotConfirmed is returned when a purge lacks its two-step confirmation.
	ErrPurgeNotConfirmed = errors.New("purge not confirmed")

	// ErrUnauthorized is returned when a required password does not match.
	ErrUnauthorized = errors.New("unauthorized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StorageError describes a failure to reach or initialize the store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

// RowError isolates one input row that failed normalization.
type RowError struct {
	Index  int    // position in the input slice
	Column string // source column being read, if known
	Err    error
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d: column %q: %v", e.Index, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() []error { return []error{ErrParseFailure, e.Err} }

// WriteError describes a rolled-back batch.
type WriteError struct {
	Count int // records in the batch, none of which were persisted
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed: batch of %d records rolled back: %v", e.Count, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrWriteFailed, e.Err} }

// QueryError names the read operation that failed.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrQueryFailed, e.Err} }

// AnnotatorError describes a failed narrative call. Status is the HTTP
// status returned by the service, or 0 for transport failures.
type AnnotatorError struct {
	Status int
	Err    error
}

func (e *AnnotatorError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("annotator failed: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("annotator failed: %v", e.Err)
}

func (e *AnnotatorError) Unwrap() []error { return []error{ErrAnnotatorFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrUnknownPeriod) ||
		errors.Is(err, ErrPurgeNotConfirmed)
}

// IsStorageError returns true if the store itself is unreachable.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
