package services

import "fmt"

// ConversionError indicates the source file could not be read or converted.
// Fatal for the current document; a fresh upload is required.
type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed for %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ExtractionError indicates the extraction service returned no parseable
// questions. Fatal for this run, retryable by re-invoking Start.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ClassificationError indicates a single question could not be classified.
// Degrades gracefully: the question falls back to an unassigned unit with
// zero confidence instead of aborting the document.
type ClassificationError struct {
	Reason string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification failed: %s", e.Reason)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// PersistenceError indicates a database write failure. The transaction is
// rolled back and the paper is left in its last-good state.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
