package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUninitialized is returned when the pipeline has no backing store
	ErrStoreUninitialized = errors.New("store not initialized")

	// ErrCollectionNotFound is returned when the target collection does not exist
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrFileNotFound is returned when the resolved file path does not exist
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFragmentSize is returned for a non-positive maximum fragment size
	ErrInvalidFragmentSize = errors.New("maximum fragment size must be positive")
)

// ErrorKind is the machine-readable category of an ingest failure
type ErrorKind string

const (
	ErrorKindStoreUninitialized ErrorKind = "store_uninitialized"
	ErrorKindCollectionNotFound ErrorKind = "collection_not_found"
	ErrorKindFileNotFound       ErrorKind = "file_not_found"
	ErrorKindIngestion          ErrorKind = "ingestion_error"
)

// Error is returned by Pipeline.Ingest for every failed call.
// Message is meant for the caller; Err keeps the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func storeUninitializedError() *Error {
	return &Error{
		Kind:    ErrorKindStoreUninitialized,
		Message: "Collection store not initialized",
		Err:     ErrStoreUninitialized,
	}
}

func collectionNotFoundError(name string) *Error {
	return &Error{
		Kind:    ErrorKindCollectionNotFound,
		Message: fmt.Sprintf("Collection '%s' does not exist. Please create it first.", name),
		Err:     ErrCollectionNotFound,
	}
}

func fileNotFoundError(path string) *Error {
	return &Error{
		Kind:    ErrorKindFileNotFound,
		Message: fmt.Sprintf("File not found: %s", path),
		Err:     ErrFileNotFound,
	}
}

func ingestionError(err error) *Error {
	return &Error{
		Kind:    ErrorKindIngestion,
		Message: fmt.Sprintf("Error reading file: %v", err),
		Err:     err,
	}
}
