package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
)

// Specific errors.
var (
	ErrUnsupportedFormat = fmt.Errorf("raster format: %w", ErrUnsupported)
	ErrSourceMissing     = fmt.Errorf("raster file: %w", ErrNotFound)
	ErrDatasetNotFound   = fmt.Errorf("dataset: %w", ErrNotFound)
	ErrManifestNotFound  = fmt.Errorf("manifest: %w", ErrNotFound)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ParseError represents a raster file that failed to decode or produced
// inconsistent dimensions. In batch generation it is isolated per file; in
// single-file operations it is fatal.
type ParseError struct {
	Path string // Offending raster file
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// MigrationError represents a stale metadata record that could not be
// upgraded to the current schema version. Always fatal; the on-disk record
// is left untouched.
type MigrationError struct {
	Path        string // Manifest file
	FromVersion int    // Version of the stored record
	Err         error  // Underlying error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration error for %s (version %d): %v",
		e.Path, e.FromVersion, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// CleanupError represents a failed deletion of a corrupt raster or manifest
// during the delete-on-error path. Escalated rather than swallowed, since
// silent partial cleanup would leave the catalog inconsistent.
type CleanupError struct {
	Path string // File that could not be removed
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup error for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *CleanupError) Unwrap() error {
	return e.Err
}
