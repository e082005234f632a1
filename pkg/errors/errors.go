// Package errors provides custom error types for the bodymap system.
// These errors enable programmatic error checking across the consolidation
// pipeline: configuration problems are fatal, per-group merge problems are
// collected and reported, and parse problems degrade to skipped input.
package errors

import (
	"errors"
	"fmt"
)

// New is errors.New, re-exported so callers need a single import.
var New = errors.New

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfig        = errors.New("invalid configuration")
	ErrConsolidation = errors.New("consolidation failed")

	// ErrMissingWeight is the cause of a MergeError for a group that ends up
	// without a weight.
	ErrMissingWeight = errors.New("missing primary weight")
)

// NotFoundError reports a missing stored measurement, dataset or file.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError returns a NotFoundError for resource id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError reports input that breaks a record or flag invariant.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError is fatal and is raised before any record is processed.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError returns a ConfigError for component wrapping err.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// MergeError represents the failure to merge one timestamp group. The group
// is excluded from the output; the run continues.
type MergeError struct {
	Timestamp   string   // Representative instant of the group, RFC 3339
	SourceFiles []string // Files that contributed records to the group
	Err         error
}

func (e *MergeError) Error() string {
	if len(e.SourceFiles) > 0 {
		return fmt.Sprintf("merge error for group at %s (files: %v): %v", e.Timestamp, e.SourceFiles, e.Err)
	}
	return fmt.Sprintf("merge error for group at %s: %v", e.Timestamp, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// NewMergeError returns a MergeError for the group at timestamp.
func NewMergeError(timestamp string, sourceFiles []string, err error) *MergeError {
	return &MergeError{Timestamp: timestamp, SourceFiles: sourceFiles, Err: err}
}

// ConsolidationError represents a run that could not produce any measurement.
type ConsolidationError struct {
	Message string
	Groups  int     // Number of candidate groups considered
	Errors  []error // Per-group errors that led to the failure
}

func (e *ConsolidationError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("consolidation failed: %s (%d groups, %d errors, first: %v)", e.Message, e.Groups, len(e.Errors), e.Errors[0])
	}
	return fmt.Sprintf("consolidation failed: %s", e.Message)
}

func (e *ConsolidationError) Unwrap() []error {
	return e.Errors
}

func (e *ConsolidationError) Is(target error) bool {
	return target == ErrConsolidation
}

// NewConsolidationError returns a ConsolidationError over groups candidate
// groups, keeping the per-group errors that caused it.
func NewConsolidationError(message string, groups int, errs []error) *ConsolidationError {
	return &ConsolidationError{Message: message, Groups: groups, Errors: errs}
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError reports whether err wraps ErrInvalidInput.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConfigError reports whether err wraps ErrConfig.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsConsolidationError reports whether err wraps ErrConsolidation.
func IsConsolidationError(err error) bool {
	return errors.Is(err, ErrConsolidation)
}

// ParseError reports an unreadable raw export or artifact. Ingestion logs it
// against the file and moves on.
type ParseError struct {
	Format  string // csv, fit, json or yaml
	File    string
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d: %s", e.Format, e.File, e.Line, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError returns a ParseError for file.
func NewParseError(format, file, message string, err error) *ParseError {
	return &ParseError{Format: format, File: file, Message: message, Err: err}
}

// AtLine returns e with the offending line recorded.
func (e *ParseError) AtLine(line int) *ParseError {
	e.Line = line
	return e
}

// IOError reports a failed filesystem or sink operation.
type IOError struct {
	Operation string // read, write, create, open, publish
	Path      string
	Message   string
	Err       error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError returns an IOError whose message is err's text.
func NewIOError(operation, path string, err error) *IOError {
	e := &IOError{Operation: operation, Path: path, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// WrapValidation turns err into a ValidationError for field. Nil stays nil,
// as with every Wrap helper.
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapConfig turns err into a ConfigError for component.
func WrapConfig(component string, err error) error {
	if err == nil {
		return nil
	}
	return NewConfigError(component, err.Error(), err)
}

// WrapIO turns err into an IOError.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse turns err into a ParseError.
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
