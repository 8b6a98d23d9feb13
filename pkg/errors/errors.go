// Package errors provides standardized error types for dataset loading.
package errors

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeUnavailable       = "UNAVAILABLE"
	CodeDeadlineExceeded  = "DEADLINE_EXCEEDED"
	CodeCanceled          = "CANCELED"
	CodeResourceExhausted = "RESOURCE_EXHAUSTED"
	CodeFetchFailed       = "FETCH_FAILED"
	CodeConversionFailed  = "CONVERSION_FAILED"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeSchemaMismatch    = "SCHEMA_MISMATCH"
	CodeInternal          = "INTERNAL_ERROR"
)

// Kind groups codes into the two failure classes a split load can end in.
type Kind int

const (
	KindInternal Kind = iota
	// KindFetch means the provider could not produce the split/revision.
	KindFetch
	// KindConversion means the provider's table could not become a Table.
	KindConversion
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindConversion:
		return "conversion"
	default:
		return "internal"
	}
}

// DatasetError represents a dataset error with kind, code, message, and optional details.
type DatasetError struct {
	Kind    Kind                   `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *DatasetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatasetError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *DatasetError) Is(target error) bool {
	t, ok := target.(*DatasetError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *DatasetError) WithDetail(key string, value interface{}) *DatasetError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrEmptyDatasetID   = &DatasetError{Code: CodeInvalidRequest, Message: "dataset id is required"}
	ErrEmptySplit       = &DatasetError{Code: CodeInvalidRequest, Message: "split name is required"}
	ErrSplitNotFound    = &DatasetError{Kind: KindFetch, Code: CodeNotFound, Message: "split not found"}
	ErrDatasetNotFound  = &DatasetError{Kind: KindFetch, Code: CodeNotFound, Message: "dataset or revision not found"}
	ErrFileTooLarge     = &DatasetError{Kind: KindFetch, Code: CodeResourceExhausted, Message: "file exceeds size limit"}
	ErrSchemaMismatch   = &DatasetError{Kind: KindConversion, Code: CodeSchemaMismatch, Message: "split files disagree on columns"}
	ErrUnsupportedFiles = &DatasetError{Kind: KindConversion, Code: CodeUnsupportedFormat, Message: "unsupported file format"}
)

// New creates a new internal DatasetError with the given code and message.
func New(code, message string) *DatasetError {
	return &DatasetError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with a DatasetError.
func Wrap(err error, code, message string) *DatasetError {
	if err == nil {
		return nil
	}
	return &DatasetError{
		Kind:    kindOf(err),
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *DatasetError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Fetch creates a fetch-class error. cause may be nil.
func Fetch(cause error, code, format string, args ...interface{}) *DatasetError {
	return &DatasetError{
		Kind:    KindFetch,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Conversion creates a conversion-class error. cause may be nil.
func Conversion(cause error, format string, args ...interface{}) *DatasetError {
	return &DatasetError{
		Kind:    KindConversion,
		Code:    CodeConversionFailed,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// kindOf inherits the kind of a wrapped DatasetError so wrapping never
// reclassifies a failure.
func kindOf(err error) Kind {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Kind
	}
	return KindInternal
}

// IsFetch checks if an error is a fetch error.
func IsFetch(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Kind == KindFetch
	}
	return false
}

// IsConversion checks if an error is a conversion error.
func IsConversion(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Kind == KindConversion
	}
	return false
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code == CodeNotFound
	}
	return false
}

// IsInvalidRequest checks if an error is an invalid request error.
func IsInvalidRequest(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code == CodeInvalidRequest
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Message
	}
	return err.Error()
}
