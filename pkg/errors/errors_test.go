package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatasetError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DatasetError
		expected string
	}{
		{
			name: "error without cause",
			err: &DatasetError{
				Code:    CodeNotFound,
				Message: "split not found",
			},
			expected: "NOT_FOUND: split not found",
		},
		{
			name: "error with cause",
			err: &DatasetError{
				Code:    CodeUnavailable,
				Message: "hub request failed",
				Cause:   fmt.Errorf("connection refused"),
			},
			expected: "UNAVAILABLE: hub request failed (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDatasetError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &DatasetError{
		Code:    CodeFetchFailed,
		Message: "download failed",
		Cause:   cause,
	}

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, &DatasetError{Code: CodeFetchFailed}))
}

func TestDatasetError_Is(t *testing.T) {
	err1 := &DatasetError{Code: CodeNotFound, Message: "not found"}
	err2 := &DatasetError{Code: CodeNotFound, Message: "different message"}
	err3 := &DatasetError{Code: CodeInvalidRequest, Message: "invalid"}
	stdErr := fmt.Errorf("standard error")

	assert.True(t, err1.Is(err2), "errors with same code should match")
	assert.False(t, err1.Is(err3), "errors with different codes should not match")
	assert.False(t, err1.Is(stdErr), "dataset error should not match standard error")
}

func TestDatasetError_WithDetail(t *testing.T) {
	err := Fetch(nil, CodeNotFound, "split %q not found", "test")

	err = err.WithDetail("split", "test").WithDetail("revision", "v1.0")

	assert.Equal(t, "test", err.Details["split"])
	assert.Equal(t, "v1.0", err.Details["revision"])
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "fetch", KindFetch.String())
	assert.Equal(t, "conversion", KindConversion.String())
	assert.Equal(t, "internal", KindInternal.String())
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(cause, CodeInternal, "wrapped message")

	assert.Equal(t, CodeInternal, err.Code)
	assert.Equal(t, "wrapped message", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.Equal(t, KindInternal, err.Kind)

	assert.Nil(t, Wrap(nil, CodeInternal, "message"))
}

func TestWrap_KeepsKind(t *testing.T) {
	inner := Conversion(nil, "column %d has no name", 3)
	outer := Wrapf(inner, CodeConversionFailed, "decode %s", "train.csv")

	assert.Equal(t, KindConversion, outer.Kind)
	assert.True(t, IsConversion(outer))
	assert.False(t, IsFetch(outer))
	assert.Equal(t, "decode train.csv", outer.Message)

	assert.Nil(t, Wrapf(nil, CodeInternal, "message %d", 42))
}

func TestFetchAndConversion(t *testing.T) {
	fetchErr := Fetch(fmt.Errorf("timeout"), CodeUnavailable, "list files for %s", "ds/x")
	convErr := Conversion(fmt.Errorf("bad row"), "convert split %s", "train")

	assert.True(t, IsFetch(fetchErr))
	assert.False(t, IsConversion(fetchErr))
	assert.True(t, IsConversion(convErr))
	assert.False(t, IsFetch(convErr))
	assert.Equal(t, CodeConversionFailed, convErr.Code)

	wrapped := fmt.Errorf("load: %w", fetchErr)
	assert.True(t, IsFetch(wrapped))
	assert.False(t, IsFetch(fmt.Errorf("plain")))
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "split not found",
			err:      ErrSplitNotFound,
			expected: true,
		},
		{
			name:     "dataset not found",
			err:      ErrDatasetNotFound,
			expected: true,
		},
		{
			name:     "other dataset error",
			err:      ErrSchemaMismatch,
			expected: false,
		},
		{
			name:     "standard error",
			err:      fmt.Errorf("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFound(tt.err))
		})
	}
}

func TestIsInvalidRequest(t *testing.T) {
	assert.True(t, IsInvalidRequest(ErrEmptyDatasetID))
	assert.True(t, IsInvalidRequest(ErrEmptySplit))
	assert.False(t, IsInvalidRequest(ErrSplitNotFound))
	assert.False(t, IsInvalidRequest(fmt.Errorf("standard error")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeNotFound, GetCode(ErrSplitNotFound))
	assert.Equal(t, CodeSchemaMismatch, GetCode(fmt.Errorf("wrapped: %w", ErrSchemaMismatch)))
	assert.Equal(t, CodeInternal, GetCode(fmt.Errorf("standard error")))
}

func TestGetMessage(t *testing.T) {
	assert.Equal(t, "split not found", GetMessage(ErrSplitNotFound))
	assert.Equal(t, "standard error", GetMessage(fmt.Errorf("standard error")))
}

func TestCommonErrors(t *testing.T) {
	assert.Equal(t, CodeInvalidRequest, ErrEmptyDatasetID.Code)
	assert.Equal(t, CodeInvalidRequest, ErrEmptySplit.Code)
	assert.Equal(t, KindFetch, ErrSplitNotFound.Kind)
	assert.Equal(t, KindFetch, ErrDatasetNotFound.Kind)
	assert.Equal(t, CodeResourceExhausted, ErrFileTooLarge.Code)
	assert.Equal(t, KindConversion, ErrSchemaMismatch.Kind)
	assert.Equal(t, KindConversion, ErrUnsupportedFiles.Kind)
}
