package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError_Error(t *testing.T) {
	err := New(ErrorTypeValidation, "validate_config", "max_threads must be positive")
	assert.Equal(t, "[validation] validate_config: max_threads must be positive", err.Error())

	cause := errors.New("unexpected EOF")
	err = Wrap(cause, ErrorTypeDecode, "replay", "bad record")
	assert.Equal(t, "[decode] replay: bad record: unexpected EOF", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestStructuredError_WithContext(t *testing.T) {
	err := NewValidationError("replay", "bad record").
		WithContext("line", 12).
		WithContext("path", "queries.jsonl")

	assert.Equal(t, 12, err.Context["line"])
	assert.Equal(t, "queries.jsonl", err.Context["path"])
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "op", "msg"))
	assert.Nil(t, WrapIOError(nil, "op", "msg"))
}

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, ErrorTypeValidation, NewValidationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeConfiguration, NewConfigurationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeConfiguration, WrapConfigurationError(cause, "op", "msg").Type)
	assert.Equal(t, ErrorTypeIO, WrapIOError(cause, "op", "msg").Type)
	assert.Equal(t, ErrorTypeDecode, WrapDecodeError(cause, "op", "msg").Type)
	assert.Equal(t, ErrorTypeNetwork, WrapNetworkError(cause, "op", "msg").Type)
}

func TestErrorsIsMatchesCategory(t *testing.T) {
	var err error = WrapDecodeError(errors.New("bad json"), "replay", "bad record")
	wrapped := fmt.Errorf("running: %w", err)

	assert.True(t, errors.Is(wrapped, &StructuredError{Type: ErrorTypeDecode}))
	assert.True(t, errors.Is(wrapped, &StructuredError{Type: ErrorTypeDecode, Operation: "replay"}))
	assert.False(t, errors.Is(wrapped, &StructuredError{Type: ErrorTypeIO}))
	assert.False(t, errors.Is(wrapped, &StructuredError{Type: ErrorTypeDecode, Operation: "serve"}))

	var se *StructuredError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "replay", se.Operation)
}

func TestStackTraceCapture(t *testing.T) {
	err := New(ErrorTypeValidation, "test", "message")
	assert.NotEmpty(t, err.Stack)
}
