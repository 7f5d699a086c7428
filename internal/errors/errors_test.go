package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with EngineError
	engErr := New(ErrCodeFileNotFound, "file not found: entities.xml", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, engErr)
	assert.Equal(t, originalErr, errors.Unwrap(engErr))
	assert.True(t, errors.Is(engErr, originalErr))
}

func TestEngineError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "file error",
			code:     ErrCodeFileNotFound,
			message:  "entities.xml not found",
			expected: "[ERR_201_FILE_NOT_FOUND] entities.xml not found",
		},
		{
			name:     "stream error",
			code:     ErrCodeStreamMalformed,
			message:  "was expecting id element",
			expected: "[ERR_301_STREAM_MALFORMED] was expecting id element",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestEngineError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestEngineError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestEngineError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeFileNotFound, "file not found", nil)

	// When: adding details
	err = err.WithDetail("path", "/exports/space/entities.xml")
	err = err.WithDetail("size", "1024")

	// Then: details are available
	assert.Equal(t, "/exports/space/entities.xml", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestEngineError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeWorkdirLocked, "working directory is locked", nil)
	err = err.WithSuggestion("Wait for the other ingestion to finish")

	assert.Equal(t, "Wait for the other ingestion to finish", err.Suggestion)
}

func TestEngineError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeArchiveCorrupt, CategoryIO},
		{ErrCodeStreamMalformed, CategoryStream},
		{ErrCodeStreamEmpty, CategoryStream},
		{ErrCodeBadIdentifier, CategoryData},
		{ErrCodeOrphanRecord, CategoryData},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeSearchFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestEngineError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeStreamMalformed, SeverityFatal},
		{ErrCodeStreamEmpty, SeverityFatal},
		{ErrCodeTreeCorrupt, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeBadIdentifier, SeverityWarning},
		{ErrCodeOrphanRecord, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestWrap_CreatesEngineErrorFromError(t *testing.T) {
	// Given: a standard error
	originalErr := errors.New("something went wrong")

	// When: wrapping with a code
	engErr := Wrap(ErrCodeInternal, originalErr)

	// Then: creates proper EngineError
	require.NotNil(t, engErr)
	assert.Equal(t, ErrCodeInternal, engErr.Code)
	assert.Equal(t, "something went wrong", engErr.Message)
	assert.Equal(t, originalErr, engErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestStreamError_IsFatal(t *testing.T) {
	err := StreamError("was expecting id element but found \"property\"", nil)

	assert.Equal(t, CategoryStream, err.Category)
	assert.True(t, IsFatal(err))
}

func TestDataError_DegradesWithoutAborting(t *testing.T) {
	err := DataError("attachment has no container", nil)

	assert.Equal(t, CategoryData, err.Category)
	assert.False(t, IsFatal(err))
}

func TestIsFatal_StandardAndNilErrors(t *testing.T) {
	assert.False(t, IsFatal(errors.New("standard error")))
	assert.False(t, IsFatal(nil))
}

func TestFormatForCLI_IncludesMessageHintAndCode(t *testing.T) {
	err := New(ErrCodeWorkdirLocked, "working directory is locked", nil).
		WithSuggestion("Wait for the other ingestion to finish")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: working directory is locked")
	assert.Contains(t, out, "Hint: Wait for the other ingestion to finish")
	assert.Contains(t, out, "Code: ERR_204_WORKDIR_LOCKED")
}

func TestFormatJSON_RoundTrips(t *testing.T) {
	err := New(ErrCodeStreamMalformed, "bad reference", errors.New("xml: eof")).
		WithDetail("class", "Page")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ERR_301_STREAM_MALFORMED", decoded["code"])
	assert.Equal(t, "STREAM", decoded["category"])
	assert.Equal(t, "FATAL", decoded["severity"])
	assert.Equal(t, "xml: eof", decoded["cause"])
}

func TestFormatForLog_FlattensDetails(t *testing.T) {
	err := New(ErrCodeFileNotFound, "missing bag", nil).
		WithDetail("path", "pages/10/properties")

	attrs := FormatForLog(err)

	assert.Equal(t, "ERR_201_FILE_NOT_FOUND", attrs["error_code"])
	assert.Equal(t, "pages/10/properties", attrs["detail_path"])
}
