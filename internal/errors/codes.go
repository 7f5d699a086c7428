// Package errors provides structured error handling for the export
// ingestion engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, archive)
//   - 3XX: Stream errors (malformed entity stream)
//   - 4XX: Data-quality errors (degraded record, pass continues)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and archive I/O errors.
	CategoryIO Category = "IO"
	// CategoryStream indicates malformed entity-stream errors.
	CategoryStream Category = "STREAM"
	// CategoryData indicates data-quality defects in the export.
	CategoryData Category = "DATA"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeArchiveCorrupt = "ERR_203_ARCHIVE_CORRUPT"
	ErrCodeWorkdirLocked  = "ERR_204_WORKDIR_LOCKED"
	ErrCodeTreeCorrupt    = "ERR_205_TREE_CORRUPT"

	// Stream errors (300-399)
	ErrCodeStreamMalformed = "ERR_301_STREAM_MALFORMED"
	ErrCodeStreamEmpty     = "ERR_302_STREAM_EMPTY"

	// Data-quality errors (400-499)
	ErrCodeBadIdentifier = "ERR_401_BAD_IDENTIFIER"
	ErrCodeBadDate       = "ERR_402_BAD_DATE"
	ErrCodeOrphanRecord  = "ERR_403_ORPHAN_RECORD"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeStatsFailed  = "ERR_503_STATS_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStream
	case '4':
		return CategoryData
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryStream:
		// Once the stream is structurally broken nothing after the
		// defect can be trusted.
		return SeverityFatal
	case CategoryData:
		return SeverityWarning
	case CategoryIO:
		if code == ErrCodeTreeCorrupt {
			return SeverityFatal
		}
	}
	return SeverityError
}
