// Package errors provides structured error handling for fieldcrawl.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and index storage errors
//   - 4XX: Validation errors
//   - 5XX: Internal and field indexing errors
//   - 6XX: Cancellation
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, lock and index storage errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors and field failures.
	CategoryInternal Category = "INTERNAL"
	// CategoryCancelled indicates the operation was cancelled by its caller.
	CategoryCancelled Category = "CANCELLED"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeIndexOpen     = "ERR_202_INDEX_OPEN"
	ErrCodeIndexWrite    = "ERR_203_INDEX_WRITE"
	ErrCodeIndexLocked   = "ERR_204_INDEX_LOCKED"
	ErrCodeCorruptIndex  = "ERR_205_CORRUPT_INDEX"
	ErrCodeSourceInvalid = "ERR_206_SOURCE_INVALID"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPolicy = "ERR_402_INVALID_POLICY"
	ErrCodeQueryEmpty    = "ERR_404_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeFieldAdd       = "ERR_502_FIELD_ADD_FAILED"
	ErrCodeFieldAggregate = "ERR_503_FIELD_AGGREGATE"
	ErrCodeSearchFailed   = "ERR_504_SEARCH_FAILED"

	// Cancellation (600-699)
	ErrCodeBuildCancelled = "ERR_601_BUILD_CANCELLED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	case '6':
		return CategoryCancelled
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeIndexLocked, ErrCodeFieldAggregate:
		return SeverityFatal
	case ErrCodeBuildCancelled:
		return SeverityWarning
	}
	return SeverityError
}
