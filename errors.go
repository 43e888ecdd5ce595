package tsx2pdf

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for library operations.
var (
	ErrEmptyDocument  = errors.New("document content cannot be empty")
	ErrEngineAcquire  = errors.New("failed to acquire rendering engine")
	ErrEngineConnect  = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrInvalidWOFF2   = errors.New("invalid WOFF2 data")
	ErrUnknownFormat  = errors.New("unknown document format")
	ErrProviderClosed = errors.New("engine provider is closed")
)

// FetchErrorCode classifies a font fetch failure. Fetch failures are
// always locally recovered by the pipeline: the font is omitted and
// conversion continues.
type FetchErrorCode string

// Font fetch failure codes.
const (
	FetchNetworkTimeout FetchErrorCode = "NETWORK_TIMEOUT"
	FetchNetworkError   FetchErrorCode = "NETWORK_ERROR"
	FetchParseError     FetchErrorCode = "PARSE_ERROR"
	FetchNotFound       FetchErrorCode = "NOT_FOUND"
)

// FetchError is a failed font fetch, tagged with the offending family
// for diagnostics.
type FetchError struct {
	Code   FetchErrorCode
	Family string
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching font %q: %s: %v", e.Family, e.Code, e.Err)
	}
	return fmt.Sprintf("fetching font %q: %s", e.Family, e.Code)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Pipeline error codes. These are always fatal to the current
// conversion attempt and reach the caller as one ConversionError.
const (
	CodeTSXParse            = "TSX_PARSE_ERROR"
	CodeMemoryLimitExceeded = "MEMORY_LIMIT_EXCEEDED"
	CodeWASMInitFailed      = "WASM_INIT_FAILED"
	CodeFontLoad            = "FONT_LOAD_ERROR"
	CodePDFGeneration       = "PDF_GENERATION_FAILED"
	CodeWASMExecution       = "WASM_EXECUTION_ERROR"
	CodeConversionTimeout   = "CONVERSION_TIMEOUT"
	CodeInvalidTSXStructure = "INVALID_TSX_STRUCTURE"
	CodeUnknown             = "UNKNOWN_ERROR"
)

// ConversionError is the sole failure representation surfaced to
// callers: exactly one is created per failed pipeline run, and it is
// never mutated after creation.
type ConversionError struct {
	Stage            Stage
	Code             string
	Message          string
	TechnicalDetails string
	Recoverable      bool
	Suggestions      []string
	Category         string
	Metadata         map[string]any
	Timestamp        time.Time
	ErrorID          string
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Code, e.Message)
}
