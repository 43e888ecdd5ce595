package main

import (
	"errors"
	"os"

	tsx2pdf "github.com/halloran/go-tsx2pdf"
)

// Exit codes for the tsx2pdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess    = 0 // Successful conversion
	ExitGeneral    = 1 // General/unexpected error
	ExitUsage      = 2 // Invalid flags, config, or validation
	ExitIO         = 3 // File not found, permission denied
	ExitEngine     = 4 // Browser/engine errors
	ExitConversion = 5 // Pipeline failed with a ConversionError
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is/As to check wrapped errors, so callers must wrap
// with fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Pipeline failures (exit 5)
	var cerr *tsx2pdf.ConversionError
	if errors.As(err, &cerr) {
		return ExitConversion
	}

	// Engine errors (exit 4)
	if errors.Is(err, tsx2pdf.ErrEngineAcquire) ||
		errors.Is(err, tsx2pdf.ErrEngineConnect) ||
		errors.Is(err, tsx2pdf.ErrPageCreate) ||
		errors.Is(err, tsx2pdf.ErrPageLoad) ||
		errors.Is(err, tsx2pdf.ErrPDFGeneration) {
		return ExitEngine
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWritePDF) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrConfigNotFound) ||
		errors.Is(err, ErrConfigParse) ||
		errors.Is(err, ErrEmptyConfigName) ||
		errors.Is(err, ErrStrictValidation) ||
		errors.Is(err, tsx2pdf.ErrEmptyDocument) ||
		errors.Is(err, tsx2pdf.ErrInvalidPDFConfig) {
		return ExitUsage
	}

	return ExitGeneral
}
