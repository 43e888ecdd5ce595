package main

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	tsx2pdf "github.com/halloran/go-tsx2pdf"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	conversionErr := &tsx2pdf.ConversionError{
		Stage:     tsx2pdf.StageFailed,
		Code:      "UNKNOWN_ERROR",
		Message:   "Conversion failed: boom",
		Timestamp: time.Now(),
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"conversion error", conversionErr, ExitConversion},
		{"wrapped conversion error", fmt.Errorf("converting a.md: %w", conversionErr), ExitConversion},
		{"engine acquire", fmt.Errorf("%w: no browser", tsx2pdf.ErrEngineAcquire), ExitEngine},
		{"pdf generation", tsx2pdf.ErrPDFGeneration, ExitEngine},
		{"file not found", fmt.Errorf("open: %w", os.ErrNotExist), ExitIO},
		{"read input", ErrReadInput, ExitIO},
		{"write pdf", ErrWritePDF, ExitIO},
		{"no input", ErrNoInput, ExitUsage},
		{"bad extension", ErrInvalidExtension, ExitUsage},
		{"bad config", fmt.Errorf("%w: config.yaml", ErrConfigParse), ExitUsage},
		{"strict validation", ErrStrictValidation, ExitUsage},
		{"empty document", tsx2pdf.ErrEmptyDocument, ExitUsage},
		{"unexpected", errors.New("something else"), ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
