package tsx2pdf

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newErrorID mints a fresh correlation id for a ConversionError.
func newErrorID() string {
	return uuid.NewString()
}

// defaultSuggestions accompany failures the translator cannot
// attribute to a structured engine error.
var defaultSuggestions = []string{
	"Check syntax",
	"Try again",
	"Contact support if error persists",
}

// stageLookup maps engine-reported stages onto the pipeline state
// machine. Anything else, including absent or empty, maps to failed.
var stageLookup = map[string]Stage{
	"parsing":             StageParsing,
	"extracting-metadata": StageExtractingMetadata,
	"rendering":           StageRendering,
	"laying-out":          StageLayingOut,
	"generating-pdf":      StageGeneratingPDF,
	"completed":           StageCompleted,
}

// nativeError is the JSON schema structured engine failures follow.
type nativeError struct {
	Code             string   `json:"code"`
	Message          string   `json:"message"`
	Stage            string   `json:"stage,omitempty"`
	TechnicalDetails string   `json:"technicalDetails,omitempty"`
	Recoverable      *bool    `json:"recoverable,omitempty"`
	Suggestions      []string `json:"suggestions,omitempty"`
}

// translateError converts a raw boundary failure (error, string, or
// foreign JSON object) into the structured error taxonomy. Every
// invocation assigns a fresh error id and current timestamp.
func translateError(v any) *ConversionError {
	// Already translated failures pass through untouched: exactly one
	// ConversionError is created per failed run.
	if ce, ok := v.(*ConversionError); ok {
		return ce
	}

	text := stringifyFailure(v)

	if ne, ok := parseNativeError(text); ok {
		stage, mapped := stageLookup[ne.Stage]
		if !mapped {
			stage = StageFailed
		}
		recoverable := false
		if ne.Recoverable != nil {
			recoverable = *ne.Recoverable
		}
		suggestions := ne.Suggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		return &ConversionError{
			Stage:            stage,
			Code:             ne.Code,
			Message:          ne.Message,
			TechnicalDetails: ne.TechnicalDetails,
			Recoverable:      recoverable,
			Suggestions:      suggestions,
			Timestamp:        time.Now(),
			ErrorID:          newErrorID(),
		}
	}

	return &ConversionError{
		Stage:       StageFailed,
		Code:        CodeUnknown,
		Message:     fmt.Sprintf("Conversion failed: %s", text),
		Recoverable: false,
		Suggestions: defaultSuggestions,
		Timestamp:   time.Now(),
		ErrorID:     newErrorID(),
	}
}

// stringifyFailure renders an arbitrary failure value as text. Errors
// use their Error() string; everything else falls back to fmt.
func stringifyFailure(v any) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// parseNativeError attempts to interpret text as a structured engine
// error. Both code and message must be present for the schema to
// match.
func parseNativeError(text string) (nativeError, bool) {
	var ne nativeError
	if err := json.Unmarshal([]byte(text), &ne); err != nil {
		return nativeError{}, false
	}
	if ne.Code == "" || ne.Message == "" {
		return nativeError{}, false
	}
	return ne, true
}
