package tsx2pdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Boundary validation: every value crossing the rendering-engine
// boundary is untyped at runtime and must be schema-checked before it
// is trusted, in both directions. A validation failure is
// pipeline-fatal; nothing is silently coerced.

// PDF output byte bounds.
const (
	MinPDFBytes = 50
	MaxPDFBytes = 10 * 1024 * 1024
)

// pdfMagic is the required ASCII prefix of any PDF byte sequence.
var pdfMagic = []byte("%PDF")

// Sentinel errors for boundary validation.
var (
	ErrInvalidRequirements = errors.New("invalid font requirements from engine")
	ErrInvalidPDFConfig    = errors.New("invalid PDF configuration")
	ErrInvalidPDFBytes     = errors.New("invalid PDF output")
	ErrInvalidProgress     = errors.New("invalid progress parameters from engine")
)

// ValidateFontRequirements checks an untyped engine detection result
// against the font-requirement schema and returns the typed
// collection. The collection is validated as a whole before any
// element is trusted.
func ValidateFontRequirements(v any) ([]FontRequirement, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: not serializable: %v", ErrInvalidRequirements, err)
	}

	var reqs []FontRequirement
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return nil, fmt.Errorf("%w: not a requirement list: %v", ErrInvalidRequirements, err)
	}

	for i, r := range reqs {
		if strings.TrimSpace(r.Family) == "" {
			return nil, fmt.Errorf("%w: requirement %d: family is empty", ErrInvalidRequirements, i)
		}
		if !validFontWeight(r.Weight) {
			return nil, fmt.Errorf("%w: requirement %d (%s): weight %d not in 100-900 step 100", ErrInvalidRequirements, i, r.Family, r.Weight)
		}
		switch r.Style {
		case StyleNormal, StyleItalic:
		default:
			return nil, fmt.Errorf("%w: requirement %d (%s): style %q", ErrInvalidRequirements, i, r.Family, r.Style)
		}
		switch r.Source {
		case SourceGoogle, SourceCustom, SourceWebSafe:
		default:
			return nil, fmt.Errorf("%w: requirement %d (%s): source %q", ErrInvalidRequirements, i, r.Family, r.Source)
		}
	}

	return reqs, nil
}

// validFontWeight reports whether w is one of the nine 100-step values.
func validFontWeight(w int) bool {
	return w >= MinFontWeight && w <= MaxFontWeight && w%FontWeightStep == 0
}

// Validate checks the configuration against the engine's PDF-config
// schema. On any config satisfying the schema it changes nothing;
// violations are rejected with a message naming the offending field.
// Returns an error if c is nil (config is required at the boundary).
func (c *PDFConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidPDFConfig)
	}

	switch c.PageSize {
	case PageSizeLetter, PageSizeA4, PageSizeLegal:
	default:
		return fmt.Errorf("%w: pageSize %q (must be Letter, A4, or Legal)", ErrInvalidPDFConfig, c.PageSize)
	}

	margins := []struct {
		name  string
		value float64
	}{
		{"marginTop", c.MarginTop},
		{"marginRight", c.MarginRight},
		{"marginBottom", c.MarginBottom},
		{"marginLeft", c.MarginLeft},
	}
	for _, m := range margins {
		if m.value < 0 {
			return fmt.Errorf("%w: %s %.2f is negative", ErrInvalidPDFConfig, m.name, m.value)
		}
	}

	switch c.Standard {
	case StandardPDF17, StandardPDFA1b:
	default:
		return fmt.Errorf("%w: standard %q (must be PDF17 or PDFA1b)", ErrInvalidPDFConfig, c.Standard)
	}

	return nil
}

// ValidatePDFBytes checks an untyped engine conversion result against
// the PDF-bytes schema: a byte sequence of 50 bytes to 10 MiB whose
// first four bytes are "%PDF".
func ValidatePDFBytes(v any) ([]byte, error) {
	var data []byte
	switch b := v.(type) {
	case []byte:
		data = b
	case string:
		data = []byte(b)
	case nil:
		return nil, fmt.Errorf("%w: bytes are nil", ErrInvalidPDFBytes)
	default:
		return nil, fmt.Errorf("%w: bytes have unexpected type %T", ErrInvalidPDFBytes, v)
	}

	if len(data) < MinPDFBytes {
		return nil, fmt.Errorf("%w: length %d below minimum %d", ErrInvalidPDFBytes, len(data), MinPDFBytes)
	}
	if len(data) > MaxPDFBytes {
		return nil, fmt.Errorf("%w: length %d exceeds maximum %d", ErrInvalidPDFBytes, len(data), MaxPDFBytes)
	}
	if !hasPDFMagic(data) {
		return nil, fmt.Errorf("%w: missing %%PDF header", ErrInvalidPDFBytes)
	}

	return data, nil
}

// hasPDFMagic reports whether data starts with the %PDF marker.
func hasPDFMagic(data []byte) bool {
	if len(data) < len(pdfMagic) {
		return false
	}
	for i, b := range pdfMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}

// ValidateProgress checks untyped progress-callback arguments: stage
// must be a string, percent a number in [0,100].
func ValidateProgress(stage any, percent any) (string, float64, error) {
	s, ok := stage.(string)
	if !ok {
		return "", 0, fmt.Errorf("%w: stage has type %T, want string", ErrInvalidProgress, stage)
	}

	var p float64
	switch n := percent.(type) {
	case float64:
		p = n
	case float32:
		p = float64(n)
	case int:
		p = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return "", 0, fmt.Errorf("%w: percentage %q is not numeric", ErrInvalidProgress, n)
		}
		p = f
	default:
		return "", 0, fmt.Errorf("%w: percentage has type %T, want number", ErrInvalidProgress, percent)
	}

	if p < 0 || p > 100 {
		return "", 0, fmt.Errorf("%w: percentage %.2f outside [0,100]", ErrInvalidProgress, p)
	}

	return s, p, nil
}
