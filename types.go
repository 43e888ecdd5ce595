package tsx2pdf

import (
	"log/slog"
	"time"

	"github.com/halloran/go-tsx2pdf/internal/fontcache"
	"github.com/halloran/go-tsx2pdf/internal/retry"
)

// DocumentFormat identifies how a source document should be prepared
// for the rendering engine.
type DocumentFormat string

// Supported document formats.
const (
	FormatMarkdown DocumentFormat = "markdown"
	FormatHTML     DocumentFormat = "html"
)

// Document is a source document submitted for conversion.
type Document struct {
	Content string
	Format  DocumentFormat // empty defaults to FormatMarkdown
}

// FontSource identifies where a required font must come from.
// The set is closed: the single classification site switches
// exhaustively over it and downstream code never re-inspects the raw
// string.
type FontSource string

// Font provenance values.
const (
	SourceGoogle  FontSource = "google"
	SourceCustom  FontSource = "custom"
	SourceWebSafe FontSource = "websafe"
)

// FontStyle is the slant of a font variant.
type FontStyle string

// Font style values.
const (
	StyleNormal FontStyle = "normal"
	StyleItalic FontStyle = "italic"
)

// Font weight bounds: CSS weights run 100-900 in steps of 100.
const (
	MinFontWeight  = 100
	MaxFontWeight  = 900
	FontWeightStep = 100
)

// FontRequirement is one distinct font usage found in the source
// document by the engine's detection step. Requirements are immutable
// and not guaranteed to be pre-deduplicated.
type FontRequirement struct {
	Family string
	Weight int
	Style  FontStyle
	Source FontSource
}

// FontFormat identifies a fetched font binary's container format.
type FontFormat string

// Font binary formats.
const (
	FormatTTF   FontFormat = "ttf"
	FormatWOFF  FontFormat = "woff"
	FormatWOFF2 FontFormat = "woff2"
)

// FontData is a successfully fetched font binary. It is consumed
// exactly once by collection assembly and not persisted beyond a
// single conversion.
type FontData struct {
	Family string
	Weight int
	Style  FontStyle
	Bytes  []byte
	Format FontFormat
}

// FontCollection is the set of fetched fonts handed to the engine.
type FontCollection struct {
	fonts []FontData
}

// Add appends a font to the collection.
func (c *FontCollection) Add(f FontData) {
	c.fonts = append(c.fonts, f)
}

// Fonts returns the collected fonts in insertion order.
func (c *FontCollection) Fonts() []FontData {
	return c.fonts
}

// Len returns the number of fonts in the collection.
func (c *FontCollection) Len() int {
	return len(c.fonts)
}

// PDF page size and standard constants accepted across the engine
// boundary.
const (
	PageSizeLetter = "Letter"
	PageSizeA4     = "A4"
	PageSizeLegal  = "Legal"

	StandardPDF17  = "PDF17"
	StandardPDFA1b = "PDFA1b"
)

// Default page margin in points.
const DefaultMarginPt = 36.0

// PDFConfig configures the engine's PDF output. Margins are in points.
// Author and Keywords are nullable to distinguish "absent" from empty.
type PDFConfig struct {
	PageSize     string
	MarginTop    float64
	MarginRight  float64
	MarginBottom float64
	MarginLeft   float64
	Standard     string
	Title        string
	Subject      string
	Creator      string
	Author       *string
	Keywords     *string
}

// DefaultPDFConfig returns a Letter/PDF 1.7 configuration with
// half-inch margins.
func DefaultPDFConfig() *PDFConfig {
	return &PDFConfig{
		PageSize:     PageSizeLetter,
		MarginTop:    DefaultMarginPt,
		MarginRight:  DefaultMarginPt,
		MarginBottom: DefaultMarginPt,
		MarginLeft:   DefaultMarginPt,
		Standard:     StandardPDF17,
		Creator:      "tsx2pdf",
	}
}

// FontFetchResult records the outcome of one font fetch for
// diagnostics; failures here never fail the conversion.
type FontFetchResult struct {
	Family string
	Weight int
	Style  FontStyle
	Err    error // nil on success
}

// Result is a successful conversion outcome.
type Result struct {
	PDF      []byte
	Fonts    []FontFetchResult
	Warnings []string
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the structured logger used for font classification
// and fetch-degradation warnings. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEngineProvider replaces the default go-rod engine provider.
func WithEngineProvider(p EngineProvider) Option {
	return func(c *Converter) {
		c.provider = p
	}
}

// WithFontRepository replaces the default font repository (e.g., to
// share one cache across converters, or to stub fetching in tests).
func WithFontRepository(repo *FontRepository) Option {
	return func(c *Converter) {
		c.repo = repo
	}
}

// WithFontCache sizes the font cache of the default repository.
// Ignored when WithFontRepository is also given.
func WithFontCache(capacity int, ttl time.Duration) Option {
	return func(c *Converter) {
		c.cacheCapacity = capacity
		c.cacheTTL = ttl
	}
}

// WithFontConcurrency bounds how many font fetches run at once within
// one conversion. The default of 1 preserves sequential fetching.
// Panics if n < 1 (programmer error, similar to time.NewTicker).
func WithFontConcurrency(n int) Option {
	if n < 1 {
		panic("tsx2pdf: WithFontConcurrency must be at least 1")
	}
	return func(c *Converter) {
		c.fontConcurrency = n
	}
}

// WithRetryConfig overrides the backoff policy used for network
// fetches by the default repository.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Converter) {
		c.retryCfg = &cfg
	}
}

// CacheStats re-exports the font cache usage snapshot.
type CacheStats = fontcache.Stats
