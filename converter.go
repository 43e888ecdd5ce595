package tsx2pdf

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halloran/go-tsx2pdf/internal/fontcache"
	"github.com/halloran/go-tsx2pdf/internal/retry"
)

// Compile-time interface implementation checks.
var (
	_ Woff2Decompressor = (*RodProvider)(nil)
)

// Converter orchestrates the conversion pipeline: font detection,
// classification, fetching, collection assembly, engine invocation,
// and output validation. Create with NewConverter, convert with
// Convert, and Close when done.
type Converter struct {
	logger          *slog.Logger
	provider        EngineProvider
	repo            *FontRepository
	fontConcurrency int

	// Default-repository knobs, only read when no repository is injected.
	cacheCapacity int
	cacheTTL      time.Duration
	retryCfg      *retry.Config
}

// NewConverter creates a Converter with default configuration: a
// go-rod engine provider and a repository with a 20-entry, 1-hour
// font cache. Use options to customize behavior.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		logger:          slog.Default(),
		fontConcurrency: 1,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.provider == nil {
		c.provider = NewRodProvider()
	}

	if c.repo == nil {
		repoOpts := []RepositoryOption{
			WithDecompressor(c.provider),
			WithRepositoryLogger(c.logger),
		}
		if c.cacheCapacity > 0 || c.cacheTTL > 0 {
			repoOpts = append(repoOpts, WithCache(fontcache.New(c.cacheCapacity, c.cacheTTL)))
		}
		if c.retryCfg != nil {
			repoOpts = append(repoOpts, WithRetry(*c.retryCfg))
		}
		c.repo = NewFontRepository(repoOpts...)
	}

	return c
}

// convertOptions hold per-call callbacks.
type convertOptions struct {
	onProgress     ProgressFunc
	onFontProgress FontProgressFunc
}

// ConvertOption configures a single Convert call.
type ConvertOption func(*convertOptions)

// OnProgress registers a pipeline progress callback for this call.
func OnProgress(fn ProgressFunc) ConvertOption {
	return func(o *convertOptions) {
		o.onProgress = fn
	}
}

// OnFontProgress registers a per-font fetch progress callback for
// this call.
func OnFontProgress(fn FontProgressFunc) ConvertOption {
	return func(o *convertOptions) {
		o.onFontProgress = fn
	}
}

// Convert runs the full pipeline and returns the PDF with per-font
// diagnostics. Failures surface as a single *ConversionError per run.
//
// A fetch failure for one font does not abort the pipeline: the font
// is omitted and the engine substitutes a web-safe fallback, with a
// warning recorded on the Result. Configuration and boundary
// validation failures are fatal.
//
// Recovers from internal panics so engine faults cannot crash callers.
func (c *Converter) Convert(ctx context.Context, doc Document, cfg *PDFConfig, opts ...ConvertOption) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, translateError(r)
		}
	}()

	var callOpts convertOptions
	for _, opt := range opts {
		opt(&callOpts)
	}
	report := func(stage Stage, pct float64) {
		if callOpts.onProgress != nil {
			callOpts.onProgress(stage, pct)
		}
	}

	// Empty input fails locally, before any engine call.
	if strings.TrimSpace(doc.Content) == "" {
		return nil, ErrEmptyDocument
	}

	report(StageQueued, 0)

	if cfg == nil {
		cfg = DefaultPDFConfig()
	}

	// One engine instance per conversion, released exactly once on
	// every exit path from here on.
	engine, err := c.provider.Acquire(ctx)
	if err != nil {
		return nil, c.fail(err)
	}
	defer func() { _ = engine.Close() }()

	detected, err := engine.Detect(ctx, doc)
	if err != nil {
		return nil, c.fail(err)
	}
	report(StageDetectingFonts, progressDetectingFonts)

	reqs, err := ValidateFontRequirements(detected)
	if err != nil {
		return nil, c.fail(err)
	}

	classified := classifyFonts(reqs, c.logger)
	report(StageFetchingFonts, progressFetchingFonts)

	collection, fontResults, warnings := c.fetchFonts(ctx, classified.Google, callOpts.onFontProgress)

	// Config is validated at the boundary; unlike per-font fetch
	// failures, this is fatal.
	if err := cfg.Validate(); err != nil {
		return nil, c.fail(err)
	}

	report(StageParsing, progressEngineFloor)

	// The engine re-enters the pipeline through this callback; its
	// arguments are untrusted until validated. The first invalid
	// emission fails the run after the engine returns.
	var cbErr error
	var cbOnce sync.Once
	onRaw := func(stage any, percent any) {
		s, p, verr := ValidateProgress(stage, percent)
		if verr != nil {
			cbOnce.Do(func() { cbErr = verr })
			return
		}
		report(engineStage(s), rescaleEngineProgress(p))
	}

	raw, err := engine.Convert(ctx, doc, *cfg, collection, onRaw)
	if err != nil {
		return nil, c.fail(err)
	}
	if cbErr != nil {
		return nil, c.fail(cbErr)
	}

	pdfBytes, err := ValidatePDFBytes(raw)
	if err != nil {
		return nil, c.fail(err)
	}

	report(StageCompleted, progressCeiling)

	return &Result{
		PDF:      pdfBytes,
		Fonts:    fontResults,
		Warnings: warnings,
	}, nil
}

// fetchFonts fetches every required Google font, collapsing duplicate
// variants to one fetch. Failures degrade gracefully: the font is
// skipped, logged, and recorded as a warning. Fetches run through an
// errgroup bounded by the configured concurrency (1 by default, the
// reference sequential behavior); the assembled collection is
// order-independent.
func (c *Converter) fetchFonts(ctx context.Context, reqs []FontRequirement, onFontProgress FontProgressFunc) (*FontCollection, []FontFetchResult, []string) {
	unique := dedupeRequirements(reqs)
	total := len(unique)

	results := make([]FontFetchResult, total)
	data := make([][]byte, total)

	var mu sync.Mutex
	fetched := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fontConcurrency)
	for i, req := range unique {
		g.Go(func() error {
			bytes, err := c.repo.FetchGoogleFont(gctx, req.Family, req.Weight, req.Style)
			results[i] = FontFetchResult{Family: req.Family, Weight: req.Weight, Style: req.Style, Err: err}
			data[i] = bytes

			mu.Lock()
			fetched++
			n := fetched
			mu.Unlock()
			if onFontProgress != nil {
				onFontProgress(n, total, req.Family)
			}
			// Fetch failures never abort the pipeline.
			return nil
		})
	}
	_ = g.Wait()

	collection := &FontCollection{}
	var warnings []string
	for i, req := range unique {
		if results[i].Err != nil {
			c.logger.Warn("font fetch failed, engine will substitute a web-safe fallback",
				"family", req.Family, "weight", req.Weight, "style", req.Style, "error", results[i].Err)
			warnings = append(warnings, "font "+req.Family+" unavailable, substituted at render time")
			continue
		}
		collection.Add(FontData{
			Family: req.Family,
			Weight: req.Weight,
			Style:  req.Style,
			Bytes:  data[i],
			Format: sniffFontFormat(data[i]),
		})
	}

	return collection, results, warnings
}

// dedupeRequirements collapses duplicate family/weight/style variants,
// preserving first-seen order.
func dedupeRequirements(reqs []FontRequirement) []FontRequirement {
	seen := make(map[string]bool, len(reqs))
	out := make([]FontRequirement, 0, len(reqs))
	for _, r := range reqs {
		key := fontcache.Key(r.Family, r.Weight, string(r.Style))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// sniffFontFormat identifies a fetched binary by its magic bytes.
func sniffFontFormat(data []byte) FontFormat {
	if len(data) >= 4 {
		switch {
		case data[0] == 'w' && data[1] == 'O' && data[2] == 'F' && data[3] == '2':
			return FormatWOFF2
		case data[0] == 'w' && data[1] == 'O' && data[2] == 'F' && data[3] == 'F':
			return FormatWOFF
		}
	}
	return FormatTTF
}

// engineStage maps an engine-reported stage name onto the pipeline
// state machine for progress forwarding.
func engineStage(s string) Stage {
	if stage, ok := stageLookup[s]; ok {
		return stage
	}
	return StageFailed
}

// fail routes a raw pipeline failure through the error translator,
// special-casing context termination.
func (c *Converter) fail(err error) *ConversionError {
	switch {
	case errors.Is(err, context.Canceled):
		return &ConversionError{
			Stage:       StageCancelled,
			Code:        CodeUnknown,
			Message:     "Conversion cancelled",
			Recoverable: true,
			Suggestions: []string{"Try again"},
			Timestamp:   time.Now(),
			ErrorID:     newErrorID(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &ConversionError{
			Stage:       StageFailed,
			Code:        CodeConversionTimeout,
			Message:     "Conversion timed out",
			Recoverable: true,
			Suggestions: []string{"Try again", "Simplify the document"},
			Timestamp:   time.Now(),
			ErrorID:     newErrorID(),
		}
	default:
		return translateError(err)
	}
}

// FontCacheStats returns a snapshot of the shared font cache.
func (c *Converter) FontCacheStats() CacheStats {
	return c.repo.CacheStats()
}

// ClearFontCache drops all cached fonts.
func (c *Converter) ClearFontCache() {
	c.repo.ClearCache()
}

// Close releases provider-wide resources (the headless browser for
// the default provider).
func (c *Converter) Close() error {
	if c.provider != nil {
		return c.provider.Shutdown()
	}
	return nil
}
