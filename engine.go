package tsx2pdf

import "context"

// Engine is one rendering-engine instance, scoped to a single
// conversion. Detection and conversion results cross a runtime
// boundary and are therefore untyped until schema-validated; see
// ValidateFontRequirements and ValidatePDFBytes.
type Engine interface {
	// Detect parses the document and returns its font requirements as
	// an untyped value.
	Detect(ctx context.Context, doc Document) (any, error)

	// Convert renders the document to PDF bytes (returned untyped),
	// reporting engine-internal progress through onProgress. The
	// callback's arguments are untrusted until validated.
	Convert(ctx context.Context, doc Document, cfg PDFConfig, fonts *FontCollection, onProgress RawProgressFunc) (any, error)

	// Close releases the instance. It must be safe to call on every
	// exit path; the orchestrator guarantees exactly one call.
	Close() error
}

// EngineProvider acquires engine instances and exposes the engine's
// native WOFF2 decompression routine. Instances are never shared
// across concurrent conversions: each conversion acquires and releases
// its own.
type EngineProvider interface {
	Woff2Decompressor

	// Acquire returns a fresh engine instance for one conversion.
	Acquire(ctx context.Context) (Engine, error)

	// Shutdown releases provider-wide resources (e.g., the browser).
	Shutdown() error
}
