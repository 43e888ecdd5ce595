// Package tsx2pdf converts structured documents to font-embedded PDFs
// by delegating parsing, layout, and rendering to an external engine
// (headless Chrome via go-rod by default).
//
// # Quick Start
//
// Create a converter, convert a document, and close when done:
//
//	conv := tsx2pdf.NewConverter()
//	defer conv.Close()
//
//	result, err := conv.Convert(ctx, tsx2pdf.Document{
//	    Content: "# Hello\n\nWorld",
//	    Format:  tsx2pdf.FormatMarkdown,
//	}, nil)
//	if err != nil {
//	    var cerr *tsx2pdf.ConversionError
//	    if errors.As(err, &cerr) {
//	        log.Fatalf("%s [%s]: %s", cerr.Stage, cerr.Code, cerr.Message)
//	    }
//	    log.Fatal(err)
//	}
//	os.WriteFile("output.pdf", result.PDF, 0644)
//
// # Conversion Pipeline
//
// The conversion process follows these stages:
//
//  1. Font detection via the rendering engine
//  2. Classification of detected fonts (Google / web-safe / custom)
//  3. Fetching and caching of Google Fonts binaries, with retry
//  4. Font collection assembly
//  5. Engine conversion with progress reporting rescaled to 15-100%
//  6. Output validation (PDF magic bytes and size bounds)
//
// A failed Google Fonts fetch is not fatal: the affected font is
// omitted and the engine substitutes a web-safe fallback at render
// time. Engine failures are returned as a single *ConversionError
// carrying a stable error id and user-facing suggestions.
//
// Every value crossing the engine boundary is schema-validated before
// it is trusted, in both directions; see ValidateFontRequirements,
// ValidatePDFBytes, and ValidateProgress.
//
// # Fonts
//
// Fetched Google Fonts binaries are held in a process-wide cache with
// bounded size (20 entries) and a one-hour TTL; eviction removes the
// least-consulted entries first. Inspect and reset the cache with
// FontCacheStats and ClearFontCache.
//
// # Parallel Processing
//
// For batch conversion, use ConverterPool to manage multiple engine
// providers:
//
//	pool := tsx2pdf.NewConverterPool(4)
//	defer pool.Close()
//
//	conv := pool.Acquire()
//	defer pool.Release(conv)
//	result, err := conv.Convert(ctx, doc, cfg)
//
// # Browser Requirements
//
// The default engine requires Chrome/Chromium. The go-rod library
// downloads a managed Chromium on first run (~/.cache/rod/browser/).
// Set ROD_NO_SANDBOX=1 for containers and ROD_BROWSER_BIN for a
// custom binary.
package tsx2pdf
