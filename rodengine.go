package tsx2pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/halloran/go-tsx2pdf/internal/fileutil"
	"github.com/halloran/go-tsx2pdf/internal/render"
)

// Compile-time interface implementation checks.
var (
	_ EngineProvider = (*RodProvider)(nil)
	_ Engine         = (*rodEngine)(nil)
)

// defaultEngineTimeout bounds page load and PDF printing per conversion.
const defaultEngineTimeout = 60 * time.Second

// Paper dimensions in inches per page size.
var paperSizes = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeA4:     {8.27, 11.69},
	PageSizeLegal:  {8.5, 14},
}

// pointsPerInch converts config margins (points) to Chrome inches.
const pointsPerInch = 72.0

// detectFontsJS walks computed styles in the loaded document and
// returns one requirement per distinct family/weight/style, classified
// as websafe (built-in family), custom (declared by an in-document
// @font-face), or google (everything else).
const detectFontsJS = `() => {
	const webSafe = new Set([
		"arial", "helvetica", "times new roman", "times", "courier new",
		"courier", "georgia", "verdana", "tahoma", "trebuchet ms",
		"impact", "serif", "sans-serif", "monospace", "cursive",
		"fantasy", "system-ui",
	]);
	const declared = new Set();
	for (const sheet of document.styleSheets) {
		try {
			for (const rule of sheet.cssRules) {
				if (rule.type === CSSRule.FONT_FACE_RULE) {
					declared.add(rule.style.getPropertyValue("font-family")
						.replace(/["']/g, "").trim().toLowerCase());
				}
			}
		} catch (e) {
			// Cross-origin sheets are unreadable; skip them.
		}
	}
	const seen = new Map();
	for (const el of document.querySelectorAll("*")) {
		const cs = getComputedStyle(el);
		const family = cs.fontFamily.split(",")[0].trim().replace(/["']/g, "");
		if (family === "") continue;
		let weight = parseInt(cs.fontWeight, 10);
		if (!Number.isFinite(weight)) weight = cs.fontWeight === "bold" ? 700 : 400;
		weight = Math.min(900, Math.max(100, Math.round(weight / 100) * 100));
		const style = cs.fontStyle.startsWith("italic") ? "italic" : "normal";
		const lower = family.toLowerCase();
		const source = webSafe.has(lower) ? "websafe"
			: declared.has(lower) ? "custom" : "google";
		const key = family + "-" + weight + "-" + style;
		if (!seen.has(key)) seen.set(key, { family, weight, style, source });
	}
	return Array.from(seen.values());
}`

// RodProvider acquires rendering engines backed by headless Chrome.
// The browser launches lazily on first acquire and is shared by all
// engines; each engine owns its own page.
type RodProvider struct {
	mu       sync.Mutex
	browser  *rod.Browser
	closed   bool
	timeout  time.Duration
	markdown *render.MarkdownPreparer
	html     *render.HTMLPreparer
}

// NewRodProvider creates a provider with the default engine timeout.
func NewRodProvider() *RodProvider {
	return &RodProvider{
		timeout:  defaultEngineTimeout,
		markdown: render.NewMarkdownPreparer(),
		html:     &render.HTMLPreparer{},
	}
}

// ensureBrowser lazily launches and connects to the browser.
func (p *RodProvider) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.browser != nil {
		return p.browser, nil
	}

	l := launcher.New()

	// Use a pre-installed browser if specified (containerized environments).
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineConnect, err)
	}
	p.browser = browser
	return browser, nil
}

// Acquire returns a fresh page-scoped engine for one conversion.
func (p *RodProvider) Acquire(ctx context.Context) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	browser, err := p.ensureBrowser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineAcquire, err)
	}
	return &rodEngine{provider: p, browser: browser}, nil
}

// DecompressWOFF2 validates the WOFF2 signature and passes the bytes
// through: Chrome consumes WOFF2 natively, so conversion to TrueType
// is unnecessary for this backend.
func (p *RodProvider) DecompressWOFF2(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) < 4 || data[0] != 'w' || data[1] != 'O' || data[2] != 'F' || data[3] != '2' {
		return nil, fmt.Errorf("%w: missing wOF2 signature", ErrInvalidWOFF2)
	}
	return data, nil
}

// Shutdown closes the shared browser.
func (p *RodProvider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.browser != nil {
		err := p.browser.Close()
		p.browser = nil
		return err
	}
	return nil
}

// rodEngine is one conversion's engine instance: a lazily created
// browser page plus the document preparation pipeline.
type rodEngine struct {
	provider *RodProvider
	browser  *rod.Browser
	page     *rod.Page
}

// prepare converts the source document into standalone HTML.
func (e *rodEngine) prepare(ctx context.Context, doc Document) (string, error) {
	switch doc.Format {
	case FormatMarkdown, "":
		return e.provider.markdown.Prepare(ctx, doc.Content)
	case FormatHTML:
		return e.provider.html.Prepare(ctx, doc.Content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, doc.Format)
	}
}

// loadHTML writes htmlContent to a temp file and (re)loads it in the
// engine's page.
func (e *rodEngine) loadHTML(ctx context.Context, htmlContent string) error {
	tmpPath, cleanup, err := fileutil.WriteTempFile(htmlContent, "html")
	if err != nil {
		return err
	}
	defer cleanup()

	if e.page != nil {
		_ = e.page.Close()
		e.page = nil
	}

	page, err := e.browser.Page(proto.TargetCreateTarget{URL: "file://" + tmpPath})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	e.page = page

	timeout := e.provider.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}

	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	return ctx.Err()
}

// Detect loads the document and probes its computed styles for font
// requirements. The result is raw JSON from the page, untyped.
func (e *rodEngine) Detect(ctx context.Context, doc Document) (any, error) {
	htmlContent, err := e.prepare(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := e.loadHTML(ctx, htmlContent); err != nil {
		return nil, err
	}

	res, err := e.page.Eval(detectFontsJS)
	if err != nil {
		return nil, fmt.Errorf("font detection failed: %w", err)
	}
	return res.Value.Val(), nil
}

// Convert renders the document with the fetched fonts embedded and
// prints it to PDF. Engine-internal stages are reported on the 0-100
// scale; the orchestrator rescales them.
func (e *rodEngine) Convert(ctx context.Context, doc Document, cfg PDFConfig, fonts *FontCollection, onProgress RawProgressFunc) (any, error) {
	report := func(stage string, pct float64) {
		if onProgress != nil {
			onProgress(stage, pct)
		}
	}

	report("parsing", 0)
	htmlContent, err := e.prepare(ctx, doc)
	if err != nil {
		return nil, err
	}

	if fonts != nil && fonts.Len() > 0 {
		faces := make([]render.FontFace, 0, fonts.Len())
		for _, f := range fonts.Fonts() {
			faces = append(faces, render.FontFace{
				Family: f.Family,
				Weight: f.Weight,
				Style:  string(f.Style),
				Format: fontFaceFormat(f.Format),
				Bytes:  f.Bytes,
			})
		}
		htmlContent = render.InjectCSS(htmlContent, render.FontFaceCSS(faces))
	}

	report("rendering", 30)
	if err := e.loadHTML(ctx, htmlContent); err != nil {
		return nil, err
	}

	report("laying-out", 60)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report("generating-pdf", 80)
	reader, err := e.page.PDF(buildPrintOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdfBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}

	report("completed", 100)
	return pdfBytes, nil
}

// Close releases the engine's page. Safe to call more than once.
func (e *rodEngine) Close() error {
	if e.page != nil {
		err := e.page.Close()
		e.page = nil
		return err
	}
	return nil
}

// buildPrintOptions maps a validated PDFConfig onto Chrome's print
// parameters. Margins convert from points to inches.
func buildPrintOptions(cfg PDFConfig) *proto.PagePrintToPDF {
	size, ok := paperSizes[cfg.PageSize]
	if !ok {
		size = paperSizes[PageSizeLetter]
	}
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(size[0]),
		PaperHeight:     floatPtr(size[1]),
		MarginTop:       floatPtr(cfg.MarginTop / pointsPerInch),
		MarginRight:     floatPtr(cfg.MarginRight / pointsPerInch),
		MarginBottom:    floatPtr(cfg.MarginBottom / pointsPerInch),
		MarginLeft:      floatPtr(cfg.MarginLeft / pointsPerInch),
		PrintBackground: true,
	}
}

// fontFaceFormat maps a binary format to its CSS format() keyword.
func fontFaceFormat(f FontFormat) string {
	if f == FormatWOFF2 {
		return "woff2"
	}
	return "truetype"
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
