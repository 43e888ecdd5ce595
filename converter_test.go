package tsx2pdf

// Notes:
// - Tests Converter.Convert with a mock engine provider to isolate
//   orchestration logic; the font repository runs against httptest
//   servers from fontrepo_test.go
// - Engine release is asserted on every exit path (exactly one Close)
// - Graceful degradation: a failed font fetch yields a warning and a
//   smaller collection, never an error

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/halloran/go-tsx2pdf/internal/retry"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

type progressEmission struct {
	stage   any
	percent any
}

type mockEngine struct {
	detectResult  any
	detectErr     error
	convertResult any
	convertErr    error
	emit          []progressEmission

	detectCalls  int
	convertCalls int
	closeCalls   int
	gotFonts     *FontCollection
	gotCfg       PDFConfig
}

func (m *mockEngine) Detect(ctx context.Context, doc Document) (any, error) {
	m.detectCalls++
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	if m.detectResult != nil {
		return m.detectResult, nil
	}
	return []any{}, nil
}

func (m *mockEngine) Convert(ctx context.Context, doc Document, cfg PDFConfig, fonts *FontCollection, onProgress RawProgressFunc) (any, error) {
	m.convertCalls++
	m.gotFonts = fonts
	m.gotCfg = cfg
	for _, e := range m.emit {
		if onProgress != nil {
			onProgress(e.stage, e.percent)
		}
	}
	if m.convertErr != nil {
		return nil, m.convertErr
	}
	if m.convertResult != nil {
		return m.convertResult, nil
	}
	return pdfBytes(100), nil
}

func (m *mockEngine) Close() error {
	m.closeCalls++
	return nil
}

type mockProvider struct {
	engine     *mockEngine
	acquireErr error
	acquires   int
	shutdowns  int
}

func (p *mockProvider) Acquire(ctx context.Context) (Engine, error) {
	p.acquires++
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.engine, nil
}

func (p *mockProvider) DecompressWOFF2(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}

func (p *mockProvider) Shutdown() error {
	p.shutdowns++
	return nil
}

// googleReq builds an untyped detection entry the way the engine
// boundary delivers them.
func googleReq(family string, weight int, style string) map[string]any {
	return map[string]any{"family": family, "weight": weight, "style": style, "source": "google"}
}

// newTestConverter wires a converter with a mock provider and an
// httptest-backed repository.
func newTestConverter(t *testing.T, engine *mockEngine, fs *fontServer) (*Converter, *mockProvider) {
	t.Helper()
	provider := &mockProvider{engine: engine}
	conv := NewConverter(
		WithEngineProvider(provider),
		WithFontRepository(newTestRepo(t, fs)),
		WithLogger(discardLogger()),
	)
	return conv, provider
}

var testDoc = Document{Content: "# Hello", Format: FormatMarkdown}

// ---------------------------------------------------------------------------
// Happy path
// ---------------------------------------------------------------------------

func TestConvert_TwoFontsFetchedAndEmbedded(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{
		detectResult: []any{
			googleReq("Roboto", 400, "normal"),
			googleReq("Lato", 700, "italic"),
		},
	}
	conv, _ := newTestConverter(t, engine, fs)

	result, err := conv.Convert(context.Background(), testDoc, DefaultPDFConfig())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if engine.gotFonts == nil {
		t.Fatal("engine received no font collection")
	}
	if engine.gotFonts.Len() != 2 {
		t.Errorf("engine received %d fonts, want 2", engine.gotFonts.Len())
	}
	if engine.convertCalls != 1 {
		t.Errorf("engine Convert called %d times, want 1", engine.convertCalls)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}
	if _, err := ValidatePDFBytes(result.PDF); err != nil {
		t.Errorf("result PDF fails the byte schema: %v", err)
	}
	if stats := conv.FontCacheStats(); stats.Size != 2 {
		t.Errorf("cache size after conversion = %d, want 2", stats.Size)
	}
	if engine.closeCalls != 1 {
		t.Errorf("engine closed %d times, want exactly 1", engine.closeCalls)
	}
}

func TestConvert_ProgressSequence(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{
		emit: []progressEmission{
			{"rendering", 0},
			{"laying-out", 50.0},
			{"completed", 100.0},
		},
	}
	conv, _ := newTestConverter(t, engine, fs)

	type emission struct {
		stage Stage
		pct   float64
	}
	var got []emission
	_, err := conv.Convert(context.Background(), testDoc, nil,
		OnProgress(func(stage Stage, pct float64) {
			got = append(got, emission{stage, pct})
		}))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	want := []emission{
		{StageQueued, 0},
		{StageDetectingFonts, 5},
		{StageFetchingFonts, 10},
		{StageParsing, 15},
		{StageRendering, 15},   // engine 0 rescales to the floor
		{StageLayingOut, 57.5}, // engine 50 rescales linearly
		{StageCompleted, 100},  // engine 100 rescales to the ceiling
		{StageCompleted, 100},  // orchestrator's own final emission
	}
	if len(got) != len(want) {
		t.Fatalf("got %d emissions %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("emission[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConvert_FontProgressReported(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{
		detectResult: []any{
			googleReq("Roboto", 400, "normal"),
			googleReq("Lato", 700, "normal"),
		},
	}
	conv, _ := newTestConverter(t, engine, fs)

	var families []string
	var lastTotal int
	_, err := conv.Convert(context.Background(), testDoc, nil,
		OnFontProgress(func(fetched, total int, family string) {
			families = append(families, family)
			lastTotal = total
		}))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(families) != 2 || lastTotal != 2 {
		t.Errorf("font progress = %v (total %d), want 2 callbacks with total 2", families, lastTotal)
	}
}

func TestConvert_DuplicateRequirementsFetchedOnce(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{
		detectResult: []any{
			googleReq("Roboto", 400, "normal"),
			googleReq("Roboto", 400, "normal"),
		},
	}
	conv, _ := newTestConverter(t, engine, fs)

	_, err := conv.Convert(context.Background(), testDoc, nil)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if engine.gotFonts.Len() != 1 {
		t.Errorf("collection has %d fonts, want 1 after dedupe", engine.gotFonts.Len())
	}
	if got := fs.cssHits.Load(); got != 1 {
		t.Errorf("CSS endpoint hit %d times, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Graceful degradation
// ---------------------------------------------------------------------------

func TestConvert_FontFetchFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	repo := NewFontRepository(
		WithHTTPClient(&http.Client{Transport: &failingTransport{err: timeoutError{}}}),
		WithRetry(retry.None),
		WithRepositoryLogger(discardLogger()),
		withCSSEndpoint(fs.URL+"/css2"),
	)
	// One of the two fonts is already cached; the other's fetch times out.
	repo.CacheFont("Roboto", 400, StyleNormal, []byte("cached-ttf-bytes"))

	engine := &mockEngine{
		detectResult: []any{
			googleReq("Roboto", 400, "normal"),
			googleReq("Unreachable", 700, "normal"),
		},
	}
	provider := &mockProvider{engine: engine}
	conv := NewConverter(
		WithEngineProvider(provider),
		WithFontRepository(repo),
		WithLogger(discardLogger()),
	)

	result, err := conv.Convert(context.Background(), testDoc, nil)
	if err != nil {
		t.Fatalf("Convert() error = %v, want success despite the fetch failure", err)
	}

	if engine.gotFonts.Len() != 1 {
		t.Errorf("collection has %d fonts, want 1", engine.gotFonts.Len())
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "Unreachable") {
		t.Errorf("Warnings = %v, want one naming the failed family", result.Warnings)
	}

	var failed int
	for _, fr := range result.Fonts {
		if fr.Err != nil {
			failed++
			var fe *FetchError
			if !errors.As(fr.Err, &fe) || fe.Code != FetchNetworkTimeout {
				t.Errorf("failed fetch error = %v, want NETWORK_TIMEOUT", fr.Err)
			}
		}
	}
	if failed != 1 {
		t.Errorf("%d failed fetches recorded, want 1", failed)
	}
}

// ---------------------------------------------------------------------------
// Failure paths
// ---------------------------------------------------------------------------

func TestConvert_EmptyDocument(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{}
	conv, provider := newTestConverter(t, engine, fs)

	for _, content := range []string{"", "   \n\t "} {
		_, err := conv.Convert(context.Background(), Document{Content: content}, nil)
		if !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("Convert(%q) error = %v, want ErrEmptyDocument", content, err)
		}
	}
	if provider.acquires != 0 {
		t.Errorf("engine acquired %d times for empty input, want 0", provider.acquires)
	}
}

func TestConvert_InvalidConfigIsFatal(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{}
	conv, _ := newTestConverter(t, engine, fs)

	cfg := &PDFConfig{PageSize: "Tabloid", Standard: StandardPDF17}
	_, err := conv.Convert(context.Background(), testDoc, cfg)

	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if engine.convertCalls != 0 {
		t.Errorf("engine Convert called %d times after config rejection, want 0", engine.convertCalls)
	}
	if engine.closeCalls != 1 {
		t.Errorf("engine closed %d times, want exactly 1", engine.closeCalls)
	}
}

func TestConvert_EngineStringFailure(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{convertErr: errors.New("boom")}
	conv, _ := newTestConverter(t, engine, fs)

	_, err := conv.Convert(context.Background(), testDoc, nil)

	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if cerr.Code != CodeUnknown {
		t.Errorf("Code = %q, want %q", cerr.Code, CodeUnknown)
	}
	if cerr.Message != "Conversion failed: boom" {
		t.Errorf("Message = %q, want %q", cerr.Message, "Conversion failed: boom")
	}
	if engine.closeCalls != 1 {
		t.Errorf("engine closed %d times, want exactly 1", engine.closeCalls)
	}
}

func TestConvert_EngineStructuredFailure(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{
		convertErr: errors.New(`{"code":"MEMORY_LIMIT_EXCEEDED","message":"heap exhausted","stage":"laying-out","recoverable":true}`),
	}
	conv, _ := newTestConverter(t, engine, fs)

	_, err := conv.Convert(context.Background(), testDoc, nil)

	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if cerr.Code != CodeMemoryLimitExceeded || cerr.Stage != StageLayingOut || !cerr.Recoverable {
		t.Errorf("translated error = %+v, want MEMORY_LIMIT_EXCEEDED at laying-out, recoverable", cerr)
	}
}

func TestConvert_InvalidDetectionRejected(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{
		detectResult: []any{
			map[string]any{"family": "", "weight": 400, "style": "normal", "source": "google"},
		},
	}
	conv, _ := newTestConverter(t, engine, fs)

	_, err := conv.Convert(context.Background(), testDoc, nil)

	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if engine.convertCalls != 0 {
		t.Error("engine Convert called despite invalid detection result")
	}
	if engine.closeCalls != 1 {
		t.Errorf("engine closed %d times, want exactly 1", engine.closeCalls)
	}
}

func TestConvert_InvalidProgressEmissionFailsRun(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{
		emit: []progressEmission{{"rendering", 150.0}},
	}
	conv, _ := newTestConverter(t, engine, fs)

	_, err := conv.Convert(context.Background(), testDoc, nil)

	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if engine.closeCalls != 1 {
		t.Errorf("engine closed %d times, want exactly 1", engine.closeCalls)
	}
}

func TestConvert_InvalidOutputRejected(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{convertResult: []byte("not a pdf at all, but long enough to pass size checks")}
	conv, _ := newTestConverter(t, engine, fs)

	_, err := conv.Convert(context.Background(), testDoc, nil)

	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if engine.closeCalls != 1 {
		t.Errorf("engine closed %d times, want exactly 1", engine.closeCalls)
	}
}

func TestConvert_CancelledContext(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	engine := &mockEngine{}
	conv, provider := newTestConverter(t, engine, fs)
	provider.acquireErr = context.Canceled

	_, err := conv.Convert(context.Background(), testDoc, nil)

	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ConversionError", err)
	}
	if cerr.Stage != StageCancelled {
		t.Errorf("Stage = %q, want %q", cerr.Stage, StageCancelled)
	}
}

// ---------------------------------------------------------------------------
// Cache surface and lifecycle
// ---------------------------------------------------------------------------

func TestConverter_CacheSurface(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	conv, _ := newTestConverter(t, &mockEngine{}, fs)

	stats := conv.FontCacheStats()
	if stats.MaxSize != 20 {
		t.Errorf("MaxSize = %d, want 20", stats.MaxSize)
	}

	conv.ClearFontCache()
	if got := conv.FontCacheStats(); got.Size != 0 || got.Hits != 0 {
		t.Errorf("stats after clear = %+v, want zeroes", got)
	}
}

func TestConverter_CloseShutsDownProvider(t *testing.T) {
	t.Parallel()

	fs := newFontServer(t, "ttf")
	conv, provider := newTestConverter(t, &mockEngine{}, fs)

	if err := conv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if provider.shutdowns != 1 {
		t.Errorf("provider shut down %d times, want 1", provider.shutdowns)
	}
}
