package tsx2pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/halloran/go-tsx2pdf/internal/fontcache"
	"github.com/halloran/go-tsx2pdf/internal/retry"
)

// Google Fonts description endpoint and per-attempt fetch timeout.
const (
	googleFontsCSSEndpoint = "https://fonts.googleapis.com/css2"
	fetchTimeout           = 30 * time.Second
)

// Font binary URL references inside the CSS description. A .ttf
// reference is preferred; .woff2 is the fallback.
var (
	ttfURLPattern   = regexp.MustCompile(`url\((https://[^)]+\.ttf)\)`)
	woff2URLPattern = regexp.MustCompile(`url\((https://[^)]+\.woff2)\)`)
)

// Woff2Decompressor converts WOFF2 bytes to TrueType bytes. The
// rendering engine provides the native decompression routine.
type Woff2Decompressor interface {
	DecompressWOFF2(ctx context.Context, data []byte) ([]byte, error)
}

// FontRepository fetches, decompresses, and caches individual Google
// Fonts binaries. It never decides whether the pipeline continues on
// failure; that policy belongs to the orchestrator.
type FontRepository struct {
	client       *http.Client
	cache        *fontcache.Cache
	retryCfg     retry.Config
	decompressor Woff2Decompressor
	logger       *slog.Logger
	cssEndpoint  string
}

// RepositoryOption configures a FontRepository.
type RepositoryOption func(*FontRepository)

// WithHTTPClient replaces the HTTP client (e.g., a test server client).
func WithHTTPClient(client *http.Client) RepositoryOption {
	return func(r *FontRepository) {
		if client != nil {
			r.client = client
		}
	}
}

// WithCache replaces the font cache, sharing entries across repositories.
func WithCache(cache *fontcache.Cache) RepositoryOption {
	return func(r *FontRepository) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithRetry overrides the network backoff policy.
func WithRetry(cfg retry.Config) RepositoryOption {
	return func(r *FontRepository) {
		r.retryCfg = cfg
	}
}

// WithDecompressor sets the WOFF2 decompression routine.
func WithDecompressor(d Woff2Decompressor) RepositoryOption {
	return func(r *FontRepository) {
		r.decompressor = d
	}
}

// WithRepositoryLogger sets the structured logger.
func WithRepositoryLogger(logger *slog.Logger) RepositoryOption {
	return func(r *FontRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// withCSSEndpoint redirects the description endpoint (tests only).
func withCSSEndpoint(u string) RepositoryOption {
	return func(r *FontRepository) {
		r.cssEndpoint = u
	}
}

// NewFontRepository creates a repository with a bounded TTL cache and
// network retry defaults.
func NewFontRepository(opts ...RepositoryOption) *FontRepository {
	r := &FontRepository{
		client:      &http.Client{Timeout: fetchTimeout},
		cache:       fontcache.New(fontcache.DefaultCapacity, fontcache.DefaultTTL),
		retryCfg:    retry.NetworkDefaults,
		logger:      slog.Default(),
		cssEndpoint: googleFontsCSSEndpoint,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchGoogleFont returns the TrueType (or WOFF2, when no TrueType
// reference exists) bytes for a Google Fonts variant, consulting the
// cache first. Failures are *FetchError values tagged with the family.
func (r *FontRepository) FetchGoogleFont(ctx context.Context, family string, weight int, style FontStyle) ([]byte, error) {
	key := fontcache.Key(family, weight, string(style))
	if data, ok := r.cache.Get(key); ok {
		r.logger.Debug("font cache hit", "family", family, "weight", weight, "style", style)
		return data, nil
	}

	css, err := r.fetchText(ctx, r.buildFontCSSURL(family, weight, style))
	if err != nil {
		return nil, r.classifyFetchFailure(family, err)
	}

	binaryURL, format, err := extractFontURL(css)
	if err != nil {
		return nil, &FetchError{Code: FetchParseError, Family: family, Err: err}
	}

	data, err := r.fetchBinary(ctx, binaryURL)
	if err != nil {
		return nil, r.classifyFetchFailure(family, err)
	}

	if format == FormatWOFF2 {
		if r.decompressor == nil {
			return nil, &FetchError{Code: FetchParseError, Family: family, Err: errors.New("no WOFF2 decompressor configured")}
		}
		data, err = r.decompressor.DecompressWOFF2(ctx, data)
		if err != nil {
			return nil, &FetchError{Code: FetchParseError, Family: family, Err: err}
		}
	}

	r.CacheFont(family, weight, style, data)
	return data, nil
}

// CachedFont returns cached bytes for a variant without hitting the
// network.
func (r *FontRepository) CachedFont(family string, weight int, style FontStyle) ([]byte, bool) {
	return r.cache.Get(fontcache.Key(family, weight, string(style)))
}

// CacheFont stores bytes for a variant; the cache evicts least-hit
// entries beyond its capacity.
func (r *FontRepository) CacheFont(family string, weight int, style FontStyle, data []byte) {
	r.cache.Put(fontcache.Key(family, weight, string(style)), data)
}

// CacheStats returns a snapshot of font cache usage.
func (r *FontRepository) CacheStats() CacheStats {
	return r.cache.Stats()
}

// ClearCache drops all cached fonts.
func (r *FontRepository) ClearCache() {
	r.cache.Clear()
}

// fetchText GETs a URL through the retry policy and returns the body
// as text. Non-success statuses fail the attempt.
func (r *FontRepository) fetchText(ctx context.Context, u string) (string, error) {
	data, err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) ([]byte, error) {
		return r.get(ctx, u, true)
	})
	return string(data), err
}

// fetchBinary GETs a font binary URL through the retry policy.
func (r *FontRepository) fetchBinary(ctx context.Context, u string) ([]byte, error) {
	return retry.Do(ctx, r.retryCfg, func(ctx context.Context) ([]byte, error) {
		return r.get(ctx, u, false)
	})
}

// notFoundError marks an upstream non-success status so the caller can
// distinguish it from transport failures.
type notFoundError struct {
	status int
	url    string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.status, e.url)
}

// get performs one HTTP GET attempt. The Google Fonts CSS endpoint
// varies its response by user agent; asCSS requests the TTF-capable
// variant.
func (r *FontRepository) get(ctx context.Context, u string, asCSS bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if asCSS {
		// Legacy user agents receive TTF references instead of WOFF2.
		req.Header.Set("User-Agent", "Mozilla/5.0")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &notFoundError{status: resp.StatusCode, url: u}
	}

	return io.ReadAll(resp.Body)
}

// classifyFetchFailure maps a transport error onto the fetch taxonomy.
func (r *FontRepository) classifyFetchFailure(family string, err error) *FetchError {
	var nf *notFoundError
	switch {
	case errors.As(err, &nf):
		return &FetchError{Code: FetchNotFound, Family: family, Err: err}
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return &FetchError{Code: FetchNetworkTimeout, Family: family, Err: err}
	default:
		return &FetchError{Code: FetchNetworkError, Family: family, Err: err}
	}
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// buildFontCSSURL builds the css2 description URL for one variant.
// Italic encodes the axis list as ital,wght@1,<weight>; normal as
// wght@<weight>.
func (r *FontRepository) buildFontCSSURL(family string, weight int, style FontStyle) string {
	var axes string
	if style == StyleItalic {
		axes = fmt.Sprintf("ital,wght@1,%d", weight)
	} else {
		axes = fmt.Sprintf("wght@%d", weight)
	}
	return fmt.Sprintf("%s?family=%s:%s&display=swap", r.cssEndpoint, encodeFamily(family), axes)
}

// encodeFamily URL-encodes a family name, keeping spaces as %20 the
// way encodeURIComponent does.
func encodeFamily(family string) string {
	return strings.ReplaceAll(url.QueryEscape(family), "+", "%20")
}

// extractFontURL finds the font binary URL in the CSS description,
// preferring a TrueType reference over WOFF2.
func extractFontURL(css string) (string, FontFormat, error) {
	if m := ttfURLPattern.FindStringSubmatch(css); m != nil {
		return m[1], FormatTTF, nil
	}
	if m := woff2URLPattern.FindStringSubmatch(css); m != nil {
		return m[1], FormatWOFF2, nil
	}
	return "", "", errors.New("no font binary URL in description")
}
