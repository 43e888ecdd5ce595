// Package render prepares source documents for the browser-backed
// rendering engine: Markdown is converted to a standalone HTML5
// document via goldmark, HTML sources are wrapped as needed, and
// fetched fonts are injected as @font-face rules.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrHTMLConversion indicates Markdown to HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// htmlTemplate wraps fragment output in a complete HTML5 document.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Document</title>
</head>
<body>
%s
</body>
</html>`

// Preparer converts a source document into standalone HTML.
type Preparer interface {
	Prepare(ctx context.Context, content string) (string, error)
}

// MarkdownPreparer converts Markdown to HTML using goldmark (pure Go).
type MarkdownPreparer struct {
	md goldmark.Markdown
}

// NewMarkdownPreparer creates a MarkdownPreparer with GFM extensions
// and chroma syntax highlighting.
func NewMarkdownPreparer() *MarkdownPreparer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)
	return &MarkdownPreparer{md: md}
}

// Prepare converts Markdown content to a standalone HTML5 document.
// Goldmark has no native context support, so conversion runs in a
// goroutine raced against ctx.
func (p *MarkdownPreparer) Prepare(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := p.md.Convert([]byte(content), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}
		done <- result{html: fmt.Sprintf(htmlTemplate, buf.String())}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// HTMLPreparer passes HTML sources through, wrapping bare fragments in
// a full document.
type HTMLPreparer struct{}

// Prepare wraps content in the document template unless it already
// carries an <html> element.
func (p *HTMLPreparer) Prepare(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(content), "<html") {
		return content, nil
	}
	return fmt.Sprintf(htmlTemplate, content), nil
}

// FontFace describes a single @font-face rule to inject.
type FontFace struct {
	Family string
	Weight int
	Style  string
	Format string // "truetype" or "woff2"
	Bytes  []byte
}

// InjectCSS inserts a <style> block into HTML content.
// Tries </head> first, then after <body>, then prepends.
// CSS content is sanitized so it cannot close the style tag early.
func InjectCSS(htmlContent, cssContent string) string {
	if cssContent == "" {
		return htmlContent
	}

	sanitized := strings.ReplaceAll(cssContent, "</", `<\/`)
	styleBlock := "<style>" + sanitized + "</style>"
	lowerHTML := strings.ToLower(htmlContent)

	if idx := strings.Index(lowerHTML, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}

	if idx := strings.Index(lowerHTML, "<body"); idx != -1 {
		closeIdx := strings.Index(htmlContent[idx:], ">")
		if closeIdx != -1 {
			insertPos := idx + closeIdx + 1
			return htmlContent[:insertPos] + styleBlock + htmlContent[insertPos:]
		}
	}

	return styleBlock + htmlContent
}

// FontFaceCSS builds @font-face rules embedding each font as a base64
// data URL, so the rendered page needs no further network access.
func FontFaceCSS(faces []FontFace) string {
	var b strings.Builder
	for _, f := range faces {
		fmt.Fprintf(&b, "@font-face{font-family:%q;font-weight:%d;font-style:%s;src:url(data:font/%s;base64,%s) format(%q);}\n",
			f.Family, f.Weight, f.Style, formatMIME(f.Format), base64.StdEncoding.EncodeToString(f.Bytes), f.Format)
	}
	return b.String()
}

// formatMIME maps a CSS font format to its data-URL MIME suffix.
func formatMIME(format string) string {
	switch format {
	case "woff2":
		return "woff2"
	default:
		return "ttf"
	}
}
