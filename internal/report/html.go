package report

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLSanitizer は生成したHTMLをサニタイズする。
type HTMLSanitizer interface {
	Sanitize(rawHTML string) string
}

// HTMLRenderer はレポートのMarkdownをサニタイズ済みHTMLに変換する。
type HTMLRenderer struct {
	md        goldmark.Markdown
	sanitizer HTMLSanitizer
}

// NewHTMLRenderer はGFM拡張を有効にしたHTMLRendererを生成する。
func NewHTMLRenderer(sanitizer HTMLSanitizer) *HTMLRenderer {
	return &HTMLRenderer{
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sanitizer: sanitizer,
	}
}

// Render はMarkdownをHTMLに変換してサニタイズする。
func (r *HTMLRenderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return r.sanitizer.Sanitize(buf.String()), nil
}
