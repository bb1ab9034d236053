package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextExtractor はフィード本文のHTMLからタグを除去してプレーンテキストにする。
// 分類プロンプトに渡す本文と保存するcontentに使う。
type TextExtractor struct {
	policy *bluemonday.Policy
}

// NewTextExtractor はbluemondayのStrictPolicyを使うTextExtractorを生成する。
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{policy: bluemonday.StrictPolicy()}
}

// Text はHTMLをプレーンテキストに変換し、連続する空白を1つにまとめる。
func (e *TextExtractor) Text(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	stripped := e.policy.Sanitize(rawHTML)
	// StrictPolicyはエンティティをエスケープしたまま返す
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// HTMLSanitizer はレポートのMarkdownから生成したHTMLを安全なタグのみに制限する。
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer はUGCPolicyを基にしたHTMLSanitizerを生成する。
// 外部リンクには target="_blank" と rel="nofollow noopener noreferrer" を付与する。
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &HTMLSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズして返す。同一入力には常に同一出力を返す。
func (s *HTMLSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
