package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"

	"github.com/hitoshi/execdash/internal/model"
)

const (
	// userAgent は取得リクエストに付与するUser-Agent。
	userAgent = "AI-Executive-Dashboard/1.0"
	// untitled はタイトルのないフィード項目に使うタイトル。
	untitled = "Untitled"
	// maxBlogItems はブログページ1つから取り出す記事の上限。
	maxBlogItems = 10
)

// ブログページから記事を取り出すためのセレクタ。
const (
	blogItemSelector    = "article, .post, .blog-post, [class*='article']"
	blogTitleSelector   = "h1, h2, h3, [class*='title']"
	blogContentSelector = "p, [class*='excerpt'], [class*='summary']"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// TextExtractor はHTMLからプレーンテキストを取り出す。
type TextExtractor interface {
	Text(rawHTML string) string
}

// StatusRecorder は取得時のHTTPステータスを記録する。
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// Retriever はソース種別に応じてRSSフィードまたはブログページを取得し、
// 未分類の記事リストに変換する。
type Retriever struct {
	ssrfGuard   SSRFValidator
	text        TextExtractor
	status      StatusRecorder
	timeout     time.Duration
	maxBodySize int64
}

// NewRetriever はRetrieverを生成する。statusはnilでもよい。
func NewRetriever(ssrfGuard SSRFValidator, text TextExtractor, status StatusRecorder, timeout time.Duration, maxBodySize int64) *Retriever {
	return &Retriever{
		ssrfGuard:   ssrfGuard,
		text:        text,
		status:      status,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Retrieve はソースを取得して記事リストを返す。
// 通信エラー、2xx以外のレスポンス、パース失敗はエラーとして返す。
func (r *Retriever) Retrieve(ctx context.Context, source *model.Source) ([]model.ParsedItem, error) {
	switch source.Type {
	case model.SourceTypeRSS:
		body, _, err := r.download(ctx, source.URL, "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
		if err != nil {
			return nil, err
		}
		return r.parseFeed(body)
	case model.SourceTypeBlog:
		body, contentType, err := r.download(ctx, source.URL, "text/html, application/xhtml+xml, */*")
		if err != nil {
			return nil, err
		}
		return r.parseBlog(body, contentType, source.URL)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", source.Type)
	}
}

// download はSSRF検証済みクライアントでURLを取得し、本文とContent-Typeを返す。
func (r *Retriever) download(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	if err := r.ssrfGuard.ValidateURL(rawURL); err != nil {
		return nil, "", err
	}

	client := r.ssrfGuard.NewSafeClient(r.timeout, r.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if r.status != nil {
		r.status.RecordHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// parseFeed はgofeedでRSS/Atomをパースする。
func (r *Retriever) parseFeed(body []byte) ([]model.ParsedItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return convertFeedItems(feed.Items, r.text), nil
}

// convertFeedItems はgofeedの項目をmodel.ParsedItemに変換する。
func convertFeedItems(items []*gofeed.Item, text TextExtractor) []model.ParsedItem {
	parsed := make([]model.ParsedItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		p := model.ParsedItem{
			Title: strings.TrimSpace(item.Title),
			Link:  strings.TrimSpace(item.Link),
		}
		if p.Title == "" {
			p.Title = untitled
		}

		// descriptionを優先し、なければcontent、どちらもなければタイトル
		p.Content = text.Text(item.Description)
		if p.Content == "" {
			p.Content = text.Text(item.Content)
		}
		if p.Content == "" {
			p.Content = p.Title
		}

		if item.PublishedParsed != nil {
			p.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			p.PublishedAt = *item.UpdatedParsed
		}

		parsed = append(parsed, p)
	}
	return parsed
}

// parseBlog はブログページのHTMLから記事候補を取り出す。
// タイトルとリンクの両方がある要素のみを採用し、最大maxBlogItems件を返す。
func (r *Retriever) parseBlog(body []byte, contentType, pageURL string) ([]model.ParsedItem, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}

	return extractBlogItems(doc, base), nil
}

func extractBlogItems(doc *goquery.Document, base *url.URL) []model.ParsedItem {
	var items []model.ParsedItem

	doc.Find(blogItemSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := collapseSpace(sel.Find(blogTitleSelector).First().Text())
		href, ok := sel.Find("a[href]").First().Attr("href")
		href = strings.TrimSpace(href)
		if title == "" || !ok || href == "" {
			return true
		}

		link, err := resolveLink(base, href)
		if err != nil {
			return true
		}

		content := collapseSpace(sel.Find(blogContentSelector).First().Text())
		if content == "" {
			content = title
		}

		items = append(items, model.ParsedItem{Title: title, Link: link, Content: content})
		return len(items) < maxBlogItems
	})

	return items
}

// resolveLink は相対リンクをページURLを基準に絶対URLへ解決する。
func resolveLink(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
