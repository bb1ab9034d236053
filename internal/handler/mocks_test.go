package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/execdash/internal/model"
	"github.com/hitoshi/execdash/internal/report"
	"github.com/hitoshi/execdash/internal/worker/fetch"
)

// --- モック定義 ---

// mockSourceStore はSourceStoreのモック実装。
type mockSourceStore struct {
	listWithCountsFn func(ctx context.Context) ([]model.SourceWithCount, error)
	findByIDFn       func(ctx context.Context, id string) (*model.Source, error)
	findByURLFn      func(ctx context.Context, url string) (*model.Source, error)
	createFn         func(ctx context.Context, s *model.Source) error
	updateFn         func(ctx context.Context, s *model.Source) error
	deleteFn         func(ctx context.Context, id string) error
}

func (m *mockSourceStore) ListWithCounts(ctx context.Context) ([]model.SourceWithCount, error) {
	if m.listWithCountsFn != nil {
		return m.listWithCountsFn(ctx)
	}
	return nil, nil
}

func (m *mockSourceStore) FindByID(ctx context.Context, id string) (*model.Source, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSourceStore) FindByURL(ctx context.Context, url string) (*model.Source, error) {
	if m.findByURLFn != nil {
		return m.findByURLFn(ctx, url)
	}
	return nil, nil
}

func (m *mockSourceStore) Create(ctx context.Context, s *model.Source) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSourceStore) Update(ctx context.Context, s *model.Source) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, s)
	}
	return nil
}

func (m *mockSourceStore) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockURLValidator はURLValidatorのモック実装。
type mockURLValidator struct {
	validateFn func(rawURL string) error
}

func (m *mockURLValidator) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

// mockFetcher はSingleSourceFetcherとDueSourcesFetcherのモック実装。
type mockFetcher struct {
	fetchSourceFn     func(ctx context.Context, id string) (*fetch.FetchResult, error)
	fetchAllSourcesFn func(ctx context.Context) ([]*fetch.FetchResult, error)
}

func (m *mockFetcher) FetchSource(ctx context.Context, id string) (*fetch.FetchResult, error) {
	if m.fetchSourceFn != nil {
		return m.fetchSourceFn(ctx, id)
	}
	return &fetch.FetchResult{SourceID: id, Errors: []string{}}, nil
}

func (m *mockFetcher) FetchAllSources(ctx context.Context) ([]*fetch.FetchResult, error) {
	if m.fetchAllSourcesFn != nil {
		return m.fetchAllSourcesFn(ctx)
	}
	return nil, nil
}

// mockReportStore はReportStoreのモック実装。
type mockReportStore struct {
	findByIDFn func(ctx context.Context, id string) (*model.ReportWithArticles, error)
	listFn     func(ctx context.Context, filter model.ReportFilter) ([]*model.Report, int, error)
	publishFn  func(ctx context.Context, id string, at time.Time) error
}

func (m *mockReportStore) FindByID(ctx context.Context, id string) (*model.ReportWithArticles, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockReportStore) List(ctx context.Context, filter model.ReportFilter) ([]*model.Report, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockReportStore) Publish(ctx context.Context, id string, at time.Time) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, id, at)
	}
	return nil
}

// mockReportGenerator はWeeklyReportGeneratorのモック実装。
type mockReportGenerator struct {
	generateFn func(ctx context.Context, week, year *int) (*report.GenerateResult, error)
}

func (m *mockReportGenerator) GenerateWeeklyReport(ctx context.Context, week, year *int) (*report.GenerateResult, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, week, year)
	}
	return &report.GenerateResult{}, nil
}

// mockRenderer はMarkdownRendererのモック実装。
type mockRenderer struct {
	renderFn func(markdown string) (string, error)
}

func (m *mockRenderer) Render(markdown string) (string, error) {
	if m.renderFn != nil {
		return m.renderFn(markdown)
	}
	return "<p>" + markdown + "</p>", nil
}

// mockArticleStore はArticleStoreのモック実装。
type mockArticleStore struct {
	listFn func(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleWithSource, int, error)
}

func (m *mockArticleStore) List(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleWithSource, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.err
}

// --- テストヘルパー ---

const (
	testAdminKey = "test-admin-key"
	testSourceID = "8d3e5a4c-2f1b-4c7e-9a6d-1b2c3d4e5f60"
	testReportID = "0f6c1e2d-3a4b-4c5d-8e9f-a0b1c2d3e4f5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// parseDataResponse はレスポンスボディの data をvにパースするヘルパー。
func parseDataResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	body := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if err := json.Unmarshal(body.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v\nraw: %s", err, body.Data)
	}
}

func intPtr(v int) *int {
	return &v
}

// decodeBody はレスポンスボディ全体をvにパースするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
