package fetch

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// mockSourceRepo はSourceRepositoryのテスト用インメモリ実装。
type mockSourceRepo struct {
	mu            sync.Mutex
	sources       map[string]*model.Source
	order         []string
	listDueBefore time.Time
	listDueErr    error
	updateErr     error
	stateUpdates  int
}

func newMockSourceRepo(sources ...*model.Source) *mockSourceRepo {
	m := &mockSourceRepo{sources: map[string]*model.Source{}}
	for _, s := range sources {
		m.sources[s.ID] = s
		m.order = append(m.order, s.ID)
	}
	return m
}

func (m *mockSourceRepo) FindByID(_ context.Context, id string) (*model.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSourceRepo) FindByURL(_ context.Context, url string) (*model.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.URL == url {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockSourceRepo) ListWithCounts(_ context.Context) ([]model.SourceWithCount, error) {
	return nil, nil
}

func (m *mockSourceRepo) ListDue(_ context.Context, before time.Time) ([]*model.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listDueBefore = before
	if m.listDueErr != nil {
		return nil, m.listDueErr
	}
	var due []*model.Source
	for _, id := range m.order {
		s := m.sources[id]
		if s.Enabled && (s.LastFetchedAt == nil || s.LastFetchedAt.Before(before)) {
			cp := *s
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (m *mockSourceRepo) Create(_ context.Context, s *model.Source) error { return nil }
func (m *mockSourceRepo) Update(_ context.Context, s *model.Source) error { return nil }
func (m *mockSourceRepo) Delete(_ context.Context, id string) error { return nil }

func (m *mockSourceRepo) UpdateFetchState(_ context.Context, s *model.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.stateUpdates++
	cp := *s
	m.sources[s.ID] = &cp
	return nil
}

func (m *mockSourceRepo) get(id string) *model.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources[id]
}

// mockArticleRepo はArticleRepositoryのテスト用インメモリ実装。
// source_urlの一意制約を再現する。
type mockArticleRepo struct {
	mu        sync.Mutex
	byURL     map[string]*model.Article
	createErr func(a *model.Article) error
}

func newMockArticleRepo() *mockArticleRepo {
	return &mockArticleRepo{byURL: map[string]*model.Article{}}
}

func (m *mockArticleRepo) ExistsBySourceURL(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byURL[url]
	return ok, nil
}

func (m *mockArticleRepo) Create(_ context.Context, a *model.Article) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		if err := m.createErr(a); err != nil {
			return false, err
		}
	}
	if _, ok := m.byURL[a.SourceURL]; ok {
		return false, nil
	}
	cp := *a
	m.byURL[a.SourceURL] = &cp
	return true, nil
}

func (m *mockArticleRepo) List(_ context.Context, _ model.ArticleFilter) ([]model.ArticleWithSource, int, error) {
	return nil, 0, nil
}

func (m *mockArticleRepo) ListForWeek(_ context.Context, _, _ time.Time, _, _ int) ([]*model.Article, error) {
	return nil, nil
}

func (m *mockArticleRepo) urls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.byURL))
	for u := range m.byURL {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// mockSSRFGuard は検証を行わないSSRFValidator。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// mockRetriever は固定の記事リストを返すItemRetriever。
type mockRetriever struct {
	items []model.ParsedItem
	err   error
	calls int
}

func (m *mockRetriever) Retrieve(_ context.Context, _ *model.Source) ([]model.ParsedItem, error) {
	m.calls++
	return m.items, m.err
}

// fakeClassifier はClassify呼び出しを関数に委譲するArticleClassifier。
type fakeClassifier struct {
	classifyFn func(title, content, hint string) (*model.Classification, error)
	mu         sync.Mutex
	titles     []string
}

func (f *fakeClassifier) Classify(_ context.Context, title, content, hint string) (*model.Classification, error) {
	f.mu.Lock()
	f.titles = append(f.titles, title)
	f.mu.Unlock()
	if f.classifyFn != nil {
		return f.classifyFn(title, content, hint)
	}
	return &model.Classification{
		Category:       model.CategoryForDevelopers,
		Summary:        "summary of " + title,
		RelevanceScore: 70,
		ImpactLevel:    model.ImpactMedium,
	}, nil
}

// plainText はタグを除去せずそのまま返すTextExtractor。
type plainText struct{}

func (plainText) Text(s string) string { return s }

func newRSSSource(id, url string) *model.Source {
	return &model.Source{
		ID:            id,
		Name:          "Source " + id,
		Type:          model.SourceTypeRSS,
		URL:           url,
		Enabled:       true,
		FetchInterval: model.DefaultFetchIntervalMinutes,
	}
}
