package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/execdash/internal/model"
	"github.com/hitoshi/execdash/internal/security"
)

// memoryStore はURLをキーにソースを保持するテスト用Store。
type memoryStore struct {
	sources map[string]*model.Source
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sources: make(map[string]*model.Source)}
}

func (m *memoryStore) FindByURL(_ context.Context, url string) (*model.Source, error) {
	return m.sources[url], nil
}

func (m *memoryStore) Create(_ context.Context, s *model.Source) error {
	m.sources[s.URL] = s
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_DefaultSources(t *testing.T) {
	specs, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(specs) != 9 {
		t.Fatalf("len(specs) = %d, want 9", len(specs))
	}

	var rss, blog int
	for _, s := range specs {
		switch model.SourceType(s.Type) {
		case model.SourceTypeRSS:
			rss++
		case model.SourceTypeBlog:
			blog++
		}
	}
	if rss != 4 || blog != 5 {
		t.Errorf("rss/blog = %d/%d, want 4/5", rss, blog)
	}

	guard := security.NewSSRFGuard()
	for _, s := range specs {
		if err := guard.ValidateURL(s.URL); err != nil {
			t.Errorf("初期ソースのURLが検証に失敗した: %s: %v", s.URL, err)
		}
		if s.CategoryHint != "" && !model.IsValidCategory(s.CategoryHint) {
			t.Errorf("未知のカテゴリヒント: %q", s.CategoryHint)
		}
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := "sources:\n  - name: Custom\n    type: rss\n    url: https://example.com/feed\n    fetchInterval: 60\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}

	specs, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(specs) != 1 || specs[0].FetchInterval != 60 || specs[0].Enabled == nil || *specs[0].Enabled {
		t.Errorf("specs = %+v", specs)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"空", "sources: []\n", "no sources"},
		{"不正なYAML", "sources: [", "parse seed YAML"},
		{"name欠落", "sources:\n  - type: rss\n    url: https://a.example.com\n", "no name or url"},
		{"未知のtype", "sources:\n  - name: x\n    type: atom\n    url: https://a.example.com\n", "invalid type"},
		{"URL重複", "sources:\n  - name: a\n    type: rss\n    url: https://a.example.com\n  - name: b\n    type: blog\n    url: https://a.example.com\n", "duplicate url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	specs, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	store := newMemoryStore()
	guard := security.NewSSRFGuard()

	first, err := Run(context.Background(), store, guard, specs, discardLogger())
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if first.Created != 9 || first.Skipped != 0 {
		t.Errorf("first = %+v, want 9 created", first)
	}

	second, err := Run(context.Background(), store, guard, specs, discardLogger())
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if second.Created != 0 || second.Skipped != 9 {
		t.Errorf("2回目はすべてスキップされるべき: %+v", second)
	}
	if len(store.sources) != 9 {
		t.Errorf("len(store) = %d, want 9", len(store.sources))
	}
}

func TestRun_AppliesDefaults(t *testing.T) {
	store := newMemoryStore()
	specs := []SourceSpec{{Name: "Hugging Face Blog", Type: "blog", URL: "https://huggingface.co/blog", CategoryHint: "For Developers"}}

	if _, err := Run(context.Background(), store, security.NewSSRFGuard(), specs, discardLogger()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := store.sources["https://huggingface.co/blog"]
	if got == nil {
		t.Fatal("ソースが作成されていない")
	}
	if got.FetchInterval != model.DefaultFetchIntervalMinutes || !got.Enabled {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.FailureCount != 0 || got.LastFetchedAt != nil {
		t.Errorf("フェッチ状態が初期値でない: %+v", got)
	}
	if got.CategoryHint != "For Developers" {
		t.Errorf("CategoryHint = %q", got.CategoryHint)
	}
}

func TestRun_RejectsBlockedURL(t *testing.T) {
	specs := []SourceSpec{{Name: "local", Type: "rss", URL: "http://localhost/feed"}}

	_, err := Run(context.Background(), newMemoryStore(), security.NewSSRFGuard(), specs, discardLogger())
	if err == nil {
		t.Fatal("ローカルホストのURLはエラーになるべき")
	}
}
