package fetch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/execdash/internal/model"
)

// mockSourceFetcher はFetchSource呼び出しを記録するSourceFetcher。
type mockSourceFetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	failIDs  map[string]bool
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func newMockSourceFetcher() *mockSourceFetcher {
	return &mockSourceFetcher{calls: map[string]int{}, failIDs: map[string]bool{}}
}

func (m *mockSourceFetcher) FetchSource(_ context.Context, id string) (*FetchResult, error) {
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.calls[id]++
	fail := m.failIDs[id]
	m.mu.Unlock()

	if fail {
		return nil, errors.New("database unavailable")
	}
	return &FetchResult{SourceID: id, SourceName: "name-" + id, Fetched: 1, Processed: 1, Errors: []string{}}, nil
}

func sourceAt(id string, last *time.Time, enabled bool) *model.Source {
	s := newRSSSource(id, "https://example.com/"+id)
	s.LastFetchedAt = last
	s.Enabled = enabled
	return s
}

func TestScheduler_FetchAllSources_DueGate(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	threeHours := now.Add(-3 * time.Hour)
	fiveHours := now.Add(-5 * time.Hour)

	repo := newMockSourceRepo(
		sourceAt("fresh", &threeHours, true),
		sourceAt("stale", &fiveHours, true),
		sourceAt("never", nil, true),
		sourceAt("disabled", nil, false),
	)
	fetcher := newMockSourceFetcher()

	s := NewScheduler(repo, fetcher, newTestLogger(&buf), 1, 4*time.Hour)
	s.now = func() time.Time { return now }

	results, err := s.FetchAllSources(context.Background())
	if err != nil {
		t.Fatalf("FetchAllSources がエラーを返した: %v", err)
	}

	if !repo.listDueBefore.Equal(now.Add(-4 * time.Hour)) {
		t.Errorf("ListDue の基準時刻 = %v", repo.listDueBefore)
	}
	if len(results) != 2 || results[0].SourceID != "stale" || results[1].SourceID != "never" {
		t.Errorf("結果は選定順の stale, never であるべき: %+v", results)
	}
	if fetcher.calls["fresh"] != 0 || fetcher.calls["disabled"] != 0 {
		t.Errorf("対象外のソースが取得された: %v", fetcher.calls)
	}
}

func TestScheduler_FetchAllSources_SingleNeverFetchedSourceOnce(t *testing.T) {
	var buf bytes.Buffer
	repo := newMockSourceRepo(sourceAt("only", nil, true))
	fetcher := newMockSourceFetcher()

	results, err := NewScheduler(repo, fetcher, newTestLogger(&buf), 1, 0).FetchAllSources(context.Background())
	if err != nil {
		t.Fatalf("FetchAllSources がエラーを返した: %v", err)
	}
	if len(results) != 1 || fetcher.calls["only"] != 1 {
		t.Errorf("1回だけ取得されるべき: results=%d calls=%d", len(results), fetcher.calls["only"])
	}
}

func TestScheduler_FetchAllSources_FailureDoesNotAbortBatch(t *testing.T) {
	var buf bytes.Buffer
	repo := newMockSourceRepo(sourceAt("a", nil, true), sourceAt("b", nil, true), sourceAt("c", nil, true))
	fetcher := newMockSourceFetcher()
	fetcher.failIDs["b"] = true

	results, err := NewScheduler(repo, fetcher, newTestLogger(&buf), 1, 0).FetchAllSources(context.Background())
	if err != nil {
		t.Fatalf("FetchAllSources がエラーを返した: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("結果数 = %d, want 3", len(results))
	}
	if results[1].SourceID != "b" || len(results[1].Errors) != 1 || !strings.Contains(results[1].Errors[0], "database unavailable") {
		t.Errorf("失敗したソースの結果 = %+v", results[1])
	}
	if results[2].Processed != 1 {
		t.Error("後続のソースも処理されるべき")
	}
}

func TestScheduler_FetchAllSources_BoundedConcurrencyKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	var list []*model.Source
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		list = append(list, sourceAt(id, nil, true))
	}
	repo := newMockSourceRepo(list...)
	fetcher := newMockSourceFetcher()
	fetcher.delay = 20 * time.Millisecond

	results, err := NewScheduler(repo, fetcher, newTestLogger(&buf), 2, 0).FetchAllSources(context.Background())
	if err != nil {
		t.Fatalf("FetchAllSources がエラーを返した: %v", err)
	}
	if peak := fetcher.peak.Load(); peak > 2 {
		t.Errorf("同時実行数 %d が上限2を超えた", peak)
	}
	for i, r := range results {
		if r.SourceID != list[i].ID {
			t.Errorf("results[%d] = %s, want %s", i, r.SourceID, list[i].ID)
		}
	}
}

func TestScheduler_FetchAllSources_ListError(t *testing.T) {
	var buf bytes.Buffer
	repo := newMockSourceRepo()
	repo.listDueErr = errors.New("boom")

	if _, err := NewScheduler(repo, newMockSourceFetcher(), newTestLogger(&buf), 1, 0).FetchAllSources(context.Background()); err == nil {
		t.Error("ListDue のエラーは返されるべき")
	}
}

func TestScheduler_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	repo := newMockSourceRepo(sourceAt("a", nil, true))
	fetcher := newMockSourceFetcher()
	s := NewScheduler(repo, fetcher, newTestLogger(&buf), 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		fetcher.mu.Lock()
		n := fetcher.calls["a"]
		fetcher.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("起動直後の取得サイクルが実行されなかった")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後にスケジューラが停止しなかった")
	}
	if !strings.Contains(buf.String(), "取得スケジューラを停止しました") {
		t.Error("停止ログが出力されていない")
	}
}
