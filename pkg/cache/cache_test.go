package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reqforge/reqforge/pkg/pypi"
	"github.com/reqforge/reqforge/pkg/store"
)

// clockStore is an in-memory Store that stamps writes with a test-controlled
// clock, so TTL boundaries can be crossed without sleeping.
type clockStore struct {
	mu      sync.Mutex
	entries map[string]clockEntry
	now     *time.Time
}

type clockEntry struct {
	data []byte
	at   time.Time
}

func (s *clockStore) Get(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return e.data, e.at, true, nil
}

func (s *clockStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = clockEntry{data: data, at: *s.now}
	return nil
}

func (s *clockStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *clockStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *clockStore) Count(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

func (s *clockStore) Close() error { return nil }

var _ store.Store = (*clockStore)(nil)

func newTestManager(ttls TTLs) (*Manager, *time.Time) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	nowPtr := &now
	m := New(&clockStore{entries: make(map[string]clockEntry), now: nowPtr}, ttls, nil)
	m.now = func() time.Time { return *nowPtr }
	return m, nowPtr
}

func TestPackageRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(TTLs{})

	pkg := &pypi.Package{Name: "requests", LatestVersion: "2.31.0"}
	m.PutPackage(ctx, "", pkg)

	// Lookup normalizes the requested name.
	got, ok := m.GetPackage(ctx, "Requests", "")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.Name != "requests" || got.LatestVersion != "2.31.0" {
		t.Errorf("got %+v", got)
	}

	if _, ok := m.GetPackage(ctx, "flask", ""); ok {
		t.Error("unexpected hit for uncached package")
	}
}

func TestIndexesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(TTLs{})

	m.PutPackage(ctx, "https://pypi.org", &pypi.Package{Name: "demo", LatestVersion: "1.0"})
	m.PutPackage(ctx, "https://mirror.example/simple", &pypi.Package{Name: "demo", LatestVersion: "0.9"})

	got, ok := m.GetPackage(ctx, "demo", "https://mirror.example/simple")
	if !ok || got.LatestVersion != "0.9" {
		t.Errorf("mirror entry = %+v, ok=%v", got, ok)
	}
	got, _ = m.GetPackage(ctx, "demo", "https://pypi.org")
	if got.LatestVersion != "1.0" {
		t.Errorf("canonical entry = %+v", got)
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(TTLs{})

	m.PutPackage(ctx, "", &pypi.Package{Name: "demo"})
	m.PutSearch(ctx, "web", 10, "", []pypi.SearchResult{{Name: "flask"}})
	m.PutIndexList(ctx, "", []string{"flask", "django"})

	// Within every TTL.
	*now = now.Add(30 * time.Minute)
	if _, ok := m.GetPackage(ctx, "demo", ""); !ok {
		t.Error("package expired too early")
	}
	if _, ok := m.GetSearch(ctx, "web", 10, ""); !ok {
		t.Error("search expired too early")
	}

	// Past the search TTL, within the package TTL.
	*now = now.Add(45 * time.Minute)
	if _, ok := m.GetSearch(ctx, "web", 10, ""); ok {
		t.Error("search should have expired after an hour")
	}
	if _, ok := m.GetPackage(ctx, "demo", ""); !ok {
		t.Error("package should still be fresh within six hours")
	}

	// Past the package TTL, within the index TTL.
	*now = now.Add(6 * time.Hour)
	if _, ok := m.GetPackage(ctx, "demo", ""); ok {
		t.Error("package should have expired after six hours")
	}
	if _, ok := m.GetIndexList(ctx, ""); !ok {
		t.Error("index list should still be fresh within twelve hours")
	}

	*now = now.Add(6 * time.Hour)
	if _, ok := m.GetIndexList(ctx, ""); ok {
		t.Error("index list should have expired after twelve hours")
	}
}

func TestResolutionSharesSearchTTL(t *testing.T) {
	ctx := context.Background()
	m, now := newTestManager(TTLs{Search: 10 * time.Minute})

	type result struct {
		Packages map[string]string `json:"packages"`
	}
	m.PutResolution(ctx, "abc123", result{Packages: map[string]string{"requests": "2.31.0"}})

	var got result
	if !m.GetResolution(ctx, "abc123", &got) {
		t.Fatal("expected a hit")
	}
	if got.Packages["requests"] != "2.31.0" {
		t.Errorf("got %+v", got)
	}

	*now = now.Add(11 * time.Minute)
	if m.GetResolution(ctx, "abc123", &got) {
		t.Error("resolution should expire with the search lifetime")
	}
}

func TestSearchKeyIncludesLimit(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(TTLs{})

	m.PutSearch(ctx, "web", 5, "", []pypi.SearchResult{{Name: "flask"}})
	if _, ok := m.GetSearch(ctx, "web", 10, ""); ok {
		t.Error("different limit should be a distinct key")
	}
	if results, ok := m.GetSearch(ctx, "WEB", 5, ""); !ok || len(results) != 1 {
		t.Errorf("query casing should not split the key: ok=%v results=%v", ok, results)
	}
}

func TestClearAndStats(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(TTLs{})

	m.PutPackage(ctx, "", &pypi.Package{Name: "a"})
	m.PutPackage(ctx, "", &pypi.Package{Name: "b"})
	m.PutSearch(ctx, "q", 10, "", nil)

	m.GetPackage(ctx, "a", "")    // hit
	m.GetPackage(ctx, "miss", "") // miss

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pkgStats := stats.Tiers[TierPackage]
	if pkgStats.Hits != 1 || pkgStats.Misses != 1 || pkgStats.Entries != 2 {
		t.Errorf("package tier stats = %+v", pkgStats)
	}
	if pkgStats.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", pkgStats.HitRate)
	}
	if stats.Entries != 3 {
		t.Errorf("total entries = %d, want 3", stats.Entries)
	}

	n, err := m.ClearTier(ctx, TierPackage)
	if err != nil || n != 2 {
		t.Fatalf("ClearTier = (%d, %v)", n, err)
	}
	if _, ok := m.GetSearch(ctx, "q", 10, ""); !ok {
		t.Error("clearing one tier must not touch another")
	}

	if _, err := m.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	stats, _ = m.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("entries after ClearAll = %d", stats.Entries)
	}
}
