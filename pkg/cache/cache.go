// Package cache layers TTL policy over a [store.Store]: each data tier has
// its own namespace and lifetime, and every lookup is classified as a hit or
// a miss for the stats endpoint. Cache failures never fail a request; they
// degrade to misses.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/reqforge/reqforge/pkg/pypi"
	"github.com/reqforge/reqforge/pkg/store"
)

// Tier identifies one cached data kind. Each tier has its own key namespace
// and TTL.
type Tier string

const (
	TierPackage    Tier = "package"
	TierSearch     Tier = "search"
	TierIndexList  Tier = "index"
	TierResolution Tier = "resolution"
)

// Tiers lists every cache tier, in stats display order.
var Tiers = []Tier{TierPackage, TierSearch, TierIndexList, TierResolution}

// Default lifetimes per tier. Package metadata changes rarely; search results
// and resolutions share a shorter lifetime since both depend on the moving
// "latest version" of many packages; the full index listing is huge and
// nearly static.
const (
	DefaultPackageTTL   = 6 * time.Hour
	DefaultSearchTTL    = time.Hour
	DefaultIndexListTTL = 12 * time.Hour
)

// TTLs configures per-tier lifetimes. Zero fields fall back to defaults; the
// resolution tier always shares the search lifetime.
type TTLs struct {
	Package   time.Duration
	Search    time.Duration
	IndexList time.Duration
}

// Manager is the typed cache facade over a backing store.
type Manager struct {
	store store.Store
	ttls  TTLs
	log   *log.Logger
	stats counters

	now func() time.Time // test hook
}

// New creates a Manager over the given store.
func New(s store.Store, ttls TTLs, logger *log.Logger) *Manager {
	if ttls.Package <= 0 {
		ttls.Package = DefaultPackageTTL
	}
	if ttls.Search <= 0 {
		ttls.Search = DefaultSearchTTL
	}
	if ttls.IndexList <= 0 {
		ttls.IndexList = DefaultIndexListTTL
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{store: s, ttls: ttls, log: logger, now: time.Now}
}

func (m *Manager) ttl(tier Tier) time.Duration {
	switch tier {
	case TierPackage:
		return m.ttls.Package
	case TierIndexList:
		return m.ttls.IndexList
	default:
		// Search and resolution tiers share a lifetime.
		return m.ttls.Search
	}
}

// indexTag reduces an index URL to a stable key component: the host, or
// "default" for the empty URL.
func indexTag(indexURL string) string {
	if indexURL == "" {
		return "default"
	}
	if u, err := url.Parse(indexURL); err == nil && u.Host != "" {
		return u.Host
	}
	return strings.ReplaceAll(indexURL, ":", "_")
}

// Key builds a namespaced cache key from a tier and its components.
func Key(tier Tier, parts ...string) string {
	return string(tier) + ":" + strings.Join(parts, ":")
}

// get is the common lookup path: fetch, expire by write time, decode. The
// bool reports a usable hit; every other outcome is a miss.
func (m *Manager) get(ctx context.Context, tier Tier, key string, v any) bool {
	data, writtenAt, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.log.Warn("cache read failed", "key", key, "err", err)
		m.stats.miss(tier)
		return false
	}
	if !ok {
		m.stats.miss(tier)
		return false
	}
	if m.now().Sub(writtenAt) > m.ttl(tier) {
		_ = m.store.Delete(ctx, key)
		m.stats.miss(tier)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		m.log.Warn("cache entry corrupt, dropping", "key", key, "err", err)
		_ = m.store.Delete(ctx, key)
		m.stats.miss(tier)
		return false
	}
	m.stats.hit(tier)
	return true
}

// put stores v, logging rather than propagating failures.
func (m *Manager) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	if err := m.store.Put(ctx, key, data); err != nil {
		m.log.Warn("cache write failed", "key", key, "err", err)
	}
}

// GetPackage returns the cached metadata for a normalized package name.
func (m *Manager) GetPackage(ctx context.Context, name, indexURL string) (*pypi.Package, bool) {
	var pkg pypi.Package
	if !m.get(ctx, TierPackage, Key(TierPackage, indexTag(indexURL), pypi.NormalizeName(name)), &pkg) {
		return nil, false
	}
	return &pkg, true
}

// PutPackage caches package metadata under its normalized name.
func (m *Manager) PutPackage(ctx context.Context, indexURL string, pkg *pypi.Package) {
	m.put(ctx, Key(TierPackage, indexTag(indexURL), pkg.Name), pkg)
}

// DropPackage evicts one package entry, forcing the next lookup to refetch.
func (m *Manager) DropPackage(ctx context.Context, name, indexURL string) {
	_ = m.store.Delete(ctx, Key(TierPackage, indexTag(indexURL), pypi.NormalizeName(name)))
}

// GetSearch returns cached search results for a query.
func (m *Manager) GetSearch(ctx context.Context, query string, limit int, indexURL string) ([]pypi.SearchResult, bool) {
	var results []pypi.SearchResult
	key := Key(TierSearch, indexTag(indexURL), strings.ToLower(query), fmt.Sprint(limit))
	if !m.get(ctx, TierSearch, key, &results) {
		return nil, false
	}
	return results, true
}

// PutSearch caches search results for a query.
func (m *Manager) PutSearch(ctx context.Context, query string, limit int, indexURL string, results []pypi.SearchResult) {
	m.put(ctx, Key(TierSearch, indexTag(indexURL), strings.ToLower(query), fmt.Sprint(limit)), results)
}

// GetIndexList returns the cached full package listing of an index.
func (m *Manager) GetIndexList(ctx context.Context, indexURL string) ([]string, bool) {
	var names []string
	if !m.get(ctx, TierIndexList, Key(TierIndexList, indexTag(indexURL)), &names) {
		return nil, false
	}
	return names, true
}

// PutIndexList caches the full package listing of an index.
func (m *Manager) PutIndexList(ctx context.Context, indexURL string, names []string) {
	m.put(ctx, Key(TierIndexList, indexTag(indexURL)), names)
}

// GetResolution loads a cached resolution result into v. The key is the
// request fingerprint computed by the resolver.
func (m *Manager) GetResolution(ctx context.Context, fingerprint string, v any) bool {
	return m.get(ctx, TierResolution, Key(TierResolution, fingerprint), v)
}

// PutResolution caches a resolution result under its request fingerprint.
func (m *Manager) PutResolution(ctx context.Context, fingerprint string, v any) {
	m.put(ctx, Key(TierResolution, fingerprint), v)
}

// ClearTier removes every entry of one tier, returning how many were evicted.
func (m *Manager) ClearTier(ctx context.Context, tier Tier) (int, error) {
	return m.store.DeletePrefix(ctx, string(tier)+":")
}

// ClearAll removes every cached entry across all tiers.
func (m *Manager) ClearAll(ctx context.Context) (int, error) {
	var total int
	for _, tier := range Tiers {
		n, err := m.ClearTier(ctx, tier)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
