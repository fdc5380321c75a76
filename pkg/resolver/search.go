package resolver

import (
	"context"
	"strings"

	"github.com/reqforge/reqforge/pkg/pypi"
)

// DefaultSearchLimit caps result counts when the caller does not specify one.
const DefaultSearchLimit = 20

// Search finds packages matching a query. The default index exposes no
// search endpoint, so candidates come from an exact-name probe, common
// naming patterns, and substring matches against a curated list of widely
// used packages; each candidate's metadata is then fetched (cache-through)
// to populate the result. Custom indexes are searched through their cached
// package listing instead. Results are cached per (query, limit, index).
func (s *Service) Search(ctx context.Context, query string, limit int, indexURL string) ([]pypi.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []pypi.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if cached, ok := s.cache.GetSearch(ctx, query, limit, indexURL); ok {
		return cached, nil
	}

	var candidates []string
	if indexURL != "" && !strings.Contains(indexURL, "pypi.org") {
		names, err := s.ListIndex(ctx, indexURL)
		if err != nil {
			return nil, err
		}
		candidates = listingCandidates(query, names, limit)
	} else {
		candidates = searchCandidates(query, limit)
	}

	results := make([]pypi.SearchResult, 0, limit)
	for _, name := range candidates {
		if len(results) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkg, err := s.PackageDetail(ctx, name, indexURL)
		if err != nil {
			// Unknown candidate names are expected; skip quietly.
			continue
		}
		results = append(results, pypi.SearchResult{
			Name:     pkg.Name,
			Summary:  pkg.Summary,
			Version:  pkg.LatestVersion,
			Author:   pkg.Author,
			HomePage: pkg.HomePage,
		})
	}

	s.cache.PutSearch(ctx, query, limit, indexURL, results)
	return results, nil
}

// searchCandidates orders candidate names: an exact match on the query
// first, then common naming variants, then curated names containing the
// query, then curated names the query contains (catching queries like
// "python-dateutil-tz").
func searchCandidates(query string, limit int) []string {
	q := pypi.NormalizeName(query)
	seen := map[string]bool{}
	var candidates []string
	for _, name := range []string{q, "python-" + q, "py" + q} {
		if len(candidates) >= limit {
			break
		}
		if !seen[name] {
			seen[name] = true
			candidates = append(candidates, name)
		}
	}

	for _, name := range popularPackages {
		if len(candidates) >= limit {
			break
		}
		if seen[name] {
			continue
		}
		if strings.Contains(name, q) || strings.Contains(q, name) {
			seen[name] = true
			candidates = append(candidates, name)
		}
	}
	return candidates
}

// listingCandidates filters a custom index's package listing by substring
// match on the normalized query.
func listingCandidates(query string, names []string, limit int) []string {
	q := pypi.NormalizeName(query)
	out := make([]string, 0, limit)
	for _, name := range names {
		if len(out) >= limit {
			break
		}
		if strings.Contains(pypi.NormalizeName(name), q) {
			out = append(out, name)
		}
	}
	return out
}

// ListIndex returns the full package-name listing of an index, cached with
// the long index-listing lifetime.
func (s *Service) ListIndex(ctx context.Context, indexURL string) ([]string, error) {
	if names, ok := s.cache.GetIndexList(ctx, indexURL); ok {
		return names, nil
	}
	names, err := s.client.ListIndex(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	s.cache.PutIndexList(ctx, indexURL, names)
	return names, nil
}

// ValidateIndex reports whether a URL serves a usable package index.
func (s *Service) ValidateIndex(ctx context.Context, indexURL string) bool {
	if _, ok := s.cache.GetIndexList(ctx, indexURL); ok {
		return true
	}
	return s.client.ValidateIndex(ctx, indexURL)
}
