package pypi

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// FileType classifies a distribution file by its extension.
type FileType string

// Known distribution types. Anything unrecognized is FileUnknown.
const (
	FileWheel   FileType = "bdist_wheel"
	FileSdist   FileType = "sdist"
	FileEgg     FileType = "bdist_egg"
	FileUnknown FileType = "unknown"
)

// File is a single downloadable artifact attached to a release.
type File struct {
	Filename   string            `json:"filename"`
	URL        string            `json:"url"`
	Size       int64             `json:"size,omitempty"`
	Type       FileType          `json:"packagetype"`
	UploadedAt *time.Time        `json:"upload_time,omitempty"`
	Digests    map[string]string `json:"digests,omitempty"` // md5, sha256, blake2b_256 where available
}

// SHA256 returns the file's sha256 digest, or "" if the index published none.
func (f File) SHA256() string { return f.Digests["sha256"] }

// Release is one published version of a package.
type Release struct {
	Version      string     `json:"version"`
	ReleasedAt   *time.Time `json:"release_date,omitempty"`
	Yanked       bool       `json:"yanked,omitempty"`
	YankedReason string     `json:"yanked_reason,omitempty"`
	Files        []File     `json:"files,omitempty"`
	SHA256       string     `json:"sha256_hash,omitempty"` // cached content hash, filled lazily
}

// Dependency is one entry from a package's requires_dist, reduced to the
// parts resolution needs.
type Dependency struct {
	Name       string `json:"name"`
	Constraint string `json:"version_spec,omitempty"` // operator + remainder, e.g. ">=2.25.0,<3"
	Optional   bool   `json:"optional,omitempty"`     // guarded by an extra/dev/test marker
}

// Package is the canonical record for one package, whichever protocol it was
// fetched through. Name is the PEP 503 normalized identity and the unique
// cache key. Simple-index sources cannot populate the descriptive metadata
// fields; those stay empty rather than erroring.
type Package struct {
	Name            string       `json:"name"`
	Summary         string       `json:"summary,omitempty"`
	Description     string       `json:"description,omitempty"`
	Author          string       `json:"author,omitempty"`
	AuthorEmail     string       `json:"author_email,omitempty"`
	Maintainer      string       `json:"maintainer,omitempty"`
	MaintainerEmail string       `json:"maintainer_email,omitempty"`
	License         string       `json:"license,omitempty"`
	HomePage        string       `json:"homepage,omitempty"`
	RequiresPython  string       `json:"requires_python,omitempty"`
	Keywords        []string     `json:"keywords,omitempty"`
	Classifiers     []string     `json:"classifiers,omitempty"`
	LatestVersion   string       `json:"latest_version"`
	Releases        []Release    `json:"releases,omitempty"`
	Dependencies    []Dependency `json:"dependencies,omitempty"` // direct deps of the latest release
	UpdatedAt       time.Time    `json:"last_updated"`
}

// Release returns the release with the given version string, if present.
func (p *Package) Release(version string) (*Release, bool) {
	for i := range p.Releases {
		if p.Releases[i].Version == version {
			return &p.Releases[i], true
		}
	}
	return nil, false
}

// SortedReleases returns the package's releases ordered newest first.
// Unparsable versions sort last in their original order. Yanked releases are
// skipped unless includeYanked is set.
func (p *Package) SortedReleases(includeYanked bool) []Release {
	out := make([]Release, 0, len(p.Releases))
	for _, r := range p.Releases {
		if r.Yanked && !includeYanked {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, erri := ParseVersion(out[i].Version)
		vj, errj := ParseVersion(out[j].Version)
		if erri != nil || errj != nil {
			return errj != nil && erri == nil
		}
		return vi.Compare(vj) > 0
	})
	return out
}

// SearchResult is one entry returned by package search.
type SearchResult struct {
	Name     string `json:"name"`
	Summary  string `json:"summary,omitempty"`
	Version  string `json:"version"`
	Author   string `json:"author,omitempty"`
	HomePage string `json:"homepage,omitempty"`
}

var nameSepRE = regexp.MustCompile(`[-_.]+`)

// NormalizeName converts a package name to its canonical PEP 503 form:
// lowercase with runs of hyphens, underscores, and dots collapsed to a single
// hyphen. The normalized form is the package's identity everywhere in this
// module (cache keys, dependency matching, tree nodes).
func NormalizeName(name string) string {
	return nameSepRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
