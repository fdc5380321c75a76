package pypi

import (
	"regexp"
	"strings"
	"time"
)

// tagRE matches the first platform/ABI/build tag in the remainder of a
// filename, e.g. "-py3-none-any" or "_cp39_win". Everything from the tag on
// is discarded when recovering a version.
var tagRE = regexp.MustCompile(`[-_](py\d|cp\d|pp\d|win|linux|macos|any)`)

// archiveExtensions in match order; ".tar.gz" must precede any plain ".gz"
// style handling.
var archiveExtensions = []string{".tar.gz", ".whl", ".zip", ".egg"}

// VersionFromFilename recovers a version string from a distribution
// filename, given the package name the file belongs to. It strips the
// archive extension, matches the package-name prefix (trying both the raw
// name and the hyphen/underscore/dot collapsed form), trims trailing
// platform tags, and validates the remainder as a version. The second return
// is false when no valid version can be recovered; such files are simply
// skipped by the normalizer.
func VersionFromFilename(filename, pkg string) (string, bool) {
	base := filename
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(base, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}

	lower := strings.ToLower(base)
	collapsed := nameSepRE.ReplaceAllString(strings.ToLower(pkg), "_")
	prefixes := []string{collapsed, strings.ToLower(pkg)}

	for _, prefix := range prefixes {
		for _, sep := range []string{"_", "-"} {
			full := prefix + sep
			if !strings.HasPrefix(lower, full) {
				continue
			}
			rest := base[len(full):]
			if loc := tagRE.FindStringIndex(rest); loc != nil {
				rest = rest[:loc[0]]
			}
			if _, err := ParseVersion(rest); err == nil {
				return rest, true
			}
		}
	}
	return "", false
}

// TypeFromFilename infers the distribution type from the file extension
// alone.
func TypeFromFilename(filename string) FileType {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		return FileWheel
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".zip"):
		return FileSdist
	case strings.HasSuffix(filename, ".egg"):
		return FileEgg
	default:
		return FileUnknown
	}
}

var optionalMarkerRE = regexp.MustCompile(`extra|dev|test`)

// ParseRequirement parses one requires_dist entry into a Dependency. The
// environment-marker suffix after the first ';' is inspected only to flag
// extras/dev/test dependencies as optional. Returns false for entries with
// no recoverable name.
func ParseRequirement(req string) (Dependency, bool) {
	main, marker, _ := strings.Cut(req, ";")
	main = strings.TrimSpace(main)
	if main == "" {
		return Dependency{}, false
	}

	var dep Dependency
	dep.Optional = optionalMarkerRE.MatchString(strings.ToLower(marker))

	// Split at the earliest operator occurrence. Two-character operators come
	// first in the scan list, so ">=" at the same offset beats ">".
	name := main
	cut := -1
	for _, op := range operators {
		if idx := strings.Index(main, op); idx >= 0 && (cut < 0 || idx < cut) {
			cut = idx
			name = main[:idx]
			dep.Constraint = strings.TrimSpace(main[idx:])
		}
	}
	// Parenthesized constraints ("requests (>=2.0)") and extras both decorate
	// the bare name; the name is everything before the first bracket.
	if idx := strings.IndexAny(name, "[("); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Dependency{}, false
	}
	dep.Name = NormalizeName(name)
	dep.Constraint = strings.TrimSuffix(strings.TrimSpace(dep.Constraint), ")")
	return dep, true
}

// parseUploadTime handles the two timestamp shapes the index emits.
func parseUploadTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// packageFromFiles builds a canonical record for a simple-index source: the
// files are grouped by the version recovered from their filenames, and
// "latest" is the maximum by version ordering. Returns nil when no file
// yields a valid version.
func packageFromFiles(name string, files []File, now time.Time) *Package {
	byVersion := make(map[string][]File)
	var versions []string
	for _, f := range files {
		v, ok := VersionFromFilename(f.Filename, name)
		if !ok {
			continue
		}
		if _, seen := byVersion[v]; !seen {
			versions = append(versions, v)
		}
		byVersion[v] = append(byVersion[v], f)
	}
	if len(versions) == 0 {
		return nil
	}

	pkg := &Package{
		Name:          NormalizeName(name),
		LatestVersion: MaxVersion(versions),
		UpdatedAt:     now,
	}
	for _, v := range versions {
		release := Release{Version: v, Files: byVersion[v]}
		for _, f := range byVersion[v] {
			if f.UploadedAt != nil && (release.ReleasedAt == nil || f.UploadedAt.Before(*release.ReleasedAt)) {
				release.ReleasedAt = f.UploadedAt
			}
		}
		pkg.Releases = append(pkg.Releases, release)
	}
	return pkg
}
