package pypi

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed release version: dotted numeric segments with optional
// epoch, pre-release, post-release, and dev qualifiers. The ordering rule
// follows conventional Python packaging semantics: at an equal numeric
// prefix, dev < pre-release (a < b < rc) < final < post.
type Version struct {
	epoch   int
	release []int
	pre     int // phase rank: 0=a, 1=b, 2=rc; -1 when absent
	preNum  int
	post    int // -1 when absent
	dev     int // -1 when absent
	raw     string
}

var versionRE = regexp.MustCompile(
	`^(?:(\d+)!)?` + // epoch
		`(\d+(?:\.\d+)*)` + // release segments
		`(?:[._-]?(a|alpha|b|beta|c|rc|pre|preview)\.?(\d*))?` + // pre-release
		`(?:[._-]?(post|rev|r)\.?(\d*))?` + // post-release
		`(?:[._-]?(dev)\.?(\d*))?` + // dev release
		`$`)

var prePhases = map[string]int{
	"a": 0, "alpha": 0,
	"b": 1, "beta": 1,
	"c": 2, "rc": 2, "pre": 2, "preview": 2,
}

// ParseVersion parses a version string. Leading "v" and surrounding
// whitespace are tolerated; anything the grammar cannot express (local
// version labels, wildcard suffixes) is an error.
func ParseVersion(s string) (Version, error) {
	raw := s
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}

	v := Version{pre: -1, post: -1, dev: -1, raw: raw}
	if m[1] != "" {
		v.epoch, _ = strconv.Atoi(m[1])
	}
	for _, seg := range strings.Split(m[2], ".") {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q", raw)
		}
		v.release = append(v.release, n)
	}
	if m[3] != "" {
		v.pre = prePhases[m[3]]
		v.preNum = atoiDefault(m[4], 0)
	}
	if m[5] != "" {
		v.post = atoiDefault(m[6], 0)
	}
	if m[7] != "" {
		v.dev = atoiDefault(m[8], 0)
	}
	return v, nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// String returns the original version string.
func (v Version) String() string { return v.raw }

// Segments returns a copy of the numeric release segments.
func (v Version) Segments() []int {
	out := make([]int, len(v.release))
	copy(out, v.release)
	return out
}

// Compare returns -1, 0, or +1 as v sorts before, equal to, or after o.
func (v Version) Compare(o Version) int {
	if v.epoch != o.epoch {
		return cmpInt(v.epoch, o.epoch)
	}
	if c := cmpRelease(v.release, o.release); c != 0 {
		return c
	}
	if c := cmpInt(v.phaseRank(), o.phaseRank()); c != 0 {
		return c
	}
	if c := cmpInt(v.preNum, o.preNum); c != 0 {
		return c
	}
	if c := cmpInt(v.post, o.post); c != 0 {
		return c
	}
	// A dev release precedes the corresponding non-dev release.
	return cmpInt(devSort(v.dev), devSort(o.dev))
}

// phaseRank orders the qualifier phases at an equal numeric prefix:
// dev-only < a < b < rc < final.
func (v Version) phaseRank() int {
	if v.pre >= 0 {
		return v.pre
	}
	if v.dev >= 0 && v.post < 0 {
		return -1
	}
	return 3 // final (possibly with post)
}

func devSort(dev int) int {
	if dev < 0 {
		return math.MaxInt
	}
	return dev
}

func cmpRelease(a, b []int) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return cmpInt(av, bv)
		}
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareVersions compares two version strings. Unparsable versions sort
// before parsable ones; two unparsable versions compare lexically.
func CompareVersions(a, b string) int {
	va, erra := ParseVersion(a)
	vb, errb := ParseVersion(b)
	switch {
	case erra == nil && errb == nil:
		return va.Compare(vb)
	case erra == nil:
		return 1
	case errb == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// MaxVersion returns the maximum of the given version strings by version
// ordering. If none parse, it falls back to the first entry, matching the
// normalizer's "keep the set unsorted" rule. Empty input returns "".
func MaxVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	best := ""
	var bestV Version
	for _, s := range versions {
		v, err := ParseVersion(s)
		if err != nil {
			continue
		}
		if best == "" || v.Compare(bestV) > 0 {
			best, bestV = s, v
		}
	}
	if best == "" {
		return versions[0]
	}
	return best
}
