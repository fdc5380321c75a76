package pypi

import (
	"testing"
	"time"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Django", "django"},
		{"typing_extensions", "typing-extensions"},
		{"zope.interface", "zope-interface"},
		{"Flask--RESTful", "flask-restful"},
		{"  requests ", "requests"},
		{"a_b.c-d", "a-b-c-d"},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVersionFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		pkg      string
		want     string
		ok       bool
	}{
		{"requests-2.31.0-py3-none-any.whl", "requests", "2.31.0", true},
		{"requests-2.31.0.tar.gz", "requests", "2.31.0", true},
		{"typing_extensions-4.8.0-py3-none-any.whl", "typing-extensions", "4.8.0", true},
		{"zope.interface-5.4.0.tar.gz", "zope.interface", "5.4.0", true},
		{"numpy-1.26.2-cp311-cp311-win_amd64.whl", "numpy", "1.26.2", true},
		{"Django-4.2.7-py3-none-any.whl", "django", "4.2.7", true},
		{"pip-23.3.1-py3-none-any.whl", "pip", "23.3.1", true},
		{"something-else-1.0.tar.gz", "requests", "", false},
		{"requests-notaversion.tar.gz", "requests", "", false},
	}
	for _, tc := range tests {
		got, ok := VersionFromFilename(tc.filename, tc.pkg)
		if got != tc.want || ok != tc.ok {
			t.Errorf("VersionFromFilename(%q, %q) = (%q, %v), want (%q, %v)",
				tc.filename, tc.pkg, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTypeFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     FileType
	}{
		{"requests-2.31.0-py3-none-any.whl", FileWheel},
		{"requests-2.31.0.tar.gz", FileSdist},
		{"requests-2.31.0.zip", FileSdist},
		{"requests-2.31.0.egg", FileEgg},
		{"requests-2.31.0.rpm", FileUnknown},
	}
	for _, tc := range tests {
		if got := TypeFromFilename(tc.filename); got != tc.want {
			t.Errorf("TypeFromFilename(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in       string
		name     string
		spec     string
		optional bool
		ok       bool
	}{
		{"charset-normalizer<4,>=2", "charset-normalizer", "<4,>=2", false, true},
		{"idna >=2.5,<4", "idna", ">=2.5,<4", false, true},
		{"requests (>=2.0)", "requests", ">=2.0", false, true},
		{"urllib3", "urllib3", "", false, true},
		{"PySocks!=1.5.7; extra == 'socks'", "pysocks", "!=1.5.7", true, true},
		{"pytest>=7; extra == \"test\"", "pytest", ">=7", true, true},
		{"win-inet-pton; sys_platform == \"win32\"", "win-inet-pton", "", false, true},
		{"django[bcrypt]>=4.2,<5.0", "django", ">=4.2,<5.0", false, true},
		{"", "", "", false, false},
	}
	for _, tc := range tests {
		dep, ok := ParseRequirement(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseRequirement(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if dep.Name != tc.name || dep.Constraint != tc.spec || dep.Optional != tc.optional {
			t.Errorf("ParseRequirement(%q) = %+v, want {%s %s %v}",
				tc.in, dep, tc.name, tc.spec, tc.optional)
		}
	}
}

func TestPackageFromFiles(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	early := time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)
	late := time.Date(2023, 5, 2, 8, 0, 0, 0, time.UTC)

	files := []File{
		{Filename: "demo-1.0.tar.gz", Type: FileSdist, UploadedAt: &late},
		{Filename: "demo-1.0-py3-none-any.whl", Type: FileWheel, UploadedAt: &early},
		{Filename: "demo-2.0-py3-none-any.whl", Type: FileWheel},
		{Filename: "unrelated-9.9.tar.gz", Type: FileSdist},
	}
	pkg := packageFromFiles("demo", files, now)
	if pkg == nil {
		t.Fatal("expected a package")
	}
	if pkg.LatestVersion != "2.0" {
		t.Errorf("LatestVersion = %q, want 2.0", pkg.LatestVersion)
	}
	if len(pkg.Releases) != 2 {
		t.Fatalf("got %d releases, want 2", len(pkg.Releases))
	}
	rel, ok := pkg.Release("1.0")
	if !ok {
		t.Fatal("release 1.0 missing")
	}
	if len(rel.Files) != 2 {
		t.Errorf("release 1.0 has %d files, want 2", len(rel.Files))
	}
	if rel.ReleasedAt == nil || !rel.ReleasedAt.Equal(early) {
		t.Errorf("release date = %v, want earliest upload %v", rel.ReleasedAt, early)
	}

	if got := packageFromFiles("demo", []File{{Filename: "README.txt"}}, now); got != nil {
		t.Errorf("expected nil for files with no recoverable versions, got %+v", got)
	}
}

func TestSortedReleases(t *testing.T) {
	pkg := &Package{
		Name: "demo",
		Releases: []Release{
			{Version: "1.0"},
			{Version: "2.0", Yanked: true},
			{Version: "1.5"},
			{Version: "weird"},
		},
	}
	got := pkg.SortedReleases(false)
	if len(got) != 3 {
		t.Fatalf("got %d releases, want 3 (yanked excluded)", len(got))
	}
	if got[0].Version != "1.5" || got[1].Version != "1.0" || got[2].Version != "weird" {
		t.Errorf("order = %s, %s, %s", got[0].Version, got[1].Version, got[2].Version)
	}

	if got := pkg.SortedReleases(true); len(got) != 4 || got[0].Version != "2.0" {
		t.Errorf("includeYanked order wrong: %+v", got)
	}
}
