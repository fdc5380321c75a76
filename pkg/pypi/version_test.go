package pypi

import "testing"

func TestParseVersion(t *testing.T) {
	valid := []string{
		"1", "1.0", "2.31.0", "0.0.1", "1!2.0",
		"1.0a1", "1.0.alpha2", "1.0b2", "1.0rc1", "1.0.pre3",
		"1.0.post1", "1.0-rev2", "1.0.dev3", "1.0a1.dev1",
		"v2.3.1", " 1.2 ",
	}
	for _, s := range valid {
		if _, err := ParseVersion(s); err != nil {
			t.Errorf("ParseVersion(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "abc", "1.0+local", "1.0.*", "latest", "1..2"}
	for _, s := range invalid {
		if _, err := ParseVersion(s); err == nil {
			t.Errorf("ParseVersion(%q) expected error, got none", s)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	// Each pair asserts a < b.
	ordered := []struct{ a, b string }{
		{"1.0", "2.0"},
		{"2.9", "2.31.0"},
		{"2.31.0", "2.31.1"},
		{"1.0", "1.0.1"},
		{"1.0a1", "1.0a2"},
		{"1.0a2", "1.0b1"},
		{"1.0b1", "1.0rc1"},
		{"1.0rc1", "1.0"},
		{"1.0", "1.0.post1"},
		{"1.0.dev1", "1.0a1"},
		{"1.0.dev1", "1.0.dev2"},
		{"1.0.dev1", "1.0"},
		{"1.0", "1!0.1"},
	}
	for _, tc := range ordered {
		if got := CompareVersions(tc.a, tc.b); got != -1 {
			t.Errorf("CompareVersions(%q, %q) = %d, want -1", tc.a, tc.b, got)
		}
		if got := CompareVersions(tc.b, tc.a); got != 1 {
			t.Errorf("CompareVersions(%q, %q) = %d, want 1", tc.b, tc.a, got)
		}
	}

	equal := []struct{ a, b string }{
		{"1.0", "1.0.0"},
		{"1.0", "v1.0"},
		{"1.0rc1", "1.0c1"},
		{"1.0.post1", "1.0.rev1"},
	}
	for _, tc := range equal {
		if got := CompareVersions(tc.a, tc.b); got != 0 {
			t.Errorf("CompareVersions(%q, %q) = %d, want 0", tc.a, tc.b, got)
		}
	}
}

func TestCompareVersionsUnparsable(t *testing.T) {
	if got := CompareVersions("garbage", "1.0"); got != -1 {
		t.Errorf("unparsable vs parsable = %d, want -1", got)
	}
	if got := CompareVersions("1.0", "garbage"); got != 1 {
		t.Errorf("parsable vs unparsable = %d, want 1", got)
	}
	if got := CompareVersions("aaa", "bbb"); got != -1 {
		t.Errorf("two unparsable compare lexically, got %d", got)
	}
}

func TestMaxVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
	}{
		{"simple", []string{"1.0", "2.31.0", "2.4"}, "2.31.0"},
		{"pre-release above older final", []string{"2.0rc1", "1.9"}, "2.0rc1"},
		{"skips unparsable", []string{"garbage", "1.2"}, "1.2"},
		{"all unparsable falls back to first", []string{"foo", "bar"}, "foo"},
		{"empty", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaxVersion(tc.versions); got != tc.want {
				t.Errorf("MaxVersion(%v) = %q, want %q", tc.versions, got, tc.want)
			}
		})
	}
}
