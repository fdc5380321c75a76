package pypi

import "testing"

func TestParseConstraint(t *testing.T) {
	c, err := ParseConstraint(">=2.25.0, <3.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.String(); got != ">=2.25.0,<3.0.0" {
		t.Errorf("String() = %q", got)
	}

	if c, err := ParseConstraint(""); err != nil || !c.Empty() {
		t.Errorf("empty constraint: c=%v err=%v", c, err)
	}

	if _, err := ParseConstraint("2.0"); err == nil {
		t.Error("clause without operator should error")
	}
}

func TestConstraintMatches(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"", "1.0", true},
		{">=2.25.0,<3.0.0", "2.31.0", true},
		{">=2.25.0,<3.0.0", "2.24.0", false},
		{">=2.25.0,<3.0.0", "3.0.0", false},
		{"==1.4.2", "1.4.2", true},
		{"==1.4.2", "1.4.3", false},
		{"==1.4", "1.4.0", true},
		{"!=1.4.2", "1.4.2", false},
		{"!=1.4.2", "1.4.3", true},
		{">1.0", "1.0", false},
		{">1.0", "1.0.1", true},
		{"<=2.0", "2.0", true},
		{"<2.0", "2.0rc1", true},

		// Wildcard equality compares release prefixes.
		{"==1.4.*", "1.4.9", true},
		{"==1.4.*", "1.5.0", false},
		{"!=1.4.*", "1.4.9", false},
		{"!=1.4.*", "1.5.0", true},

		// Compatible release stays in the named series.
		{"~=2.2", "2.9", true},
		{"~=2.2", "3.0", false},
		{"~=2.2", "2.1", false},
		{"~=1.4.5", "1.4.9", true},
		{"~=1.4.5", "1.5.0", false},

		// Unparsable candidate matches nothing.
		{">=1.0", "not-a-version", false},
	}
	for _, tc := range tests {
		c, err := ParseConstraint(tc.constraint)
		if err != nil {
			t.Fatalf("ParseConstraint(%q): %v", tc.constraint, err)
		}
		if got := c.Matches(tc.version); got != tc.want {
			t.Errorf("(%q).Matches(%q) = %v, want %v", tc.constraint, tc.version, got, tc.want)
		}
	}
}
