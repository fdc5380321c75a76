package pypi

import (
	"fmt"
	"strings"
)

// Constraint is a conjunction of comparison clauses, e.g. ">=2.25.0,<3.0.0".
// A version satisfies the constraint only if it satisfies every clause.
type Constraint struct {
	clauses []clause
}

type clause struct {
	op      string
	operand string
}

// comparison operators in scan priority order: two-character operators first
// so that ">=" is never read as ">" followed by garbage.
var operators = []string{">=", "<=", "==", "!=", ">", "<", "~="}

// ParseConstraint parses a comma-separated conjunction of comparison clauses.
// An empty string parses to the empty constraint, which every version
// satisfies.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Constraint{}, nil
	}
	var c Constraint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cl, err := parseClause(part)
		if err != nil {
			return Constraint{}, err
		}
		c.clauses = append(c.clauses, cl)
	}
	return c, nil
}

func parseClause(s string) (clause, error) {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return clause{op: op, operand: strings.TrimSpace(s[len(op):])}, nil
		}
	}
	return clause{}, fmt.Errorf("constraint clause %q has no comparison operator", s)
}

// Empty reports whether the constraint has no clauses.
func (c Constraint) Empty() bool { return len(c.clauses) == 0 }

// String reassembles the constraint expression.
func (c Constraint) String() string {
	parts := make([]string, len(c.clauses))
	for i, cl := range c.clauses {
		parts[i] = cl.op + cl.operand
	}
	return strings.Join(parts, ",")
}

// Matches reports whether version satisfies every clause. An unparsable
// candidate version matches nothing; an unparsable clause operand fails its
// clause rather than erroring, so one bad clause cannot take down a whole
// resolution.
func (c Constraint) Matches(version string) bool {
	if len(c.clauses) == 0 {
		return true
	}
	v, err := ParseVersion(version)
	if err != nil {
		return false
	}
	for _, cl := range c.clauses {
		if !cl.matches(v) {
			return false
		}
	}
	return true
}

func (cl clause) matches(v Version) bool {
	// Wildcard equality ("==1.4.*") compares release-segment prefixes.
	if trimmed, ok := strings.CutSuffix(cl.operand, ".*"); ok && (cl.op == "==" || cl.op == "!=") {
		target, err := ParseVersion(trimmed)
		if err != nil {
			return false
		}
		match := hasReleasePrefix(v, target)
		if cl.op == "!=" {
			return !match
		}
		return match
	}

	target, err := ParseVersion(cl.operand)
	if err != nil {
		return false
	}
	cmp := v.Compare(target)
	switch cl.op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "~=":
		// Compatible release: at least the target, staying within the
		// series named by all but the target's last segment.
		if cmp < 0 {
			return false
		}
		segs := target.Segments()
		if len(segs) < 2 {
			return true
		}
		series := Version{release: segs[:len(segs)-1], pre: -1, post: -1, dev: -1}
		return hasReleasePrefix(v, series)
	default:
		return false
	}
}

// hasReleasePrefix reports whether v's release segments start with all of
// prefix's release segments.
func hasReleasePrefix(v, prefix Version) bool {
	if v.epoch != prefix.epoch {
		return false
	}
	vs, ps := v.release, prefix.release
	if len(vs) < len(ps) {
		padded := make([]int, len(ps))
		copy(padded, vs)
		vs = padded
	}
	for i, p := range ps {
		if vs[i] != p {
			return false
		}
	}
	return true
}
