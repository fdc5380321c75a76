// Package resolver turns lists of package specifications into version
// selections, dependency trees, and content hashes. It reads and writes
// package metadata through the cache and coalesces concurrent identical
// requests so duplicate work never reaches the network.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/reqforge/reqforge/pkg/cache"
	"github.com/reqforge/reqforge/pkg/pypi"
)

// Strategy selection threshold: small requests get per-package trees, large
// requests get main-versus-transitive relationship analysis.
const relationshipThreshold = 15

// Depth bounds per strategy and the fan-out cap for traditional trees.
const (
	traditionalDepth  = 2
	relationshipDepth = 3
	traditionalFanout = 3
)

// Request is one resolution invocation. The fingerprint is insensitive to
// requirement order and duplication.
type Request struct {
	Requirements  []string `json:"requirements"`
	IndexURL      string   `json:"index_url,omitempty"`
	PythonVersion string   `json:"python_version,omitempty"`
}

// Fingerprint returns the canonical identity of the request: the sorted,
// deduplicated requirement list plus index URL and target runtime version.
// Identical fingerprints share cache entries and in-flight work.
func (r Request) Fingerprint() string {
	seen := make(map[string]bool, len(r.Requirements))
	specs := make([]string, 0, len(r.Requirements))
	for _, req := range r.Requirements {
		req = strings.ToLower(strings.TrimSpace(req))
		if req == "" || seen[req] {
			continue
		}
		seen[req] = true
		specs = append(specs, req)
	}
	sort.Strings(specs)
	sum := sha256.Sum256([]byte(strings.Join(specs, "\n") + "\n" + r.IndexURL + "\n" + r.PythonVersion))
	return hex.EncodeToString(sum[:])
}

// ResolvedPackage is one selection within a result.
type ResolvedPackage struct {
	Version string `json:"version"`
	SHA256  string `json:"sha256_hash,omitempty"`
}

// Conflict records two requested specs pinning the same package to different
// exact versions. The first pin wins; the conflict is reported, not resolved.
type Conflict struct {
	Name      string   `json:"package"`
	Requested []string `json:"requested"`
	Selected  string   `json:"selected"`
}

// TreeNode is one node of a dependency tree. Children appear in discovery
// order, and no name repeats on any root-to-leaf path.
type TreeNode struct {
	Name     string      `json:"name"`
	Version  string      `json:"version"`
	Children []*TreeNode `json:"dependencies,omitempty"`
}

// Result is the outcome of one resolution. Packages is the flat back-compat
// view of Resolved.
type Result struct {
	Packages       map[string]string          `json:"packages"`
	Resolved       map[string]ResolvedPackage `json:"resolved_packages"`
	Tree           []*TreeNode                `json:"dependency_tree,omitempty"`
	Conflicts      []Conflict                 `json:"conflicts"`
	Warnings       []string                   `json:"warnings"`
	ResolutionTime float64                    `json:"resolution_time"`
}

// Fetcher is the slice of the index client the resolver needs. Satisfied by
// [pypi.Client].
type Fetcher interface {
	FetchPackage(ctx context.Context, name, indexURL string) (*pypi.Package, error)
	FetchRelease(ctx context.Context, name, version, indexURL string) (*pypi.Release, error)
	ListIndex(ctx context.Context, indexURL string) ([]string, error)
	ValidateIndex(ctx context.Context, indexURL string) bool
}

// Service is the resolution facade: cache-through metadata access, search,
// and the two resolution strategies, with identical concurrent requests
// coalesced.
type Service struct {
	client Fetcher
	cache  *cache.Manager
	log    *log.Logger
	flight *flightGroup
}

// NewService creates a Service over an index client and cache.
func NewService(client Fetcher, c *cache.Manager, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		client: client,
		cache:  c,
		log:    logger,
		flight: newFlightGroup(coalesceGrace),
	}
}

// PackageDetail returns package metadata, serving from cache when fresh and
// writing through on fetch.
func (s *Service) PackageDetail(ctx context.Context, name, indexURL string) (*pypi.Package, error) {
	if pkg, ok := s.cache.GetPackage(ctx, name, indexURL); ok {
		return pkg, nil
	}
	pkg, err := s.client.FetchPackage(ctx, name, indexURL)
	if err != nil {
		return nil, err
	}
	s.cache.PutPackage(ctx, indexURL, pkg)
	return pkg, nil
}

// Versions returns a package's version strings, newest first, along with the
// latest version.
func (s *Service) Versions(ctx context.Context, name, indexURL string) (latest string, versions []string, err error) {
	pkg, err := s.PackageDetail(ctx, name, indexURL)
	if err != nil {
		return "", nil, err
	}
	for _, rel := range pkg.SortedReleases(true) {
		versions = append(versions, rel.Version)
	}
	return pkg.LatestVersion, versions, nil
}

// Resolve runs a resolution request. Identical concurrent requests share one
// execution; completed results are served from the resolution cache within
// its TTL.
func (s *Service) Resolve(ctx context.Context, req Request) (*Result, error) {
	key := req.Fingerprint()
	return s.flight.do(ctx, key, func() (*Result, error) {
		var cached Result
		if s.cache.GetResolution(ctx, key, &cached) {
			return &cached, nil
		}
		res, err := s.resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		s.cache.PutResolution(ctx, key, res)
		return res, nil
	})
}

// parsedSpec is one requirement after spec parsing.
type parsedSpec struct {
	raw        string
	name       string
	constraint pypi.Constraint
	rawSpec    string // constraint expression as written
}

// resolve executes the full resolution: parse, select, build trees, attach
// hashes. Per-package failures become warnings; only context cancellation
// aborts the batch.
func (s *Service) resolve(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{
		Packages:  make(map[string]string),
		Resolved:  make(map[string]ResolvedPackage),
		Conflicts: []Conflict{},
		Warnings:  []string{},
	}

	specs := s.parseSpecs(req.Requirements, res)

	if len(specs) <= relationshipThreshold {
		s.resolveTraditional(ctx, specs, req.IndexURL, res)
	} else {
		s.resolveRelationship(ctx, specs, req.IndexURL, res)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.attachHashes(ctx, req.IndexURL, res)

	res.ResolutionTime = time.Since(start).Seconds()
	s.log.Info("resolution complete",
		"requested", len(req.Requirements),
		"resolved", len(res.Resolved),
		"warnings", len(res.Warnings),
		"strategy", strategyName(len(specs)),
		"elapsed", res.ResolutionTime)
	return res, nil
}

func strategyName(n int) string {
	if n <= relationshipThreshold {
		return "traditional"
	}
	return "relationship"
}

// parseSpecs parses and deduplicates the requirement list. A second spec for
// an already-pinned name is recorded as a conflict when the pins disagree.
func (s *Service) parseSpecs(reqs []string, res *Result) []parsedSpec {
	var specs []parsedSpec
	byName := make(map[string]int)

	for _, raw := range reqs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		dep, ok := pypi.ParseRequirement(raw)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not parse requirement %q", raw))
			continue
		}
		constraint, err := pypi.ParseConstraint(dep.Constraint)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("invalid constraint in %q: %v", raw, err))
			continue
		}
		if i, dup := byName[dep.Name]; dup {
			if specs[i].rawSpec != dep.Constraint {
				res.Conflicts = append(res.Conflicts, Conflict{
					Name:      dep.Name,
					Requested: []string{specs[i].raw, raw},
					Selected:  specs[i].rawSpec,
				})
			}
			continue
		}
		byName[dep.Name] = len(specs)
		specs = append(specs, parsedSpec{raw: raw, name: dep.Name, constraint: constraint, rawSpec: dep.Constraint})
	}
	return specs
}

// selectVersion picks the maximum release satisfying the constraint. An
// unsatisfied "==" pin falls back to its literal target so one missing
// version cannot abort a batch; any other unsatisfied constraint returns "".
func selectVersion(pkg *pypi.Package, c pypi.Constraint, rawSpec string) string {
	if c.Empty() {
		if pkg.LatestVersion != "" {
			return pkg.LatestVersion
		}
		versions := make([]string, 0, len(pkg.Releases))
		for _, rel := range pkg.Releases {
			versions = append(versions, rel.Version)
		}
		return pypi.MaxVersion(versions)
	}
	for _, rel := range pkg.SortedReleases(false) {
		if c.Matches(rel.Version) {
			return rel.Version
		}
	}
	if target, ok := exactPin(rawSpec); ok {
		return target
	}
	return ""
}

// exactPin extracts the literal target of a plain "==" constraint.
func exactPin(rawSpec string) (string, bool) {
	if !strings.HasPrefix(rawSpec, "==") || strings.Contains(rawSpec, ",") {
		return "", false
	}
	target := strings.TrimSpace(strings.TrimPrefix(rawSpec, "=="))
	if target == "" || strings.HasSuffix(target, ".*") {
		return "", false
	}
	return target, true
}

// resolveTraditional handles small requests: each spec is resolved
// independently and gets its own dependency tree, fetched recursively to a
// depth of two with a per-node fan-out cap.
func (s *Service) resolveTraditional(ctx context.Context, specs []parsedSpec, indexURL string, res *Result) {
	for _, spec := range specs {
		if ctx.Err() != nil {
			return
		}
		pkg, err := s.PackageDetail(ctx, spec.name, indexURL)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not resolve %s: %v", spec.name, err))
			continue
		}
		version := selectVersion(pkg, spec.constraint, spec.rawSpec)
		if version == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no version of %s satisfies %q", spec.name, spec.rawSpec))
			continue
		}
		res.Packages[spec.name] = version
		res.Resolved[spec.name] = ResolvedPackage{Version: version}

		visited := map[string]bool{spec.name: true}
		res.Tree = append(res.Tree, s.buildTree(ctx, pkg, version, indexURL, traditionalDepth, visited))
	}
}

// buildTree recursively expands a package's dependencies. The visited set is
// copied per branch so sibling branches cannot suppress each other's
// expansion; a name already on the current path terminates that branch as a
// leaf.
func (s *Service) buildTree(ctx context.Context, pkg *pypi.Package, version, indexURL string, depth int, visited map[string]bool) *TreeNode {
	node := &TreeNode{Name: pkg.Name, Version: version}
	if depth <= 0 || ctx.Err() != nil {
		return node
	}

	var expanded int
	for _, dep := range pkg.Dependencies {
		if expanded >= traditionalFanout {
			break
		}
		if dep.Optional || visited[dep.Name] {
			continue
		}
		child, err := s.PackageDetail(ctx, dep.Name, indexURL)
		if err != nil {
			s.log.Debug("skipping unresolvable dependency", "package", pkg.Name, "dependency", dep.Name, "err", err)
			continue
		}
		constraint, err := pypi.ParseConstraint(dep.Constraint)
		if err != nil {
			constraint = pypi.Constraint{}
		}
		childVersion := selectVersion(child, constraint, dep.Constraint)
		if childVersion == "" {
			childVersion = child.LatestVersion
		}

		branch := make(map[string]bool, len(visited)+1)
		for k := range visited {
			branch[k] = true
		}
		branch[dep.Name] = true
		node.Children = append(node.Children, s.buildTree(ctx, child, childVersion, indexURL, depth-1, branch))
		expanded++
	}
	return node
}

// resolveRelationship handles large requests. Every spec is resolved to a
// version first; then each package's direct dependency names determine which
// requested packages are transitive. Trees are rooted only at main packages
// and only walk into dependencies that are themselves requested.
func (s *Service) resolveRelationship(ctx context.Context, specs []parsedSpec, indexURL string, res *Result) {
	type member struct {
		spec    parsedSpec
		pkg     *pypi.Package
		version string
		deps    []string // direct dependency names, requested or not
	}

	members := make(map[string]*member)
	var order []string
	for _, spec := range specs {
		if ctx.Err() != nil {
			return
		}
		pkg, err := s.PackageDetail(ctx, spec.name, indexURL)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not resolve %s: %v", spec.name, err))
			continue
		}
		version := selectVersion(pkg, spec.constraint, spec.rawSpec)
		if version == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no version of %s satisfies %q", spec.name, spec.rawSpec))
			continue
		}
		m := &member{spec: spec, pkg: pkg, version: version}
		for _, dep := range pkg.Dependencies {
			m.deps = append(m.deps, dep.Name)
		}
		members[spec.name] = m
		order = append(order, spec.name)

		res.Packages[spec.name] = version
		res.Resolved[spec.name] = ResolvedPackage{Version: version}
	}

	// A requested package mentioned as a dependency of another requested
	// package is transitive; the rest are main.
	mentioned := make(map[string]bool)
	for _, name := range order {
		for _, dep := range members[name].deps {
			if _, requested := members[dep]; requested {
				mentioned[dep] = true
			}
		}
	}
	var main []string
	for _, name := range order {
		if !mentioned[name] {
			main = append(main, name)
		}
	}
	if len(main) == 0 && len(order) > 0 {
		n := min(5, len(order))
		main = order[:n]
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("no main packages identified (fully interdependent set); using the first %d requested packages as tree roots", n))
	}

	var walk func(name string, depth int, visited map[string]bool) *TreeNode
	walk = func(name string, depth int, visited map[string]bool) *TreeNode {
		m := members[name]
		node := &TreeNode{Name: name, Version: m.version}
		if depth <= 0 {
			return node
		}
		for _, dep := range m.deps {
			if _, requested := members[dep]; !requested || visited[dep] {
				continue
			}
			branch := make(map[string]bool, len(visited)+1)
			for k := range visited {
				branch[k] = true
			}
			branch[dep] = true
			node.Children = append(node.Children, walk(dep, depth-1, branch))
		}
		return node
	}
	for _, name := range main {
		res.Tree = append(res.Tree, walk(name, relationshipDepth, map[string]bool{name: true}))
	}
}
