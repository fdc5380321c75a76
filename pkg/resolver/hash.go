package resolver

import (
	"context"
	"errors"

	"github.com/reqforge/reqforge/pkg/pypi"
)

// attachHashes fills in content hashes for every resolved package. Cached
// hashes are used first; otherwise the resolved version's file listing is
// fetched and a wheel's sha256 digest is preferred, then any file's sha256,
// then any digest at all. A package with no digested artifact keeps an empty
// hash and is not retried.
func (s *Service) attachHashes(ctx context.Context, indexURL string, res *Result) {
	for name, rp := range res.Resolved {
		if ctx.Err() != nil {
			return
		}
		if hash, ok := s.cachedHash(ctx, name, rp.Version, indexURL); ok {
			rp.SHA256 = hash
			res.Resolved[name] = rp
			continue
		}

		rel, err := s.client.FetchRelease(ctx, name, rp.Version, indexURL)
		if err != nil {
			if !errors.Is(err, pypi.ErrNotFound) {
				s.log.Debug("hash lookup failed", "package", name, "version", rp.Version, "err", err)
			}
			continue
		}
		hash := releaseHash(rel)
		if hash == "" {
			continue
		}
		rp.SHA256 = hash
		res.Resolved[name] = rp
		s.rememberHash(ctx, name, rp.Version, indexURL, hash)
	}
}

// cachedHash looks for a previously computed hash on the cached package
// record.
func (s *Service) cachedHash(ctx context.Context, name, version, indexURL string) (string, bool) {
	pkg, ok := s.cache.GetPackage(ctx, name, indexURL)
	if !ok {
		return "", false
	}
	rel, ok := pkg.Release(version)
	if !ok || rel.SHA256 == "" {
		return "", false
	}
	return rel.SHA256, true
}

// rememberHash writes a computed hash back onto the cached package record so
// later resolutions skip the file-listing fetch.
func (s *Service) rememberHash(ctx context.Context, name, version, indexURL, hash string) {
	pkg, ok := s.cache.GetPackage(ctx, name, indexURL)
	if !ok {
		return
	}
	rel, ok := pkg.Release(version)
	if !ok {
		return
	}
	rel.SHA256 = hash
	s.cache.PutPackage(ctx, indexURL, pkg)
}

// releaseHash picks the best available digest from a release's files.
func releaseHash(rel *pypi.Release) string {
	var anySHA, anyDigest string
	for _, f := range rel.Files {
		sha := f.SHA256()
		if f.Type == pypi.FileWheel && sha != "" {
			return sha
		}
		if anySHA == "" && sha != "" {
			anySHA = sha
		}
		if anyDigest == "" {
			for _, d := range f.Digests {
				if d != "" {
					anyDigest = d
					break
				}
			}
		}
	}
	if anySHA != "" {
		return anySHA
	}
	return anyDigest
}
