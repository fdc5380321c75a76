package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reqforge/reqforge/pkg/cache"
	"github.com/reqforge/reqforge/pkg/pypi"
	"github.com/reqforge/reqforge/pkg/resolver"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	pkg, err := s.svc.PackageDetail(r.Context(), name, r.URL.Query().Get("index"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, pkg)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	latest, versions, err := s.svc.Versions(r.Context(), name, r.URL.Query().Get("index"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"package":        pypi.NormalizeName(name),
		"latest_version": latest,
		"versions":       versions,
	})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")
	pkg, err := s.svc.PackageDetail(r.Context(), name, r.URL.Query().Get("index"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	rel, ok := pkg.Release(version)
	if !ok {
		s.respond(w, http.StatusNotFound, map[string]string{
			"error": "version " + version + " not found for package " + pkg.Name,
		})
		return
	}
	s.respond(w, http.StatusOK, rel)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respond(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	results, err := s.svc.Search(r.Context(), query, limit, r.URL.Query().Get("index"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolver.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Requirements) == 0 {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "requirements must not be empty"})
		return
	}

	res, err := s.svc.Resolve(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

// refreshRequest selects what to evict: one package, one tier, or (empty
// body) everything.
type refreshRequest struct {
	Package string `json:"package,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Index   string `json:"index,omitempty"`
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	ctx := r.Context()
	switch {
	case req.Package != "":
		s.cache.DropPackage(ctx, req.Package, req.Index)
		s.respond(w, http.StatusOK, map[string]any{"cleared": 1, "package": pypi.NormalizeName(req.Package)})
	case req.Tier != "":
		tier := cache.Tier(req.Tier)
		if !validTier(tier) {
			s.respond(w, http.StatusBadRequest, map[string]string{"error": "unknown cache tier " + req.Tier})
			return
		}
		n, err := s.cache.ClearTier(ctx, tier)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"cleared": n, "tier": tier})
	default:
		n, err := s.cache.ClearAll(ctx)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"cleared": n})
	}
}

func validTier(t cache.Tier) bool {
	for _, known := range cache.Tiers {
		if t == known {
			return true
		}
	}
	return false
}

func (s *Server) handleValidateIndex(w http.ResponseWriter, r *http.Request) {
	indexURL := r.URL.Query().Get("url")
	if indexURL == "" {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter url"})
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"url":   indexURL,
		"valid": s.svc.ValidateIndex(r.Context(), indexURL),
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("writing response failed", "err", err)
	}
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errStatus(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, pypi.ErrUnavailable) {
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}
