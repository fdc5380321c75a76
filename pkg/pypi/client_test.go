package pypi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/reqforge/reqforge/pkg/httputil"
)

func newTestClient(indexURL string) *Client {
	c := NewClient(Options{IndexURL: indexURL, Logger: log.New(io.Discard)})
	c.retryDelay = time.Millisecond
	c.limiter = httputil.NewLimiter(100000, time.Nanosecond)
	return c
}

const apiResponseJSON = `{
	"info": {
		"name": "Requests",
		"version": "2.31.0",
		"summary": "Python HTTP for Humans.",
		"author": "Kenneth Reitz",
		"license": "Apache 2.0",
		"home_page": "https://requests.readthedocs.io",
		"requires_python": ">=3.7",
		"requires_dist": [
			"charset-normalizer<4,>=2",
			"idna<4,>=2.5",
			"PySocks!=1.5.7; extra == 'socks'"
		]
	},
	"releases": {
		"2.31.0": [
			{
				"filename": "requests-2.31.0-py3-none-any.whl",
				"url": "https://files.example/requests-2.31.0-py3-none-any.whl",
				"packagetype": "bdist_wheel",
				"size": 62574,
				"upload_time_iso_8601": "2023-05-22T15:12:42Z",
				"digests": {"sha256": "abc123"}
			}
		],
		"2.30.0": [
			{
				"filename": "requests-2.30.0.tar.gz",
				"packagetype": "sdist",
				"yanked": true,
				"yanked_reason": "broken upload"
			}
		]
	}
}`

func TestFetchJSONAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pypi/requests/json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, apiResponseJSON)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pkg, err := c.fetchJSONAPI(context.Background(), "requests", srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.Name != "requests" {
		t.Errorf("Name = %q, want normalized requests", pkg.Name)
	}
	if pkg.LatestVersion != "2.31.0" {
		t.Errorf("LatestVersion = %q", pkg.LatestVersion)
	}
	if len(pkg.Dependencies) != 3 {
		t.Fatalf("got %d dependencies, want 3", len(pkg.Dependencies))
	}
	if dep := pkg.Dependencies[2]; dep.Name != "pysocks" || !dep.Optional {
		t.Errorf("extra dependency = %+v, want optional pysocks", dep)
	}
	if len(pkg.Releases) != 2 || pkg.Releases[0].Version != "2.31.0" {
		t.Fatalf("releases not sorted newest first: %+v", pkg.Releases)
	}
	latest := pkg.Releases[0]
	if latest.Files[0].SHA256() != "abc123" {
		t.Errorf("sha256 digest missing: %+v", latest.Files[0])
	}
	if latest.ReleasedAt == nil {
		t.Error("release date not extracted from upload time")
	}
	yanked, _ := pkg.Release("2.30.0")
	if !yanked.Yanked || yanked.YankedReason != "broken upload" {
		t.Errorf("yanked release not detected: %+v", yanked)
	}
}

func TestFetchPackageSimpleJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/demo/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		fmt.Fprint(w, `{
			"name": "demo",
			"files": [
				{"filename": "demo-1.0.tar.gz", "url": "../../demo-1.0.tar.gz", "hashes": {"sha256": "aa"}},
				{"filename": "demo-1.1-py3-none-any.whl", "url": "../../demo-1.1.whl", "yanked": "bad wheel"}
			]
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pkg, err := c.FetchPackage(context.Background(), "Demo", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.Name != "demo" || pkg.LatestVersion != "1.1" {
		t.Errorf("got %q latest %q", pkg.Name, pkg.LatestVersion)
	}
	if len(pkg.Releases) != 2 {
		t.Fatalf("got %d releases, want 2", len(pkg.Releases))
	}
	rel, ok := pkg.Release("1.0")
	if !ok || rel.Files[0].SHA256() != "aa" {
		t.Errorf("hashes not carried over: %+v", rel)
	}
}

func TestFetchPackageHTMLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/demo/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html><html><body>
			<a href="../../demo-0.9.tar.gz#sha256=xx">demo-0.9.tar.gz</a><br/>
			<a href="../../demo-1.0-py3-none-any.whl">demo-1.0-py3-none-any.whl</a><br/>
		</body></html>`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pkg, err := c.FetchPackage(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.LatestVersion != "1.0" {
		t.Errorf("LatestVersion = %q, want 1.0", pkg.LatestVersion)
	}
	rel, ok := pkg.Release("1.0")
	if !ok || rel.Files[0].Type != FileWheel {
		t.Errorf("wheel not classified: %+v", rel)
	}
}

func TestFetchPackageNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchPackage(context.Background(), "nope", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// One probe per protocol stage, none retried.
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}

func TestFetchPackageRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		fmt.Fprint(w, `{"name": "demo", "files": [{"filename": "demo-1.0.tar.gz", "url": "x"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pkg, err := c.FetchPackage(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.LatestVersion != "1.0" {
		t.Errorf("LatestVersion = %q", pkg.LatestVersion)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2 (one 429, one success)", got)
	}
}

func TestFetchPackageUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchPackage(context.Background(), "demo", "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestFetchRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		fmt.Fprint(w, `{"name": "demo", "files": [
			{"filename": "demo-1.0.tar.gz", "url": "x"},
			{"filename": "demo-2.0.tar.gz", "url": "y"}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	rel, err := c.FetchRelease(context.Background(), "demo", "1.0", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel.Version != "1.0" || len(rel.Files) != 1 {
		t.Errorf("release = %+v", rel)
	}

	if _, err := c.FetchRelease(context.Background(), "demo", "9.9", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing version: err = %v, want ErrNotFound", err)
	}
}

func TestListIndex(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/simple/" {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, `{"projects": [{"name": "requests"}, {"name": "flask"}]}`)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		names, err := c.ListIndex(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(names) != 2 || names[0] != "requests" {
			t.Errorf("names = %v", names)
		}
	})

	t.Run("html", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body><a href="requests/">requests</a><a href="flask/">flask</a></body></html>`)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		names, err := c.ListIndex(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(names) != 2 || names[1] != "flask" {
			t.Errorf("names = %v", names)
		}
	})
}

func TestValidateIndex(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"projects": [{"name": "requests"}]}`)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.NotFoundHandler())
	defer bad.Close()

	c := newTestClient(good.URL)
	if !c.ValidateIndex(context.Background(), good.URL) {
		t.Error("expected valid index")
	}
	if c.ValidateIndex(context.Background(), bad.URL) {
		t.Error("expected invalid index")
	}
}

func TestFetchPackageContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv.URL)
	if _, err := c.FetchPackage(ctx, "demo", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
