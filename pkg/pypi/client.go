package pypi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/reqforge/reqforge/pkg/httputil"
)

// DefaultIndexURL is the canonical package index. Only this host serves the
// JSON metadata API; custom indexes are reached through the simple-index
// protocols.
const DefaultIndexURL = "https://pypi.org"

// DefaultUserAgent identifies outbound requests. Indexes throttle or block
// anonymous clients, so every request carries this header.
const DefaultUserAgent = "reqforge/1.0 (package resolution service)"

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	simpleV1JSON    = "application/vnd.pypi.simple.v1+json"
)

// Sentinel errors for index operations. ErrNotFound is an expected outcome
// (unknown package or version) and is never logged as an error; ErrUnavailable
// means the retry budget was exhausted and callers should degrade to a soft
// miss.
var (
	ErrNotFound    = errors.New("not found in index")
	ErrRateLimited = errors.New("rate limited by index")
	ErrUnavailable = errors.New("index unavailable")
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	IndexURL           string        // default index base URL
	UserAgent          string        // User-Agent header for all requests
	Timeout            time.Duration // per-request timeout
	Attempts           int           // retry budget per logical request
	RequestsPerMinute  int           // sliding-window budget
	MinRequestInterval time.Duration // spacing between consecutive requests
	Logger             *log.Logger
}

// Client fetches package metadata from a package index, normalizing all
// three wire formats into canonical [Package] records.
//
// All methods are safe for concurrent use. The rate limiter is owned by the
// Client, so every request issued through one Client shares one budget.
type Client struct {
	indexURL   string
	userAgent  string
	attempts   int
	timeout    time.Duration
	retryDelay time.Duration
	limiter    *httputil.Limiter
	log        *log.Logger

	mu   sync.Mutex
	http *http.Client // lazily created, recreated after Close
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	if opts.IndexURL == "" {
		opts.IndexURL = DefaultIndexURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Client{
		indexURL:   strings.TrimRight(opts.IndexURL, "/"),
		userAgent:  opts.UserAgent,
		attempts:   opts.Attempts,
		timeout:    opts.Timeout,
		retryDelay: time.Second,
		limiter:    httputil.NewLimiter(opts.RequestsPerMinute, opts.MinRequestInterval),
		log:        opts.Logger,
	}
}

// IndexURL returns the client's default index base URL.
func (c *Client) IndexURL() string { return c.indexURL }

// transport returns the persistent HTTP client, creating it on first use and
// after Close.
func (c *Client) transport() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c.http
}

// Close releases the persistent transport. The next request transparently
// creates a fresh one.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
}

// resolveIndex normalizes an index override, falling back to the client
// default.
func (c *Client) resolveIndex(indexURL string) string {
	if indexURL == "" {
		return c.indexURL
	}
	return strings.TrimRight(indexURL, "/")
}

// canonicalIndex reports whether the index serves the JSON metadata API.
func canonicalIndex(indexURL string) bool {
	return strings.Contains(indexURL, "pypi.org")
}

// get performs one rate-limited, retried GET. The attempt budget and backoff
// follow the fetch contract: 404 terminates immediately as ErrNotFound, 429
// backs off exponentially, any other failure retries and finally degrades to
// ErrUnavailable.
func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	var body []byte
	err := httputil.Retry(ctx, c.attempts, c.retryDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.transport().Do(req)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return httputil.Retryable(fmt.Errorf("%w: %v", ErrUnavailable, err))
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			c.log.Warn("rate limited by index, backing off", "url", rawURL)
			return httputil.Retryable(ErrRateLimited)
		default:
			return httputil.Retryable(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
		}
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchPackage retrieves metadata for a package, attempting the JSON
// metadata API (canonical host only), the PEP 691 JSON simple index, and
// finally the HTML simple index. The name is normalized before lookup.
//
// Returns ErrNotFound when no protocol knows the package, or the last
// protocol's failure when all of them errored.
func (c *Client) FetchPackage(ctx context.Context, name, indexURL string) (*Package, error) {
	name = NormalizeName(name)
	indexURL = c.resolveIndex(indexURL)

	if canonicalIndex(indexURL) {
		pkg, err := c.fetchJSONAPI(ctx, name, indexURL)
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			c.log.Debug("json api lookup failed, trying simple index", "package", name, "err", err)
		}
	}

	if pkg, err := c.fetchSimpleJSON(ctx, name, indexURL); err == nil && pkg != nil {
		return pkg, nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		c.log.Debug("pep 691 lookup failed, trying html", "package", name, "err", err)
	}

	pkg, err := c.fetchSimpleHTML(ctx, name, indexURL)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, name)
	}
	return pkg, nil
}

// FetchRelease retrieves one release, including its file listing. On the
// canonical index this uses the per-version JSON endpoint; elsewhere the
// release is sliced out of the full package record.
func (c *Client) FetchRelease(ctx context.Context, name, version, indexURL string) (*Release, error) {
	name = NormalizeName(name)
	indexURL = c.resolveIndex(indexURL)

	if canonicalIndex(indexURL) {
		u := fmt.Sprintf("%s/pypi/%s/%s/json", indexURL, url.PathEscape(name), url.PathEscape(version))
		body, err := c.get(ctx, u, nil)
		if err == nil {
			var data apiResponse
			if jsonErr := json.Unmarshal(body, &data); jsonErr == nil {
				files := filesFromAPI(data.URLs)
				return &Release{Version: version, Files: files}, nil
			}
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	pkg, err := c.FetchPackage(ctx, name, indexURL)
	if err != nil {
		return nil, err
	}
	if rel, ok := pkg.Release(version); ok {
		return rel, nil
	}
	return nil, fmt.Errorf("%w: %s version %s", ErrNotFound, name, version)
}

// ListIndex retrieves the full package-name listing of an index, preferring
// the PEP 691 JSON form and falling back to HTML anchors.
func (c *Client) ListIndex(ctx context.Context, indexURL string) ([]string, error) {
	indexURL = c.resolveIndex(indexURL)
	simpleURL := indexURL + "/simple/"

	body, err := c.get(ctx, simpleURL, map[string]string{"Accept": simpleV1JSON})
	if err != nil {
		return nil, err
	}

	var listing struct {
		Projects []struct {
			Name string `json:"name"`
		} `json:"projects"`
	}
	if jsonErr := json.Unmarshal(body, &listing); jsonErr == nil && len(listing.Projects) > 0 {
		names := make([]string, 0, len(listing.Projects))
		for _, p := range listing.Projects {
			if p.Name != "" {
				names = append(names, p.Name)
			}
		}
		return names, nil
	}

	// Not JSON: the index answered with an HTML listing.
	anchors, err := parseAnchors(bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}
	var names []string
	for _, a := range anchors {
		if !strings.HasPrefix(a.href, "http") {
			names = append(names, a.text)
		}
	}
	return names, nil
}

// ValidateIndex reports whether the URL serves something that looks like a
// package index: a reachable simple listing with at least one entry.
func (c *Client) ValidateIndex(ctx context.Context, indexURL string) bool {
	names, err := c.ListIndex(ctx, indexURL)
	return err == nil && len(names) > 0
}

// --- JSON metadata API ---

type apiResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
	URLs     []apiFile            `json:"urls"`
}

type apiInfo struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Summary         string   `json:"summary"`
	Description     string   `json:"description"`
	Author          string   `json:"author"`
	AuthorEmail     string   `json:"author_email"`
	Maintainer      string   `json:"maintainer"`
	MaintainerEmail string   `json:"maintainer_email"`
	License         string   `json:"license"`
	HomePage        string   `json:"home_page"`
	RequiresPython  string   `json:"requires_python"`
	Keywords        string   `json:"keywords"`
	Classifiers     []string `json:"classifiers"`
	RequiresDist    []string `json:"requires_dist"`
}

type apiFile struct {
	Filename     string            `json:"filename"`
	URL          string            `json:"url"`
	Size         int64             `json:"size"`
	PackageType  string            `json:"packagetype"`
	UploadTime   string            `json:"upload_time_iso_8601"`
	UploadLegacy string            `json:"upload_time"`
	Digests      map[string]string `json:"digests"`
	Yanked       bool              `json:"yanked"`
	YankedReason string            `json:"yanked_reason"`
}

func (c *Client) fetchJSONAPI(ctx context.Context, name, indexURL string) (*Package, error) {
	u := fmt.Sprintf("%s/pypi/%s/json", indexURL, url.PathEscape(name))
	body, err := c.get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", name, err)
	}
	return packageFromAPI(&data, time.Now().UTC()), nil
}

func filesFromAPI(raw []apiFile) []File {
	files := make([]File, 0, len(raw))
	for _, f := range raw {
		ft := FileType(f.PackageType)
		switch ft {
		case FileWheel, FileSdist, FileEgg:
		default:
			ft = TypeFromFilename(f.Filename)
		}
		uploaded := parseUploadTime(f.UploadTime)
		if uploaded == nil {
			uploaded = parseUploadTime(f.UploadLegacy)
		}
		files = append(files, File{
			Filename:   f.Filename,
			URL:        f.URL,
			Size:       f.Size,
			Type:       ft,
			UploadedAt: uploaded,
			Digests:    f.Digests,
		})
	}
	return files
}

// packageFromAPI converts a JSON metadata API response into the canonical
// record. Versions and files map directly; dependencies come from the latest
// release's requires_dist.
func packageFromAPI(data *apiResponse, now time.Time) *Package {
	info := data.Info
	pkg := &Package{
		Name:            NormalizeName(info.Name),
		Summary:         info.Summary,
		Description:     info.Description,
		Author:          info.Author,
		AuthorEmail:     info.AuthorEmail,
		Maintainer:      info.Maintainer,
		MaintainerEmail: info.MaintainerEmail,
		License:         info.License,
		HomePage:        info.HomePage,
		RequiresPython:  info.RequiresPython,
		Classifiers:     info.Classifiers,
		LatestVersion:   info.Version,
		UpdatedAt:       now,
	}
	if info.Keywords != "" {
		for _, kw := range strings.FieldsFunc(info.Keywords, func(r rune) bool { return r == ',' || r == ' ' }) {
			pkg.Keywords = append(pkg.Keywords, kw)
		}
	}
	for _, req := range info.RequiresDist {
		if dep, ok := ParseRequirement(req); ok {
			pkg.Dependencies = append(pkg.Dependencies, dep)
		}
	}

	versions := make([]string, 0, len(data.Releases))
	for v := range data.Releases {
		versions = append(versions, v)
	}
	// Newest first, for stable output.
	sort.SliceStable(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) > 0
	})
	for _, v := range versions {
		files := filesFromAPI(data.Releases[v])
		release := Release{Version: v, Files: files}
		for _, f := range data.Releases[v] {
			if f.Yanked && release.YankedReason == "" {
				release.YankedReason = f.YankedReason
			}
		}
		release.Yanked = len(files) > 0 && allYanked(data.Releases[v])
		for _, f := range files {
			if f.UploadedAt != nil && (release.ReleasedAt == nil || f.UploadedAt.Before(*release.ReleasedAt)) {
				release.ReleasedAt = f.UploadedAt
			}
		}
		pkg.Releases = append(pkg.Releases, release)
	}
	return pkg
}

func allYanked(files []apiFile) bool {
	for _, f := range files {
		if !f.Yanked {
			return false
		}
	}
	return true
}

// --- PEP 691 simple index ---

type simpleProject struct {
	Name  string       `json:"name"`
	Files []simpleFile `json:"files"`
}

type simpleFile struct {
	Filename   string            `json:"filename"`
	URL        string            `json:"url"`
	Size       int64             `json:"size"`
	UploadTime string            `json:"upload-time"`
	Hashes     map[string]string `json:"hashes"`
	Yanked     any               `json:"yanked"` // false, true, or a reason string
}

func (c *Client) fetchSimpleJSON(ctx context.Context, name, indexURL string) (*Package, error) {
	u := fmt.Sprintf("%s/simple/%s/", indexURL, url.PathEscape(name))
	body, err := c.get(ctx, u, map[string]string{"Accept": simpleV1JSON})
	if err != nil {
		return nil, err
	}
	var data simpleProject
	if err := json.Unmarshal(body, &data); err != nil || len(data.Files) == 0 {
		// HTML response or empty listing; the HTML stage handles it.
		return nil, nil
	}

	files := make([]File, 0, len(data.Files))
	for _, f := range data.Files {
		files = append(files, File{
			Filename:   f.Filename,
			URL:        f.URL,
			Size:       f.Size,
			Type:       TypeFromFilename(f.Filename),
			UploadedAt: parseUploadTime(f.UploadTime),
			Digests:    f.Hashes,
		})
	}
	if data.Name == "" {
		data.Name = name
	}
	return packageFromFiles(data.Name, files, time.Now().UTC()), nil
}

func (c *Client) fetchSimpleHTML(ctx context.Context, name, indexURL string) (*Package, error) {
	u := fmt.Sprintf("%s/simple/%s/", indexURL, url.PathEscape(name))
	body, err := c.get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	anchors, err := parseAnchors(bytes.NewReader(body))
	if err != nil {
		// Malformed HTML degrades to "no data extracted".
		return nil, nil
	}
	files := make([]File, 0, len(anchors))
	for _, a := range anchors {
		files = append(files, File{
			Filename: a.text,
			URL:      a.href,
			Type:     TypeFromFilename(a.text),
		})
	}
	return packageFromFiles(name, files, time.Now().UTC()), nil
}
