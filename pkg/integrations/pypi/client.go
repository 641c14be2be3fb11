// Package pypi provides access to the PyPI package registry JSON API.
package pypi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lemanyk/moppi/pkg/cache"
	"github.com/lemanyk/moppi/pkg/deps"
	"github.com/lemanyk/moppi/pkg/integrations"
)

var (
	depRE    = regexp.MustCompile(`^([a-zA-Z0-9_-]+)`)
	markerRE = regexp.MustCompile(`;\s*(.+)`)
	skipRE   = regexp.MustCompile(`extra|dev|test|platform_system|sys_platform`)
)

// PackageInfo holds metadata for one release of a Python package.
//
// Package names are normalized following PEP 503 (lowercase,
// underscores→hyphens). Dependencies list only runtime dependencies;
// extras, dev/test and platform-conditional deps are excluded.
type PackageInfo struct {
	Name         string   // Normalized package name
	Version      string   // Version string (e.g., "2.2.2")
	Dependencies []string // Direct runtime dependencies, normalized names
	SHA256       string   // Digest of the first release artifact, if published
	ArtifactURL  string   // Download URL of the first release artifact
	Filename     string   // Filename of the first release artifact
}

// Client provides access to the PyPI package registry API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client caching responses in backend for ttl.
// Pass a nil backend to disable caching.
func NewClient(backend cache.Cache, ttl time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", ttl, nil),
		baseURL: "https://pypi.org/pypi",
	}
}

// FetchPackage retrieves metadata for the latest release of a package.
//
// Returns [integrations.ErrNotFound] if the package doesn't exist and
// [integrations.ErrNetwork] for HTTP failures. If refresh is true the cache
// is bypassed.
func (c *Client) FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error) {
	return c.fetchCached(ctx, deps.Normalize(pkg), "", refresh)
}

// FetchRelease retrieves metadata for an exact pinned release.
func (c *Client) FetchRelease(ctx context.Context, pkg, version string, refresh bool) (*PackageInfo, error) {
	return c.fetchCached(ctx, deps.Normalize(pkg), version, refresh)
}

// Download fetches a release artifact. Artifacts are content-addressed by
// version so they bypass the response cache entirely.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	return c.GetBytes(ctx, url)
}

func (c *Client) fetchCached(ctx context.Context, pkg, version string, refresh bool) (*PackageInfo, error) {
	key := pkg
	if version != "" {
		key = pkg + "==" + version
	}
	var info PackageInfo
	err := c.Cached(ctx, key, refresh, &info, func() error {
		return c.fetch(ctx, pkg, version, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetch(ctx context.Context, pkg, version string, info *PackageInfo) error {
	url := fmt.Sprintf("%s/%s/json", c.baseURL, pkg)
	if version != "" {
		url = fmt.Sprintf("%s/%s/%s/json", c.baseURL, pkg, version)
	}

	var data apiResponse
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: pypi package %s", err, pkg)
		}
		return err
	}

	*info = PackageInfo{
		Name:         deps.Normalize(data.Info.Name),
		Version:      data.Info.Version,
		Dependencies: extractDeps(data.Info.RequiresDist),
	}
	if len(data.URLs) > 0 {
		first := data.URLs[0]
		info.SHA256 = first.Digests.SHA256
		info.ArtifactURL = first.URL
		info.Filename = first.Filename
	}
	return nil
}

// extractDeps filters requires_dist down to unconditional runtime
// dependencies: entries with an environment marker matching extras, dev,
// test or platform conditions are skipped.
func extractDeps(requires []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, req := range requires {
		if m := markerRE.FindStringSubmatch(req); len(m) > 1 && skipRE.MatchString(m[1]) {
			continue
		}
		if m := depRE.FindStringSubmatch(req); len(m) > 1 {
			dep := deps.Normalize(m[1])
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
			}
		}
	}
	return out
}

type apiResponse struct {
	Info apiInfo  `json:"info"`
	URLs []apiURL `json:"urls"`
}

type apiInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	RequiresDist []string `json:"requires_dist"`
}

type apiURL struct {
	URL      string     `json:"url"`
	Filename string     `json:"filename"`
	Digests  apiDigests `json:"digests"`
}

type apiDigests struct {
	SHA256 string `json:"sha256"`
}
