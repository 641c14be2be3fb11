// Package installer implements the installer capability on top of the PyPI
// registry. It resolves versions through the PyPI JSON API, downloads wheel
// artifacts into the active virtualenv's site-packages directory, and
// reports the single-hop dependency edges the reconciler needs.
//
// With an empty site directory the installer runs in metadata-only mode:
// versions are resolved and reported but nothing touches the filesystem.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lemanyk/moppi/pkg/deps"
	"github.com/lemanyk/moppi/pkg/integrations"
	"github.com/lemanyk/moppi/pkg/integrations/pypi"
)

// maxDepth bounds the requires_dist walk. Real dependency chains are far
// shallower; the bound guards against pathological metadata.
const maxDepth = 50

// PyPI installs packages from the Python Package Index.
//
// Resolution is sequential: one command, one blocking registry call at a
// time. Parallel multi-package installs are a deliberate non-feature while
// virtualenv write semantics stay single-writer.
type PyPI struct {
	client  *pypi.Client
	siteDir string
	logger  func(string, ...any)
}

// NewPyPI creates an installer backed by the given registry client.
// siteDir is the virtualenv site-packages directory to install into; pass
// "" for metadata-only mode. logger receives progress and warning messages
// (optional).
func NewPyPI(client *pypi.Client, siteDir string, logger func(string, ...any)) *PyPI {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	return &PyPI{client: client, siteDir: siteDir, logger: logger}
}

// Install resolves and installs a package together with its transitive
// dependencies, reporting every pulled-in package with its immediate
// requiring parent. An empty version installs the latest release.
func (p *PyPI) Install(ctx context.Context, name, version string) (*deps.InstallReport, error) {
	root, err := p.fetch(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if err := p.download(ctx, root); err != nil {
		return nil, err
	}

	report := &deps.InstallReport{Name: root.Name, Version: root.Version, SHA256: root.SHA256}

	type item struct {
		name   string
		parent string
		depth  int
	}
	resolved := map[string]*pypi.PackageInfo{root.Name: root}
	edges := map[[2]string]bool{}
	queue := make([]item, 0, len(root.Dependencies))
	for _, dep := range root.Dependencies {
		queue = append(queue, item{dep, root.Name, 1})
	}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth > maxDepth {
			continue
		}

		info, ok := resolved[it.name]
		if !ok {
			info, err = p.fetch(ctx, it.name, "")
			if err != nil {
				if errors.Is(err, integrations.ErrNotFound) {
					p.logger("skipping unresolvable dependency %s: %v", it.name, err)
					continue
				}
				return nil, err
			}
			if err := p.download(ctx, info); err != nil {
				return nil, err
			}
			resolved[it.name] = info
			next := it.depth + 1
			for _, dep := range info.Dependencies {
				queue = append(queue, item{dep, info.Name, next})
			}
		}

		if info.Name == root.Name {
			continue // cycles back to the root are not transitive edges
		}
		edge := [2]string{info.Name, it.parent}
		if !edges[edge] {
			edges[edge] = true
			report.Transitive = append(report.Transitive, deps.TransitiveDep{
				Name:    info.Name,
				Version: info.Version,
				SHA256:  info.SHA256,
				Parent:  it.parent,
			})
		}
	}

	return report, nil
}

// Uninstall removes the package's files from site-packages. Matching is by
// distribution name prefix ("werkzeug/", "werkzeug-2.2.2.dist-info/", ...).
// A package with no files present is not an error; it may never have been
// downloaded into this environment.
func (p *PyPI) Uninstall(ctx context.Context, name string) error {
	if p.siteDir == "" {
		return nil
	}
	key := deps.Normalize(name)

	dirEntries, err := os.ReadDir(p.siteDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, ent := range dirEntries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !matchesPackage(ent.Name(), key) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.siteDir, ent.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", ent.Name(), err)
		}
		p.logger("removed %s", filepath.Join(p.siteDir, ent.Name()))
	}
	return nil
}

// ResolveAll freshly resolves the full dependency set of the given packages
// without downloading anything. Each reported package carries the immediate
// requesters that pulled it in; the requested packages themselves carry
// none.
func (p *PyPI) ResolveAll(ctx context.Context, names []string) ([]deps.Resolved, error) {
	type node struct {
		info    *pypi.PackageInfo
		parents map[string]bool
		root    bool
	}
	nodes := map[string]*node{}

	type item struct {
		name   string
		parent string
		depth  int
	}
	var queue []item
	for _, name := range names {
		queue = append(queue, item{name: name})
	}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth > maxDepth {
			continue
		}

		key := deps.Normalize(it.name)
		if n, ok := nodes[key]; ok {
			if it.parent == "" {
				n.root = true
			} else if !n.root {
				n.parents[it.parent] = true
			}
			continue
		}

		info, err := p.fetch(ctx, it.name, "")
		if err != nil {
			if errors.Is(err, integrations.ErrNotFound) && it.parent != "" {
				p.logger("skipping unresolvable dependency %s: %v", it.name, err)
				continue
			}
			return nil, err
		}
		n := &node{info: info, parents: map[string]bool{}, root: it.parent == ""}
		if it.parent != "" {
			n.parents[it.parent] = true
		}
		nodes[info.Name] = n

		next := it.depth + 1
		for _, dep := range info.Dependencies {
			queue = append(queue, item{dep, info.Name, next})
		}
	}

	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]deps.Resolved, 0, len(keys))
	for _, k := range keys {
		n := nodes[k]
		var parents []string
		if !n.root {
			for parent := range n.parents {
				parents = append(parents, parent)
			}
			sort.Strings(parents)
		}
		out = append(out, deps.Resolved{
			Name:    n.info.Name,
			Version: n.info.Version,
			SHA256:  n.info.SHA256,
			Parents: parents,
		})
	}
	return out, nil
}

func (p *PyPI) fetch(ctx context.Context, name, version string) (*pypi.PackageInfo, error) {
	if version != "" {
		return p.client.FetchRelease(ctx, name, version, false)
	}
	return p.client.FetchPackage(ctx, name, false)
}

// download fetches the release artifact and unpacks wheels into
// site-packages. Source distributions are skipped; building them is a pip
// concern, not a bookkeeping one.
func (p *PyPI) download(ctx context.Context, info *pypi.PackageInfo) error {
	if p.siteDir == "" || info.ArtifactURL == "" {
		return nil
	}
	if !strings.HasSuffix(info.Filename, ".whl") {
		p.logger("skipping non-wheel artifact %s", info.Filename)
		return nil
	}

	p.logger("downloading %s", info.Filename)
	data, err := p.client.Download(ctx, info.ArtifactURL)
	if err != nil {
		return fmt.Errorf("download %s: %w", info.Filename, err)
	}
	return extractWheel(data, p.siteDir)
}

// matchesPackage reports whether a site-packages entry belongs to the
// distribution: "werkzeug", "werkzeug-2.2.2.dist-info", "markupsafe.libs".
func matchesPackage(filename, key string) bool {
	base, _, _ := strings.Cut(filename, "-")
	base, _, _ = strings.Cut(base, ".")
	return deps.Normalize(base) == key
}
