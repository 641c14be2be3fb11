package deps

import "context"

// TransitiveDep is one single-hop edge from an installer report: a package
// that ended up installed because its Parent required it. The core never
// re-derives transitive closure itself; it only accumulates these edges.
type TransitiveDep struct {
	Name    string
	Version string
	SHA256  string
	Parent  string // Immediate requiring package
}

// InstallReport describes the outcome of installing a single package.
type InstallReport struct {
	Name       string // Registry-canonical name of the requested package
	Version    string // Version the installer resolved to
	SHA256     string // Content hash of the fetched artifact, if known
	Transitive []TransitiveDep
}

// Resolved describes one package in a full-resolution report, annotated with
// the immediate requesters that pulled it in. Packages requested directly
// have an empty Parents slice.
type Resolved struct {
	Name    string
	Version string
	SHA256  string
	Parents []string
}

// Installer is the external capability that actually resolves versions and
// performs install/uninstall work. The core treats it as opaque, possibly
// slow and possibly failing; every call blocks until the installer is done.
type Installer interface {
	// Install resolves and installs a package. An empty version installs
	// the latest release; a non-empty version pins the exact release
	// (used by apply to reconstruct an environment from the manifest).
	Install(ctx context.Context, name, version string) (*InstallReport, error)

	// Uninstall removes an installed package.
	Uninstall(ctx context.Context, name string) error

	// ResolveAll freshly resolves the full dependency set of the given
	// packages, reporting every package that would be present together
	// with its immediate requesters.
	ResolveAll(ctx context.Context, names []string) ([]Resolved, error)
}
