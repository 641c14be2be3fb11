package deps

import (
	"sort"
	"strings"

	"github.com/lemanyk/moppi/pkg/errors"
)

// Class identifies which dependency class an entry belongs to.
type Class int

const (
	// ClassDirect marks packages explicitly requested for runtime use.
	ClassDirect Class = iota
	// ClassDev marks packages explicitly requested for development only.
	ClassDev
	// ClassIndirect marks packages pulled in transitively.
	ClassIndirect
)

// String returns the class name as used in manifests and logs.
func (c Class) String() string {
	switch c {
	case ClassDirect:
		return "direct"
	case ClassDev:
		return "dev"
	case ClassIndirect:
		return "indirect"
	default:
		return "unknown"
	}
}

// Normalize converts a package name to its canonical form.
// Applies lowercase and replaces underscores with hyphens, following PEP 503
// normalization rules used by PyPI. Graph keys are always normalized;
// Entry.Name keeps the casing the package was first seen with.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Entry is one tracked package.
type Entry struct {
	Name    string          // Display name, casing preserved from input
	Version string          // Exact pinned version, stored and compared as text
	SHA256  string          // Optional content hash, record-keeping only
	// NeededBy holds the normalized names of packages whose installation
	// pulled this entry in. Nil for direct and dev entries.
	NeededBy map[string]bool
}

// Parents returns the NeededBy set as a sorted slice of normalized names.
func (e *Entry) Parents() []string {
	if len(e.NeededBy) == 0 {
		return nil
	}
	parents := make([]string, 0, len(e.NeededBy))
	for p := range e.NeededBy {
		parents = append(parents, p)
	}
	sort.Strings(parents)
	return parents
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.NeededBy != nil {
		c.NeededBy = make(map[string]bool, len(e.NeededBy))
		for p := range e.NeededBy {
			c.NeededBy[p] = true
		}
	}
	return &c
}

// Graph is the in-memory dependency model: direct, dev and indirect entries
// keyed by normalized name. A name is unique within its class and never
// appears in both the direct and dev classes. The zero value is not usable;
// construct with NewGraph.
//
// The graph is owned by a single command invocation for its entire lifetime
// and is not safe for concurrent use.
type Graph struct {
	direct   map[string]*Entry
	dev      map[string]*Entry
	indirect map[string]*Entry
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		direct:   make(map[string]*Entry),
		dev:      make(map[string]*Entry),
		indirect: make(map[string]*Entry),
	}
}

// AddDirect inserts or overwrites an explicitly requested entry. The dev flag
// selects the class; if the name already exists in the other explicit class
// it is moved, and an existing indirect entry for the name is promoted (its
// provenance is no longer tracked once the package is requested directly).
func (g *Graph) AddDirect(name, version, sha256 string, dev bool) {
	key := Normalize(name)
	delete(g.indirect, key)
	entry := &Entry{Name: name, Version: version, SHA256: sha256}
	if dev {
		delete(g.direct, key)
		g.dev[key] = entry
	} else {
		delete(g.dev, key)
		g.direct[key] = entry
	}
}

// RemoveDirect removes the entry from the direct or dev class, wherever it is
// found. It does not cascade into indirect entries; that is the reconciler's
// job. Returns a PACKAGE_NOT_FOUND error if the name is in neither class.
func (g *Graph) RemoveDirect(name string) error {
	key := Normalize(name)
	if _, ok := g.direct[key]; ok {
		delete(g.direct, key)
		return nil
	}
	if _, ok := g.dev[key]; ok {
		delete(g.dev, key)
		return nil
	}
	return errors.New(errors.ErrCodePackageNotFound, "package %q is not tracked", name)
}

// UpsertIndirect records a transitively pulled package. If the name already
// exists in the indirect class, the parent is added to its NeededBy set
// (deduplicated) and the version is updated to the reported value; otherwise
// a new indirect entry is created. A non-empty sha256 replaces the stored one.
func (g *Graph) UpsertIndirect(name, version, sha256, parent string) {
	key := Normalize(name)
	if entry, ok := g.indirect[key]; ok {
		entry.Version = version
		if sha256 != "" {
			entry.SHA256 = sha256
		}
		entry.NeededBy[Normalize(parent)] = true
		return
	}
	g.indirect[key] = &Entry{
		Name:     name,
		Version:  version,
		SHA256:   sha256,
		NeededBy: map[string]bool{Normalize(parent): true},
	}
}

// DropNeededBy discards every back-reference to the given name from the
// indirect class. Entries left with an empty NeededBy set are removed by a
// subsequent PruneOrphans call.
func (g *Graph) DropNeededBy(name string) {
	key := Normalize(name)
	for _, entry := range g.indirect {
		delete(entry.NeededBy, key)
	}
}

// PruneOrphans removes every indirect entry whose NeededBy set is empty or
// references only names no longer present in the graph. Pruning one entry
// can orphan a deeper one, so it iterates to a fixpoint. Returns the
// normalized names of the pruned entries, sorted.
func (g *Graph) PruneOrphans() []string {
	var pruned []string
	for {
		changed := false
		for key, entry := range g.indirect {
			for p := range entry.NeededBy {
				if !g.Has(p) {
					delete(entry.NeededBy, p)
					changed = true
				}
			}
			if len(entry.NeededBy) == 0 {
				delete(g.indirect, key)
				pruned = append(pruned, key)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	sort.Strings(pruned)
	return pruned
}

// ClearIndirect drops the entire indirect class. Used by full update, which
// rebuilds indirect provenance from a fresh installer report.
func (g *Graph) ClearIndirect() {
	g.indirect = make(map[string]*Entry)
}

// Has reports whether the name is tracked in any class.
func (g *Graph) Has(name string) bool {
	_, _, ok := g.Lookup(name)
	return ok
}

// Lookup finds an entry by name in any class.
func (g *Graph) Lookup(name string) (*Entry, Class, bool) {
	key := Normalize(name)
	if e, ok := g.direct[key]; ok {
		return e, ClassDirect, true
	}
	if e, ok := g.dev[key]; ok {
		return e, ClassDev, true
	}
	if e, ok := g.indirect[key]; ok {
		return e, ClassIndirect, true
	}
	return nil, 0, false
}

// Direct returns the direct entries sorted by normalized name.
func (g *Graph) Direct() []*Entry { return sortedEntries(g.direct) }

// Dev returns the dev entries sorted by normalized name.
func (g *Graph) Dev() []*Entry { return sortedEntries(g.dev) }

// Indirect returns the indirect entries sorted by normalized name.
func (g *Graph) Indirect() []*Entry { return sortedEntries(g.indirect) }

// Len returns the total number of tracked entries across all classes.
func (g *Graph) Len() int {
	return len(g.direct) + len(g.dev) + len(g.indirect)
}

// Empty reports whether the graph tracks no entries at all.
func (g *Graph) Empty() bool { return g.Len() == 0 }

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for k, e := range g.direct {
		c.direct[k] = e.clone()
	}
	for k, e := range g.dev {
		c.dev[k] = e.clone()
	}
	for k, e := range g.indirect {
		c.indirect[k] = e.clone()
	}
	return c
}

// Equal reports whether two graphs track the same entries: same classes,
// names, versions, checksums and NeededBy sets.
func (g *Graph) Equal(other *Graph) bool {
	return equalClass(g.direct, other.direct) &&
		equalClass(g.dev, other.dev) &&
		equalClass(g.indirect, other.indirect)
}

func equalClass(a, b map[string]*Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for key, ea := range a {
		eb, ok := b[key]
		if !ok {
			return false
		}
		if ea.Name != eb.Name || ea.Version != eb.Version || ea.SHA256 != eb.SHA256 {
			return false
		}
		if len(ea.NeededBy) != len(eb.NeededBy) {
			return false
		}
		for p := range ea.NeededBy {
			if !eb.NeededBy[p] {
				return false
			}
		}
	}
	return true
}

func sortedEntries(m map[string]*Entry) []*Entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, m[k])
	}
	return entries
}
