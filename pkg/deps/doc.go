// Package deps models the project's dependency graph and reconciles it with
// installer-reported state.
//
// # Overview
//
// A [Graph] tracks three classes of packages:
//
//   - direct: explicitly requested for runtime use
//   - dev: explicitly requested, development only
//   - indirect: pulled in transitively, each carrying a "needed by" set of
//     back-references to the packages whose installation caused it
//
// Names are case-insensitive unique keys within a class ([Normalize] applies
// PEP 503 rules); a name is never tracked as both direct and dev at once.
// Indirect entries whose NeededBy set drains are garbage-collected by
// [Graph.PruneOrphans] rather than retained as orphans.
//
// # Reconciliation
//
// The [Reconciler] translates an [Installer] capability's reported outcome
// into graph mutations:
//
//   - Add: install, record direct entries, accumulate reported single-hop
//     transitive edges as indirect entries
//   - Remove: all-or-nothing across the batch, then drop back-references and
//     prune orphans
//   - Update: targeted re-resolution preserving classification, or a full
//     re-resolution that rebuilds the indirect class from scratch
//   - Apply: reinstall everything pinned in the manifest without mutating
//     the graph
//
// The core records whatever versions the installer resolved; it performs no
// version-constraint solving of its own and never inspects installer-native
// output beyond the reported structures in installer.go.
//
// # Ownership
//
// A graph is loaded by a manifest codec, mutated by exactly one reconciler
// pass, persisted, and discarded. Nothing in this package is safe for
// concurrent use, and nothing needs to be.
package deps
