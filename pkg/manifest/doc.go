// Package manifest serializes the dependency graph to and from the
// supported on-disk layouts.
//
// Two codecs exist:
//
//   - [Pyproject]: dependency lists embedded in a pyproject.toml document,
//     sharing the file with other project metadata (merge-write)
//   - [Moppifile]: the dedicated flat moppi.yaml document
//
// [Detect] selects a codec by filename before any business logic runs.
// Both codecs write deterministically (entries sorted by normalized name,
// map keys sorted by the encoders), so repeated saves of an unchanged graph
// are byte-identical. Reading is tolerant of legacy notations; writing
// always uses the canonical current notation.
package manifest
