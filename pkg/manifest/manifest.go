package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lemanyk/moppi/pkg/deps"
	"github.com/lemanyk/moppi/pkg/errors"
)

// Codec maps between the in-memory dependency graph and one persisted
// manifest layout. Implementations must produce an identical graph for
// logically equivalent inputs regardless of encoding, and must write
// deterministically: saving the same graph twice yields byte-identical
// output.
type Codec interface {
	// Load reads the manifest at path and returns the dependency graph.
	// Returns a MANIFEST_NOT_FOUND error if the file is absent and a
	// MANIFEST_PARSE_ERROR (with file and key context) for malformed input.
	Load(path string) (*deps.Graph, error)
	// Save persists the graph. Unrelated content already present in the
	// target file is preserved (merge-write, not overwrite).
	Save(g *deps.Graph, path string) error
	// Supports reports whether this codec handles the given filename.
	Supports(filename string) bool
	// Type returns the layout identifier (e.g., "pyproject.toml").
	Type() string
}

// Codecs returns the supported codecs in detection order.
func Codecs() []Codec {
	return []Codec{&Pyproject{}, &Moppifile{}}
}

// Detect finds a codec that supports the given file path. The codec is
// selected up front by filename; business logic never sniffs document shape.
func Detect(path string, codecs ...Codec) (Codec, error) {
	if len(codecs) == 0 {
		codecs = Codecs()
	}
	name := filepath.Base(path)
	for _, c := range codecs {
		if c.Supports(name) {
			return c, nil
		}
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "unsupported manifest: %s", name)
}

// parseSpec parses a "name==1.0" style pin. Reading is tolerant: spaces and
// parens are stripped, the >= and <= operators from older manifests are
// accepted, and a bare name yields an empty version. Writing always uses the
// canonical "name==version" notation via formatSpec.
func parseSpec(s string) (name, version string, err error) {
	clean := strings.NewReplacer(" ", "", "(", "", ")", "").Replace(s)
	if clean == "" {
		return "", "", fmt.Errorf("empty dependency spec")
	}
	for _, op := range []string{"==", ">=", "<="} {
		if before, after, found := strings.Cut(clean, op); found {
			if before == "" {
				return "", "", fmt.Errorf("missing package name in %q", s)
			}
			return before, after, nil
		}
	}
	return clean, "", nil
}

// formatSpec returns the canonical "name==version" pin.
func formatSpec(name, version string) string {
	return name + "==" + version
}

// specFor formats the canonical pin for a parent reference, resolving the
// parent's version through the graph. Indirect entries always reference
// names present in the graph, so the fallback to a bare name is defensive
// only for hand-edited manifests.
func specFor(g *deps.Graph, name string) string {
	if e, _, ok := g.Lookup(name); ok {
		return formatSpec(e.Name, e.Version)
	}
	return name
}

// writeFileAtomic writes data via a temp file and rename so a failed save
// never leaves a half-written manifest behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".moppi-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
