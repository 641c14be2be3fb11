package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lemanyk/moppi/pkg/deps"
	"github.com/lemanyk/moppi/pkg/errors"
)

// Moppifile persists the graph in the dedicated flat moppi.yaml layout:
// top-level dependencies, dev_dependencies and indirect_dependencies maps
// keyed by normalized name. Unrelated top-level keys in the document are
// preserved on save.
type Moppifile struct{}

func (m *Moppifile) Type() string { return "moppi.yaml" }

func (m *Moppifile) Supports(name string) bool {
	return name == "moppi.yaml" || strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func (m *Moppifile) Load(path string) (*deps.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeManifestNotFound, err, "manifest %s", path)
		}
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestParse, err, "parse %s", path)
	}

	g := deps.NewGraph()
	if err := m.loadClass(g, doc, path, "dependencies", false); err != nil {
		return nil, err
	}
	if err := m.loadClass(g, doc, path, "dev_dependencies", true); err != nil {
		return nil, err
	}
	if err := m.loadIndirect(g, doc, path); err != nil {
		return nil, err
	}
	return g, nil
}

func (m *Moppifile) loadClass(g *deps.Graph, doc map[string]any, path, key string, dev bool) error {
	for pkgKey, v := range tableAt(doc, key) {
		entry, ok := v.(map[string]any)
		if !ok {
			return parseErr(path, key+"."+pkgKey, fmt.Errorf("expected mapping, got %T", v))
		}
		name, version, sha := entryFields(entry, pkgKey)
		g.AddDirect(name, version, sha, dev)
	}
	return nil
}

func (m *Moppifile) loadIndirect(g *deps.Graph, doc map[string]any, path string) error {
	const key = "indirect_dependencies"
	for pkgKey, v := range tableAt(doc, key) {
		entry, ok := v.(map[string]any)
		if !ok {
			return parseErr(path, key+"."+pkgKey, fmt.Errorf("expected mapping, got %T", v))
		}
		name, version, sha := entryFields(entry, pkgKey)
		parents := listAt(entry, "needed_by")
		if len(parents) == 0 {
			return parseErr(path, key+"."+pkgKey, fmt.Errorf("indirect entry missing needed_by"))
		}
		for _, p := range parents {
			parent, ok := p.(string)
			if !ok {
				return parseErr(path, key+"."+pkgKey+".needed_by", fmt.Errorf("expected string, got %T", p))
			}
			g.UpsertIndirect(name, version, sha, parent)
		}
	}
	return nil
}

func (m *Moppifile) Save(g *deps.Graph, path string) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(errors.ErrCodeManifestParse, err, "parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}

	doc["dependencies"] = classMap(g.Direct(), false)
	doc["dev_dependencies"] = classMap(g.Dev(), false)
	doc["indirect_dependencies"] = classMap(g.Indirect(), true)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", path)
	}
	return writeFileAtomic(path, data)
}

func classMap(entries []*deps.Entry, indirect bool) map[string]any {
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		fields := map[string]any{
			"name":    e.Name,
			"version": e.Version,
		}
		if e.SHA256 != "" {
			fields["sha256"] = e.SHA256
		}
		if indirect {
			fields["needed_by"] = e.Parents()
		}
		out[deps.Normalize(e.Name)] = fields
	}
	return out
}

func entryFields(entry map[string]any, fallbackName string) (name, version, sha string) {
	name = stringAt(entry, "name")
	if name == "" {
		name = fallbackName
	}
	return name, stringAt(entry, "version"), stringAt(entry, "sha256")
}

func stringAt(tbl map[string]any, key string) string {
	s, _ := tbl[key].(string)
	return s
}

// Ensure Moppifile implements Codec.
var _ Codec = (*Moppifile)(nil)
