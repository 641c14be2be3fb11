package manifest

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lemanyk/moppi/pkg/deps"
	"github.com/lemanyk/moppi/pkg/errors"
)

// parentSep separates a dependency pin from its parent pins in the compact
// pair notation: "dep==1.0 :: parent==2.0".
const parentSep = " :: "

// Pyproject persists the graph inside a pyproject.toml document. Dependency
// lists are nested under the standard project table; indirect dependencies
// and checksum lock lines live under tool.moppi. Everything else in the
// document belongs to other tools and survives a save untouched.
type Pyproject struct{}

func (p *Pyproject) Type() string { return "pyproject.toml" }

func (p *Pyproject) Supports(name string) bool {
	return name == "pyproject.toml" || strings.HasSuffix(name, ".toml")
}

func (p *Pyproject) Load(path string) (*deps.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeManifestNotFound, err, "manifest %s", path)
		}
		return nil, err
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestParse, err, "parse %s", path)
	}

	g := deps.NewGraph()
	project := tableAt(doc, "project")

	for i, item := range listAt(project, "dependencies") {
		key := fmt.Sprintf("project.dependencies[%d]", i)
		name, version, err := specString(item)
		if err != nil {
			return nil, parseErr(path, key, err)
		}
		g.AddDirect(name, version, "", false)
	}

	for i, item := range listAt(tableAt(project, "optional-dependencies"), "dev") {
		key := fmt.Sprintf("project.optional-dependencies.dev[%d]", i)
		name, version, err := specString(item)
		if err != nil {
			return nil, parseErr(path, key, err)
		}
		g.AddDirect(name, version, "", true)
	}

	moppi := tableAt(doc, "tool", "moppi")

	for i, item := range listAt(moppi, "indirect-dependencies") {
		key := fmt.Sprintf("tool.moppi.indirect-dependencies[%d]", i)
		if err := p.loadIndirect(g, item); err != nil {
			return nil, parseErr(path, key, err)
		}
	}

	for i, item := range listAt(moppi, "dependency-lock") {
		key := fmt.Sprintf("tool.moppi.dependency-lock[%d]", i)
		if err := p.loadLock(g, item); err != nil {
			return nil, parseErr(path, key, err)
		}
	}

	return g, nil
}

// loadIndirect accepts both notations for an indirect entry: the canonical
// "dep==1.0 :: parent==2.0" string (more " :: parent==v" segments for
// multiple parents) and the legacy two-element ["dep==1.0", "parent==2.0"]
// array. Output always uses the canonical string form.
func (p *Pyproject) loadIndirect(g *deps.Graph, item any) error {
	var segs []string
	switch v := item.(type) {
	case string:
		segs = strings.Split(v, parentSep)
	case []any:
		for _, el := range v {
			s, ok := el.(string)
			if !ok {
				return fmt.Errorf("expected string elements, got %T", el)
			}
			segs = append(segs, s)
		}
	default:
		return fmt.Errorf("expected string or array, got %T", item)
	}

	if len(segs) < 2 {
		return fmt.Errorf("indirect dependency missing parent")
	}
	name, version, err := parseSpec(segs[0])
	if err != nil {
		return err
	}
	for _, seg := range segs[1:] {
		parent, _, err := parseSpec(seg)
		if err != nil {
			return err
		}
		g.UpsertIndirect(name, version, "", parent)
	}
	return nil
}

// loadLock applies a "dep==1.0[ :: parent==2.0...] :: sha256" lock line.
// The parent segments duplicate the indirect list and are skipped; only the
// checksum is applied, and only when the pinned version still matches.
func (p *Pyproject) loadLock(g *deps.Graph, item any) error {
	s, ok := item.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", item)
	}
	segs := strings.Split(s, parentSep)
	name, version, err := parseSpec(segs[0])
	if err != nil {
		return err
	}
	last := segs[len(segs)-1]
	if len(segs) < 2 || strings.Contains(last, "==") {
		return nil // no checksum segment, stale notation
	}
	if e, _, found := g.Lookup(name); found && e.Version == version {
		e.SHA256 = last
	}
	return nil
}

func (p *Pyproject) Save(g *deps.Graph, path string) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(errors.ErrCodeManifestParse, err, "parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	project := ensureTable(doc, "project")
	project["dependencies"] = specList(g.Direct())

	if devs := g.Dev(); len(devs) > 0 {
		ensureTable(project, "optional-dependencies")["dev"] = specList(devs)
	} else if optional := tableAt(project, "optional-dependencies"); optional != nil {
		delete(optional, "dev")
		if len(optional) == 0 {
			delete(project, "optional-dependencies")
		}
	}

	var indirect []string
	for _, e := range g.Indirect() {
		line := formatSpec(e.Name, e.Version)
		for _, parent := range e.Parents() {
			line += parentSep + specFor(g, parent)
		}
		indirect = append(indirect, line)
	}
	lock := lockLines(g)

	moppi := ensureTable(ensureTable(doc, "tool"), "moppi")
	setOrDelete(moppi, "indirect-dependencies", indirect)
	setOrDelete(moppi, "dependency-lock", lock)
	if len(moppi) == 0 {
		tool := tableAt(doc, "tool")
		delete(tool, "moppi")
		if len(tool) == 0 {
			delete(doc, "tool")
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", path)
	}
	return writeFileAtomic(path, buf.Bytes())
}

// lockLines emits one checksum line per entry carrying a hash, across all
// three classes, globally sorted by normalized name.
func lockLines(g *deps.Graph) []string {
	entries := g.Direct()
	entries = append(entries, g.Dev()...)
	entries = append(entries, g.Indirect()...)
	sort.Slice(entries, func(i, j int) bool {
		return deps.Normalize(entries[i].Name) < deps.Normalize(entries[j].Name)
	})

	var lines []string
	for _, e := range entries {
		if e.SHA256 == "" {
			continue
		}
		line := formatSpec(e.Name, e.Version)
		for _, parent := range e.Parents() {
			line += parentSep + specFor(g, parent)
		}
		lines = append(lines, line+parentSep+e.SHA256)
	}
	return lines
}

func specList(entries []*deps.Entry) []string {
	specs := make([]string, 0, len(entries))
	for _, e := range entries {
		specs = append(specs, formatSpec(e.Name, e.Version))
	}
	return specs
}

func specString(item any) (name, version string, err error) {
	s, ok := item.(string)
	if !ok {
		return "", "", fmt.Errorf("expected string, got %T", item)
	}
	return parseSpec(s)
}

// tableAt walks nested tables, returning nil when any level is absent.
func tableAt(doc map[string]any, keys ...string) map[string]any {
	cur := doc
	for _, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func ensureTable(doc map[string]any, key string) map[string]any {
	if tbl, ok := doc[key].(map[string]any); ok {
		return tbl
	}
	tbl := map[string]any{}
	doc[key] = tbl
	return tbl
}

func listAt(tbl map[string]any, key string) []any {
	if tbl == nil {
		return nil
	}
	l, _ := tbl[key].([]any)
	return l
}

func setOrDelete(tbl map[string]any, key string, values []string) {
	if len(values) > 0 {
		tbl[key] = values
	} else {
		delete(tbl, key)
	}
}

func parseErr(path, key string, err error) error {
	return errors.Wrap(errors.ErrCodeManifestParse, err, "parse %s: %s", path, key)
}

// Ensure Pyproject implements Codec.
var _ Codec = (*Pyproject)(nil)
