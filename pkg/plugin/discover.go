package plugin

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sambeau/pkmeter/pkg/pklog"
)

// DefaultMaxDepth is how many directory levels below each plugin dir are
// searched for manifests.
const DefaultMaxDepth = 2

// Registry discovers plugins and binds their components to factories.
type Registry struct {
	Catalog  *Catalog
	Env      *Env
	MaxDepth int
}

// NewRegistry returns a registry using catalog and env.
func NewRegistry(catalog *Catalog, env *Env) *Registry {
	return &Registry{Catalog: catalog, Env: env, MaxDepth: DefaultMaxDepth}
}

func (r *Registry) log() pklog.Logger { return pklog.OrDiscard(r.Env.Log) }

// Discover scans dirs for manifests and returns the plugins keyed by ID.
// A plugin with a bad manifest or an unknown module is logged and
// skipped. When two plugins share an ID the first found wins.
func (r *Registry) Discover(dirs []string) map[string]*Plugin {
	plugins := map[string]*Plugin{}
	for _, dir := range dirs {
		for _, path := range r.manifests(dir) {
			p, err := r.Load(path)
			if err != nil {
				r.log().Warnf("skipping plugin %s: %v", path, err)
				continue
			}
			if prev, ok := plugins[p.ID]; ok {
				r.log().Warnf("skipping plugin %s: id %s already loaded from %s", path, p.ID, prev.RootDir)
				continue
			}
			r.log().Infof("loaded plugin %s %s (%d components)", p.ID, p.Version, len(p.Components))
			plugins[p.ID] = p
		}
	}
	return plugins
}

// manifests lists manifest files under dir, at most MaxDepth levels down.
func (r *Registry) manifests(dir string) []string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			r.log().Warnf("plugin dir %s: %v", dir, err)
		}
		return nil
	}
	var found []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.log().Warnf("plugin dir %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if depth(dir, path) > r.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(ManifestNames, d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	return found
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// Load reads one manifest and resolves every module reference.
func (r *Registry) Load(path string) (*Plugin, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	p := &Plugin{
		ID:          Identity(m.Name),
		Name:        m.Name,
		Version:     m.Version,
		Author:      m.Author,
		Description: m.Description,
		RootDir:     filepath.Dir(path),
		Manifest:    m,
	}
	for _, cm := range m.Components {
		c := &Component{
			Plugin:    p,
			ID:        Identity(cm.Name),
			Name:      cm.Name,
			Manifest:  cm,
			env:       r.Env,
			factories: map[string]Factory{},
			instances: map[string]any{},
		}
		c.FullID = p.ID + "." + c.ID
		for _, kind := range []string{KindDataSource, KindSettings, KindWidget} {
			ref := c.Ref(kind)
			if ref == "" {
				continue
			}
			f, err := r.Catalog.Lookup(ref)
			if err != nil {
				return nil, err
			}
			c.factories[kind] = f
		}
		p.Components = append(p.Components, c)
	}
	return p, nil
}
