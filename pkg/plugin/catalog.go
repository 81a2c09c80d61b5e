package plugin

import (
	"sort"
	"sync"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

// Factory builds a component module. It receives the owning component.
type Factory func(c *Component) (any, error)

// Catalog maps module references (module.ClassName) to factories. Go has
// no runtime module loading, so plugins register their factories here and
// manifests refer to them by name.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: map[string]Factory{}}
}

// Register adds a factory under ref, replacing any existing one.
func (c *Catalog) Register(ref string, f Factory) error {
	if _, _, err := SplitRef(ref); err != nil {
		return err
	}
	c.mu.Lock()
	c.factories[ref] = f
	c.mu.Unlock()
	return nil
}

// MustRegister is Register for package initialisation.
func (c *Catalog) MustRegister(ref string, f Factory) {
	if err := c.Register(ref, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for ref.
func (c *Catalog) Lookup(ref string) (Factory, error) {
	if _, _, err := SplitRef(ref); err != nil {
		return nil, err
	}
	c.mu.RLock()
	f, ok := c.factories[ref]
	c.mu.RUnlock()
	if !ok {
		err := terrors.New("PLUGIN-0003", map[string]any{"Module": ref})
		return nil, err.WithSuggestion(ref, c.Refs())
	}
	return f, nil
}

// Refs returns every registered reference, sorted.
func (c *Catalog) Refs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	refs := make([]string, 0, len(c.factories))
	for ref := range c.factories {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
