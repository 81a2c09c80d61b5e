package plugin

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

// Manifest file names, in the order they are looked for.
var ManifestNames = []string{"manifest.json", "manifest.yaml", "manifest.yml"}

// Manifest describes a plugin directory.
type Manifest struct {
	Name        string              `yaml:"name"`
	Version     string              `yaml:"version"`
	Author      string              `yaml:"author"`
	Description string              `yaml:"description"`
	Components  []ComponentManifest `yaml:"components"`
}

// ComponentManifest declares one component. DataSource, Settings and
// Widget are module references of the form module.ClassName.
type ComponentManifest struct {
	Name          string `yaml:"name"`
	DataSource    string `yaml:"datasource"`
	Settings      string `yaml:"settings"`
	Widget        string `yaml:"widget"`
	DataNamespace string `yaml:"datanamespace"`
}

// LoadManifest reads and validates a manifest. JSON manifests are read
// with the YAML decoder, which accepts them unchanged.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, terrors.Wrap("PLUGIN-0001", err, map[string]any{"Path": path})
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, terrors.Wrap("PLUGIN-0001", err, map[string]any{"Path": path})
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate(path string) error {
	missing := func(field string) error {
		return terrors.New("PLUGIN-0002", map[string]any{"Path": path, "Field": field})
	}
	if strings.TrimSpace(m.Name) == "" {
		return missing("name")
	}
	if strings.TrimSpace(m.Version) == "" {
		return missing("version")
	}
	for i, c := range m.Components {
		if strings.TrimSpace(c.Name) == "" {
			return missing(fmt.Sprintf("components[%d].name", i))
		}
	}
	return nil
}

// Identity derives an identifier from a display name: lowercased, keeping
// only letters, digits and underscores.
func Identity(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SplitRef splits a module reference into module and class name.
func SplitRef(ref string) (module, class string, err error) {
	module, class, ok := strings.Cut(ref, ".")
	if !ok || module == "" || class == "" {
		return "", "", terrors.New("PLUGIN-0004", map[string]any{"Module": ref})
	}
	return module, class, nil
}
