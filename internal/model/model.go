// Package model describes the domain object model that items must conform to.
// Models are declared in YAML: a namespace plus, per class, the allowed
// attribute, reference and collection names.
package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"bioconv/internal/item"
	"bioconv/resources"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownClass is returned when an item's class is not in the model.
	ErrUnknownClass = errors.New("unknown class")
	// ErrUnknownField is returned when an item uses a field its class does not declare.
	ErrUnknownField = errors.New("unknown field")
)

// DefaultName is the model bundled with the binary.
const DefaultName = "genomic"

// ClassDescriptor lists the fields a class may carry.
type ClassDescriptor struct {
	Name        string   `yaml:"-"`
	Attributes  []string `yaml:"attributes"`
	References  []string `yaml:"references"`
	Collections []string `yaml:"collections"`
}

// Model is a named set of class descriptors.
type Model struct {
	Name      string                      `yaml:"name"`
	Namespace string                      `yaml:"namespace"`
	Classes   map[string]*ClassDescriptor `yaml:"classes"`
}

// Parse decodes a YAML model description.
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("model has no name")
	}
	if len(m.Classes) == 0 {
		return nil, fmt.Errorf("model %q declares no classes", m.Name)
	}
	for name, cd := range m.Classes {
		if cd == nil {
			cd = &ClassDescriptor{}
			m.Classes[name] = cd
		}
		cd.Name = name
	}
	return &m, nil
}

// LoadFile reads a model description from disk.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Parse(data)
}

// Load reads "<name>_model.yaml" from fsys.
func Load(fsys fs.FS, name string) (*Model, error) {
	data, err := fs.ReadFile(fsys, name+"_model.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read model %q: %w", name, err)
	}
	return Parse(data)
}

// Default returns the embedded genomic model.
func Default() (*Model, error) {
	return Load(resources.FS, DefaultName)
}

// Class returns the descriptor for a class name.
func (m *Model) Class(name string) (*ClassDescriptor, bool) {
	cd, ok := m.Classes[name]
	return cd, ok
}

// ClassNames returns the declared class names in sorted order.
func (m *Model) ClassNames() []string {
	names := make([]string, 0, len(m.Classes))
	for name := range m.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QualifiedName prefixes a class name with the model namespace.
func (m *Model) QualifiedName(class string) string {
	return m.Namespace + class
}

// Validate checks that every field on the item is declared by its class.
func (m *Model) Validate(it *item.Item) error {
	cd, ok := m.Classes[it.ClassName]
	if !ok {
		return fmt.Errorf("%w: %s (item %s)", ErrUnknownClass, it.ClassName, it.Identifier)
	}
	for _, a := range it.Attributes {
		if !contains(cd.Attributes, a.Name) {
			return fmt.Errorf("%w: attribute %s.%s", ErrUnknownField, cd.Name, a.Name)
		}
	}
	for _, r := range it.References {
		if !contains(cd.References, r.Name) {
			return fmt.Errorf("%w: reference %s.%s", ErrUnknownField, cd.Name, r.Name)
		}
	}
	for _, c := range it.Collections {
		if !contains(cd.Collections, c.Name) {
			return fmt.Errorf("%w: collection %s.%s", ErrUnknownField, cd.Name, c.Name)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
