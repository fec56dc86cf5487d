package script

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// PropertySpec describes one property of a command kind.
type PropertySpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Required    bool              `json:"required,omitempty"`
	Default     string            `json:"default,omitempty"`
	Domain      automation.Domain `json:"domain,omitempty"`

	// Raw properties are passed to the command without variable
	// resolution, for values such as JSON that use braces literally.
	Raw bool `json:"raw,omitempty"`
}

// RunFunc executes a command with its resolved properties.
type RunFunc func(ctx context.Context, rc *automation.RunContext, props map[string]string) error

// ValidateFunc returns problems with a command's unresolved properties.
type ValidateFunc func(props map[string]string) []string

// Descriptor defines a command kind.
type Descriptor struct {
	Kind        string         `json:"kind"`
	Group       string         `json:"group"`
	Description string         `json:"description"`
	Properties  []PropertySpec `json:"properties,omitempty"`

	Validate ValidateFunc                         `json:"-"`
	Run      RunFunc                              `json:"-"`
	Display  func(props map[string]string) string `json:"-"`
}

// Property returns the PropertySpec for name.
func (d *Descriptor) Property(name string) (PropertySpec, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySpec{}, false
}

// Catalog maps command kinds to their descriptors. It is safe for
// concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]*Descriptor
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{items: make(map[string]*Descriptor)}
}

// Register adds a command kind.
func (c *Catalog) Register(d Descriptor) error {
	if d.Kind == "" {
		return fmt.Errorf("%w: descriptor has no kind", ErrInvalidDocument)
	}
	if d.Run == nil {
		return fmt.Errorf("%w: %q has no run function", ErrInvalidDocument, d.Kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[d.Kind]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, d.Kind)
	}
	desc := d
	c.items[d.Kind] = &desc
	return nil
}

// MustRegister is Register that panics, for built-in tables.
func (c *Catalog) MustRegister(descs ...Descriptor) {
	for _, d := range descs {
		if err := c.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the descriptor for kind.
func (c *Catalog) Lookup(kind string) (*Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.items[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
	return d, nil
}

// Descriptors returns every registered kind ordered by group, then kind.
func (c *Catalog) Descriptors() []Descriptor {
	c.mu.RLock()
	out := make([]Descriptor, 0, len(c.items))
	for _, d := range c.items {
		out = append(out, *d)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Len returns the number of registered kinds.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
