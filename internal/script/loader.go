package script

import (
	"errors"
	"fmt"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// Loader turns documents into executable commands, converting property
// text between storage and display form according to each property's
// keyword domain.
type Loader struct {
	catalog *Catalog
	codec   *automation.Codec
}

// NewLoader creates a loader.
func NewLoader(catalog *Catalog, codec *automation.Codec) *Loader {
	return &Loader{catalog: catalog, codec: codec}
}

// Catalog returns the loader's command catalog.
func (l *Loader) Catalog() *Catalog {
	return l.catalog
}

// Build converts every entry of doc into a Step. All unknown command kinds
// are reported together.
func (l *Loader) Build(doc *Document) ([]automation.Command, error) {
	cmds := make([]automation.Command, 0, len(doc.Commands))
	var errs []error

	for i, rec := range doc.Commands {
		desc, err := l.catalog.Lookup(rec.Command)
		if err != nil {
			errs = append(errs, fmt.Errorf("command %d: %w", i+1, err))
			continue
		}
		values := l.convert(desc, rec.Properties, l.codec.ToDisplayForm)
		step := NewStep(desc, values, rec.ContinueOnError, rec.IsEnabled()).WithComment(rec.Comment)
		cmds = append(cmds, step)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cmds, nil
}

// Load parses a script file and builds its commands.
func (l *Loader) Load(path string) (*Document, []automation.Command, error) {
	doc, err := ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	cmds, err := l.Build(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, cmds, nil
}

// Encode returns a copy of doc with every property converted to storage form.
func (l *Loader) Encode(doc *Document) (*Document, error) {
	out := &Document{
		Name:      doc.Name,
		Variables: append([]VariableDef(nil), doc.Variables...),
		Commands:  make([]CommandRecord, 0, len(doc.Commands)),
	}

	var errs []error
	for i, rec := range doc.Commands {
		desc, err := l.catalog.Lookup(rec.Command)
		if err != nil {
			errs = append(errs, fmt.Errorf("command %d: %w", i+1, err))
			continue
		}
		rec.Properties = l.convert(desc, rec.Properties, l.codec.ToStorageForm)
		out.Commands = append(out.Commands, rec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Help returns d with legacy markup in its descriptions expanded to the
// configured markers and keyword names.
func (l *Loader) Help(d Descriptor) Descriptor {
	d.Description = l.codec.ExpandEngineKeywords(d.Description)
	props := make([]PropertySpec, len(d.Properties))
	for i, p := range d.Properties {
		p.Description = l.codec.ExpandEngineKeywords(p.Description)
		props[i] = p
	}
	d.Properties = props
	return d
}

func (l *Loader) convert(desc *Descriptor, in map[string]string, fn func(string, automation.Domain) string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		domain := automation.DomainText
		if spec, ok := desc.Property(k); ok && spec.Domain != "" {
			domain = spec.Domain
		}
		out[k] = fn(v, domain)
	}
	return out
}
