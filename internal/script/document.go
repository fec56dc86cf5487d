package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Domain errors for the script package.
var (
	// ErrInvalidDocument is returned when a script cannot be parsed.
	ErrInvalidDocument = errors.New("script: invalid document")

	// ErrUnknownCommand is returned for a command kind missing from the catalog.
	ErrUnknownCommand = errors.New("script: unknown command")

	// ErrDuplicateCommand is returned when registering a kind twice.
	ErrDuplicateCommand = errors.New("script: command already registered")

	// ErrScriptNotFound is returned when a named script does not exist.
	ErrScriptNotFound = errors.New("script: not found")

	// ErrInvalidPath is returned for script names that escape the scripts folder.
	ErrInvalidPath = errors.New("script: invalid path")
)

// Document is a script as written to disk. Property values are in storage
// form; Loader converts them for execution.
type Document struct {
	Name      string          `yaml:"name" json:"name"`
	Variables []VariableDef   `yaml:"variables,omitempty" json:"variables,omitempty"`
	Commands  []CommandRecord `yaml:"commands" json:"commands"`
}

// VariableDef seeds a variable before the first command.
type VariableDef struct {
	Name  string `yaml:"name" json:"name"`
	Value any    `yaml:"value" json:"value"`
}

// CommandRecord is one command entry in a document.
type CommandRecord struct {
	Command         string            `yaml:"command" json:"command"`
	Properties      map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
	ContinueOnError bool              `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
	Enabled         *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Comment         string            `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// IsEnabled reports whether the command runs. Commands are enabled unless
// the document says otherwise.
func (r CommandRecord) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// InitialVariables returns the seeded variables as a map. Later entries
// with the same name win.
func (d *Document) InitialVariables() map[string]any {
	if len(d.Variables) == 0 {
		return nil
	}
	out := make(map[string]any, len(d.Variables))
	for _, v := range d.Variables {
		out[v.Name] = v.Value
	}
	return out
}

// Parse decodes a YAML or JSON script. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: document is empty", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	for i, c := range doc.Commands {
		if strings.TrimSpace(c.Command) == "" {
			return nil, fmt.Errorf("%w: command %d has no kind", ErrInvalidDocument, i+1)
		}
	}
	return &doc, nil
}

// ParseFile reads and decodes a script file. A document without a name
// is named after the file.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator or ResolvePath
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, fmt.Errorf("reading script: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// Marshal encodes a document as YAML.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding script: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding script: %w", err)
	}
	return buf.Bytes(), nil
}

// ResolvePath maps a script name to a file inside folder. Absolute names
// and names that climb out of folder are rejected. A name without an
// extension gets ".yaml".
func ResolvePath(folder, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidPath)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, name)
	}

	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the scripts folder", ErrInvalidPath, name)
	}
	if filepath.Ext(clean) == "" {
		clean += ".yaml"
	}
	return filepath.Join(folder, clean), nil
}

// List returns the script names found in folder, relative to it.
func List(folder string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	return names, nil
}
