package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/script"
)

// JSON paths use gjson syntax, which has its own brace forms, so they are
// never variable-resolved.
var jsonPath = script.PropertySpec{Name: "path", Required: true, Raw: true, Description: "gjson path, e.g. items.0.name"}

func (b builder) json() []script.Descriptor {
	return []script.Descriptor{
		{
			Kind:        "json_get_value",
			Group:       GroupJSON,
			Description: "Reads a value from a JSON document held in a variable.",
			Properties: []script.PropertySpec{
				{Name: "variable", Required: true, Description: "variable holding the JSON document"},
				jsonPath,
				{Name: "output", Required: true},
			},
			Display: func(p map[string]string) string { return p["variable"] + "." + p["path"] + " into " + p["output"] },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				doc, err := jsonDocument(rc, p)
				if err != nil {
					return err
				}
				res := gjson.Get(doc, p["path"])
				if !res.Exists() {
					return fmt.Errorf("path %q not found", p["path"])
				}
				value := res.String()
				if res.IsObject() || res.IsArray() {
					value = res.Raw
				}
				return setOutput(rc, p, "output", value)
			},
		},
		{
			Kind:        "json_set_value",
			Group:       GroupJSON,
			Description: "Sets a value in a JSON document held in a variable.",
			Properties: []script.PropertySpec{
				{Name: "variable", Required: true},
				jsonPath,
				{Name: "value"},
				{Name: "value_type", Default: "auto", Description: "auto, text or json"},
			},
			Validate: func(p map[string]string) []string { return b.checkOneOf(p, "value_type", "auto", "text", "json") },
			Display:  func(p map[string]string) string { return p["variable"] + "." + p["path"] + " = " + p["value"] },
			Run: func(_ context.Context, rc *automation.RunContext, p map[string]string) error {
				return updateJSON(rc, p, p["path"])
			},
		},
		{
			Kind:        "json_insert_array_item",
			Group:       GroupJSON,
			Description: "Inserts an item into a JSON array held in a variable. Index -1 appends.",
			Properties: []script.PropertySpec{
				{Name: "variable", Required: true},
				{Name: "path", Raw: true, Description: "gjson path of the array; empty for the root"},
				{Name: "value"},
				{Name: "value_type", Default: "auto", Description: "auto, text or json"},
				{Name: "index", Default: "-1"},
			},
			Validate: func(p map[string]string) []string {
				problems := b.checkOneOf(p, "value_type", "auto", "text", "json")
				return append(problems, b.checkInt(p, "index", -1)...)
			},
			Display: func(p map[string]string) string { return p["value"] + " into " + p["variable"] + "." + p["path"] },
			Run:     insertArrayItem,
		},
	}
}

func jsonDocument(rc *automation.RunContext, p map[string]string) (string, error) {
	doc, err := rc.Variable(strings.TrimSpace(p["variable"]))
	if err != nil {
		return "", err
	}
	if !gjson.Valid(doc) {
		return "", fmt.Errorf("variable %q does not hold valid JSON", p["variable"])
	}
	return doc, nil
}

// jsonValue returns the value as raw JSON, quoting text as needed.
func jsonValue(p map[string]string) (raw string, err error) {
	v := p["value"]
	switch strings.ToLower(strings.TrimSpace(p["value_type"])) {
	case "", "auto":
		if gjson.Valid(v) {
			return v, nil
		}
		return quoteJSON(v)
	case "text":
		return quoteJSON(v)
	case "json":
		if !gjson.Valid(v) {
			return "", fmt.Errorf("value is not valid JSON")
		}
		return v, nil
	}
	return "", fmt.Errorf("unknown value_type %q", p["value_type"])
}

func quoteJSON(s string) (string, error) {
	out, err := sjson.Set(`{"v":null}`, "v", s)
	if err != nil {
		return "", err
	}
	return gjson.Get(out, "v").Raw, nil
}

func updateJSON(rc *automation.RunContext, p map[string]string, path string) error {
	doc, err := jsonDocument(rc, p)
	if err != nil {
		return err
	}
	raw, err := jsonValue(p)
	if err != nil {
		return err
	}
	out, err := sjson.SetRaw(doc, path, raw)
	if err != nil {
		return fmt.Errorf("setting %q: %w", path, err)
	}
	return rc.SetVariable(strings.TrimSpace(p["variable"]), out)
}

func insertArrayItem(_ context.Context, rc *automation.RunContext, p map[string]string) error {
	doc, err := jsonDocument(rc, p)
	if err != nil {
		return err
	}
	index, err := intProp(p, "index", -1)
	if err != nil {
		return err
	}
	raw, err := jsonValue(p)
	if err != nil {
		return err
	}

	path := strings.TrimSpace(p["path"])
	arr := gjson.Parse(doc)
	if path != "" {
		arr = gjson.Get(doc, path)
	}
	if !arr.IsArray() {
		return fmt.Errorf("path %q is not an array", path)
	}

	items := arr.Array()
	if index < -1 || index > len(items) {
		return fmt.Errorf("index %d out of range for array of %d items", index, len(items))
	}
	if index == -1 {
		index = len(items)
	}

	parts := make([]string, 0, len(items)+1)
	for i, it := range items {
		if i == index {
			parts = append(parts, raw)
		}
		parts = append(parts, it.Raw)
	}
	if index == len(items) {
		parts = append(parts, raw)
	}
	updated := "[" + strings.Join(parts, ",") + "]"

	var out string
	if path == "" {
		out = updated
	} else {
		out, err = sjson.SetRaw(doc, path, updated)
		if err != nil {
			return fmt.Errorf("updating %q: %w", path, err)
		}
	}
	return rc.SetVariable(strings.TrimSpace(p["variable"]), out)
}
