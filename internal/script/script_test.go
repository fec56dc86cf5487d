package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ishandutta2007/taskt/internal/automation"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

type captured struct {
	props map[string]string
}

func testCatalog(t *testing.T, sink *captured) *Catalog {
	t.Helper()
	c := NewCatalog()
	c.MustRegister(
		Descriptor{
			Kind:        "echo",
			Group:       "misc",
			Description: "Echo {{{text}}}",
			Properties: []PropertySpec{
				{Name: "text", Required: true, Description: "value for {{{x}}}"},
				{Name: "suffix", Default: "!"},
				{Name: "window", Domain: automation.DomainWindow},
				{Name: "json", Raw: true},
			},
			Display: func(p map[string]string) string { return p["text"] },
			Run: func(_ context.Context, _ *automation.RunContext, props map[string]string) error {
				sink.props = props
				return nil
			},
		},
		Descriptor{
			Kind:  "picky",
			Group: "misc",
			Validate: func(p map[string]string) []string {
				if p["mode"] != "ok" {
					return []string{"mode must be ok"}
				}
				return nil
			},
			Properties: []PropertySpec{{Name: "mode"}},
			Run:        func(context.Context, *automation.RunContext, map[string]string) error { return nil },
		},
	)
	return c
}

func testLoader(t *testing.T, sink *captured) *Loader {
	return NewLoader(testCatalog(t, sink), automation.DefaultSettings().Codec())
}

// ─── Document ───────────────────────────────────────────────────────────────

func TestParse(t *testing.T) {
	data := []byte(`
name: greet
variables:
  - name: who
    value: World
  - name: count
    value: 3
commands:
  - command: echo
    properties:
      text: "Hello {who}"
    continue_on_error: true
  - command: echo
    enabled: false
    comment: skipped
`)

	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Name != "greet" || len(doc.Commands) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	if !doc.Commands[0].ContinueOnError || !doc.Commands[0].IsEnabled() {
		t.Errorf("first command flags = %+v", doc.Commands[0])
	}
	if doc.Commands[1].IsEnabled() {
		t.Error("second command should be disabled")
	}

	vars := doc.InitialVariables()
	if vars["who"] != "World" || vars["count"] != 3 {
		t.Errorf("InitialVariables() = %v", vars)
	}
}

func TestParse_JSON(t *testing.T) {
	doc, err := Parse([]byte(`{"name":"j","commands":[{"command":"echo","properties":{"text":"x"}}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Commands[0].Properties["text"] != "x" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"unknown field", "name: x\nbogus: 1\n"},
		{"missing kind", "commands:\n  - properties: {a: b}\n"},
		{"malformed", "commands: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Parse() error = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nightly.yaml")
	if err := os.WriteFile(path, []byte("commands:\n  - command: echo\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if doc.Name != "nightly" {
		t.Errorf("Name = %q, want file base name", doc.Name)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("ParseFile() missing error = %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	enabled := false
	doc := &Document{
		Name:      "rt",
		Variables: []VariableDef{{Name: "a", Value: "1"}},
		Commands:  []CommandRecord{{Command: "echo", Properties: map[string]string{"text": "hi"}, Enabled: &enabled}},
	}

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("round trip = %+v, want %+v", got, doc)
	}
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "daily", want: filepath.Join("scripts", "daily.yaml")},
		{name: "sub/job.json", want: filepath.Join("scripts", "sub", "job.json")},
		{name: "a/../b", want: filepath.Join("scripts", "b.yaml")},
		{name: "", wantErr: true},
		{name: "../etc/passwd", wantErr: true},
		{name: "..", wantErr: true},
		{name: "/abs.yaml", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ResolvePath("scripts", tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("ResolvePath(%q) error = %v, want ErrInvalidPath", tt.name, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ResolvePath(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	_ = os.MkdirAll(filepath.Join(dir, "sub"), 0o750)
	for _, f := range []string{"a.yaml", "sub/b.json", "notes.txt"} {
		_ = os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o600)
	}

	names, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a.yaml", "sub/b.json"}) {
		t.Errorf("List() = %v", names)
	}

	none, err := List(filepath.Join(dir, "missing"))
	if err != nil || none != nil {
		t.Errorf("List(missing) = %v, %v", none, err)
	}
}

// ─── Catalog ────────────────────────────────────────────────────────────────

func TestCatalog(t *testing.T) {
	c := testCatalog(t, &captured{})

	if err := c.Register(Descriptor{Kind: "echo", Run: func(context.Context, *automation.RunContext, map[string]string) error { return nil }}); !errors.Is(err, ErrDuplicateCommand) {
		t.Errorf("Register() duplicate error = %v", err)
	}
	if err := c.Register(Descriptor{Kind: "norun"}); err == nil {
		t.Error("Register() without Run should fail")
	}
	if _, err := c.Lookup("nope"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Lookup() error = %v", err)
	}

	descs := c.Descriptors()
	if len(descs) != 2 || descs[0].Kind != "echo" || descs[1].Kind != "picky" {
		t.Errorf("Descriptors() = %+v", descs)
	}
}

// ─── Step & Loader ──────────────────────────────────────────────────────────

func TestStep_Validate(t *testing.T) {
	c := testCatalog(t, &captured{})
	echo, _ := c.Lookup("echo")
	picky, _ := c.Lookup("picky")

	tests := []struct {
		name   string
		step   *Step
		wantN  int
		wantIn string
	}{
		{"ok", NewStep(echo, map[string]string{"text": "x"}, false, true), 0, ""},
		{"required blank", NewStep(echo, map[string]string{"text": "  "}, false, true), 1, "required"},
		{"unknown property", NewStep(echo, map[string]string{"text": "x", "zz": "1"}, false, true), 1, `"zz"`},
		{"descriptor check", NewStep(picky, map[string]string{"mode": "bad"}, false, true), 1, "mode must be ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := tt.step.Validate()
			if len(problems) != tt.wantN {
				t.Fatalf("Validate() = %v, want %d problems", problems, tt.wantN)
			}
			if tt.wantIn != "" && !strings.Contains(problems[0], tt.wantIn) {
				t.Errorf("problem %q does not mention %q", problems[0], tt.wantIn)
			}
		})
	}
}

func TestStep_RawPropertiesSkipResolution(t *testing.T) {
	sink := &captured{}
	c := testCatalog(t, sink)
	echo, _ := c.Lookup("echo")

	step := NewStep(echo, map[string]string{"text": "{v}", "json": `{"a":1}`}, false, true)

	props := step.Properties()
	if _, ok := props["json"]; ok {
		t.Error("raw property exposed for resolution")
	}
	if props["suffix"] != "!" {
		t.Errorf("default not applied: %v", props)
	}

	e := automation.NewEngine(automation.DefaultSettings(), automation.Options{})
	if _, err := e.Execute(context.Background(), []automation.Command{step}, map[string]any{"v": "resolved"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if sink.props["text"] != "resolved" || sink.props["json"] != `{"a":1}` {
		t.Errorf("props seen by command = %v", sink.props)
	}
}

func TestStep_Describe(t *testing.T) {
	c := testCatalog(t, &captured{})
	echo, _ := c.Lookup("echo")

	got := NewStep(echo, map[string]string{"text": "hi"}, false, true).WithComment("note").Describe()
	if got != "echo: hi # note" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestLoader_BuildDecodesStorageForm(t *testing.T) {
	sink := &captured{}
	l := testLoader(t, sink)

	stored := &Document{Commands: []CommandRecord{{
		Command: "echo",
		Properties: map[string]string{
			"text":   automation.SentinelVariableStart + "v" + automation.SentinelVariableEnd,
			"window": automation.SentinelKeywordStart + automation.KeywordCurrentWindow + automation.SentinelKeywordEnd,
		},
	}}}

	cmds, err := l.Build(stored)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	values := cmds[0].(*Step).Values()
	if values["text"] != "{v}" || values["window"] != "Current Window" {
		t.Errorf("decoded values = %v", values)
	}
}

func TestLoader_EncodeInverse(t *testing.T) {
	l := testLoader(t, &captured{})
	doc := &Document{Commands: []CommandRecord{{
		Command:    "echo",
		Properties: map[string]string{"text": "{a} Current Window", "window": "Current Window"},
	}}}

	enc, err := l.Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if enc.Commands[0].Properties["text"] == doc.Commands[0].Properties["text"] {
		t.Error("text property not encoded")
	}
	if strings.Contains(enc.Commands[0].Properties["text"], automation.SentinelKeywordStart) {
		t.Error("window keyword encoded in text-domain property")
	}

	cmds, err := l.Build(enc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := cmds[0].(*Step).Values(); got["text"] != "{a} Current Window" || got["window"] != "Current Window" {
		t.Errorf("round trip values = %v", got)
	}
}

func TestLoader_UnknownCommandsCollected(t *testing.T) {
	l := testLoader(t, &captured{})
	_, err := l.Build(&Document{Commands: []CommandRecord{{Command: "x"}, {Command: "echo"}, {Command: "y"}}})

	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(err.Error(), "command 1") || !strings.Contains(err.Error(), "command 3") {
		t.Errorf("error should name both commands: %v", err)
	}
}

func TestLoader_Help(t *testing.T) {
	l := testLoader(t, &captured{})
	d, _ := l.Catalog().Lookup("echo")

	h := l.Help(*d)
	if h.Description != "Echo {text}" || h.Properties[0].Description != "value for {x}" {
		t.Errorf("Help() = %q / %q", h.Description, h.Properties[0].Description)
	}
	if d.Description != "Echo {{{text}}}" {
		t.Error("Help() modified the catalog descriptor")
	}
}
