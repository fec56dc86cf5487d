package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/script"
)

// Command groups shown in listings.
const (
	GroupMisc      = "misc"
	GroupVariable  = "variable"
	GroupEngine    = "engine"
	GroupStopwatch = "stopwatch"
	GroupProcess   = "process"
	GroupJSON      = "json"
	GroupDatabase  = "database"
)

// Register adds every built-in command to cat. settings supplies the
// variable markers so validation can skip values that are only known once
// variables are resolved.
func Register(cat *script.Catalog, settings automation.Settings) error {
	b := builder{settings: settings}

	groups := [][]script.Descriptor{
		b.misc(),
		b.stopwatch(),
		b.process(),
		b.json(),
		b.database(),
	}
	for _, descs := range groups {
		for _, d := range descs {
			if err := cat.Register(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewCatalog returns a catalog holding the built-in commands.
func NewCatalog(settings automation.Settings) *script.Catalog {
	cat := script.NewCatalog()
	if err := Register(cat, settings); err != nil {
		// Built-in kinds are unique; a failure here is a programming error.
		panic(err)
	}
	return cat
}

type builder struct {
	settings automation.Settings
}

// dynamic reports whether v contains a variable reference and so can only
// be checked after resolution.
func (b builder) dynamic(v string) bool {
	return len(automation.References(v, b.settings)) > 0
}

// checkInt returns a problem when a static value is not an integer >= minimum.
func (b builder) checkInt(props map[string]string, name string, minimum int) []string {
	v := strings.TrimSpace(props[name])
	if v == "" || b.dynamic(v) {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minimum {
		return []string{fmt.Sprintf("property %q must be an integer >= %d", name, minimum)}
	}
	return nil
}

// checkOneOf returns a problem when a static value is not in allowed.
func (b builder) checkOneOf(props map[string]string, name string, allowed ...string) []string {
	v := strings.TrimSpace(props[name])
	if v == "" || b.dynamic(v) {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return nil
		}
	}
	return []string{fmt.Sprintf("property %q must be one of %s", name, strings.Join(allowed, ", "))}
}

// ─── Property Helpers ───────────────────────────────────────────────────────

func intProp(props map[string]string, name string, def int) (int, error) {
	v := strings.TrimSpace(props[name])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("property %q: %q is not an integer", name, v)
	}
	return n, nil
}

func boolProp(props map[string]string, name string, def bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(props[name]))
	switch v {
	case "":
		return def, nil
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("property %q: %q is not a boolean", name, v)
}

// setOutput stores value in the variable named by props[key], if any.
func setOutput(rc *automation.RunContext, props map[string]string, key string, value any) error {
	name := strings.TrimSpace(props[key])
	if name == "" {
		return nil
	}
	if err := rc.SetVariable(name, value); err != nil {
		return fmt.Errorf("property %q: %w", key, err)
	}
	return nil
}

func instanceName(props map[string]string, def string) string {
	if n := strings.TrimSpace(props["instance"]); n != "" {
		return n
	}
	return def
}
