package automation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Variables is the name → value table owned by a single run.
// Names are case-sensitive; the last write wins. Values may be text or
// any typed payload; FormatValue renders them when substituted.
//
// Variables is not safe for concurrent use. Only the run goroutine
// touches it.
type Variables struct {
	values map[string]any
	order  []string
}

// NewVariables creates an empty variable table.
func NewVariables() *Variables {
	return &Variables{values: make(map[string]any)}
}

// Set creates or overwrites a variable.
func (v *Variables) Set(name string, value any) {
	if _, ok := v.values[name]; !ok {
		v.order = append(v.order, name)
	}
	v.values[name] = value
}

// Get returns the raw value of a variable.
func (v *Variables) Get(name string) (any, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Text returns the formatted value of a variable.
func (v *Variables) Text(name string) (string, bool) {
	val, ok := v.values[name]
	if !ok {
		return "", false
	}
	return FormatValue(val), true
}

// Has reports whether a variable exists.
func (v *Variables) Has(name string) bool {
	_, ok := v.values[name]
	return ok
}

// Delete removes a variable. Deleting an absent variable is a no-op.
func (v *Variables) Delete(name string) {
	if _, ok := v.values[name]; !ok {
		return
	}
	delete(v.values, name)
	for i, n := range v.order {
		if n == name {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// Clear removes all variables.
func (v *Variables) Clear() {
	v.values = make(map[string]any)
	v.order = nil
}

// Len returns the number of variables.
func (v *Variables) Len() int {
	return len(v.values)
}

// Names returns variable names in creation order.
func (v *Variables) Names() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

// Snapshot returns a copy of the table with every value formatted as text.
func (v *Variables) Snapshot() map[string]string {
	out := make(map[string]string, len(v.values))
	for k, val := range v.values {
		out[k] = FormatValue(val)
	}
	return out
}

// seedVariables builds a table from caller-supplied values in name order.
func seedVariables(initial map[string]any) *Variables {
	vars := NewVariables()
	names := make([]string, 0, len(initial))
	for name := range initial {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		vars.Set(name, initial[name])
	}
	return vars
}

// Resolve substitutes variable references in text.
//
// A reference is the start marker, a name and the end marker; the name is
// trimmed of surrounding whitespace. The scan is a single left-to-right
// pass with non-overlapping matches, so substituted values are never
// re-scanned. A start marker with no closing marker, and a reference
// whose name is not a valid variable name (empty, a reserved key name such
// as ENTER, or one holding a disallowed character as in the JSON text
// {"id":3}), are left as literal text. When a second start marker appears
// before the closing marker the reference restarts there: "{a{b}" resolves b.
//
// Missing variables follow settings.MissingVariables: with
// MissingVariableFail Resolve returns ErrUnresolvedVariable, otherwise the
// variable is created with an empty value.
func Resolve(text string, vars *Variables, settings Settings) (string, error) {
	start, end := settings.VariableStart, settings.VariableEnd
	if start == "" || end == "" || !strings.Contains(text, start) {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		s := strings.Index(text[i:], start)
		if s < 0 {
			break
		}
		s += i
		nameStart := s + len(start)

		e := strings.Index(text[nameStart:], end)
		if e < 0 {
			break
		}
		e += nameStart

		if k := strings.LastIndex(text[nameStart:e], start); k >= 0 {
			restart := nameStart + k
			b.WriteString(text[i:restart])
			i = restart
			continue
		}

		after := e + len(end)
		name := strings.TrimSpace(text[nameStart:e])
		if ValidateVariableName(name) != nil {
			b.WriteString(text[i:after])
			i = after
			continue
		}

		b.WriteString(text[i:s])

		val, ok := vars.Get(name)
		if !ok {
			if settings.MissingVariables == MissingVariableFail {
				return "", fmt.Errorf("%w: %q", ErrUnresolvedVariable, name)
			}
			vars.Set(name, "")
			val = ""
		}
		b.WriteString(FormatValue(val))
		i = after
	}

	b.WriteString(text[i:])
	return b.String(), nil
}

// References returns the trimmed variable names referenced in text, in
// order of appearance and without duplicates.
func References(text string, settings Settings) []string {
	scratch := NewVariables()
	settings.MissingVariables = MissingVariableCreate
	if _, err := Resolve(text, scratch, settings); err != nil {
		return nil
	}
	return scratch.Names()
}

// FormatValue renders a variable value as text.
//
// Strings are returned verbatim, booleans as "true"/"false", numbers in
// their shortest decimal form, times as RFC 3339, errors and Stringers via
// their methods, and anything else as JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case time.Duration:
		return val.String()
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
