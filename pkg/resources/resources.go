// Package resources defines the concrete resource kinds managed by ciadmin
// and binds them to the remote API.
//
// Each kind is an immutable value built through a constructor that
// normalizes its fields, so that a resource read from the service and the
// same resource generated from configuration compare equal with Equal.
package resources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// DescriptionPrefix is prepended to the description of every managed role
// and hook so that people browsing the service know not to edit them by hand.
const DescriptionPrefix = "*DO NOT EDIT* - This resource is configured automatically.\n\n"

// Kinds lists every kind this package implements, in registration order.
var Kinds = []engine.Kind{engine.KindRole, engine.KindHook, engine.KindWorkerType}

var validate = validator.New()

// Describe adds DescriptionPrefix to description unless it is already there.
func Describe(description string) string {
	if strings.HasPrefix(description, DescriptionPrefix) {
		return description
	}
	return DescriptionPrefix + description
}

// jsonEqual compares two values by their canonical JSON encoding. Map keys
// are sorted by encoding/json, and numbers decoded from different sources
// (CUE integers, JSON floats) encode identically.
func jsonEqual(a, b interface{}) bool {
	ab, err := canonicalJSON(a)
	if err != nil {
		return false
	}
	bb, err := canonicalJSON(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func canonicalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// Re-decode so that nil and empty containers of the same type collapse
	// and number formatting is uniform.
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeEmpty(generic))
}

// normalizeEmpty maps nil to the empty value of the same JSON shape it is
// compared against; here that means null, {} and [] are treated alike.
func normalizeEmpty(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		if len(t) == 0 {
			return nil
		}
		for k, child := range t {
			t[k] = normalizeEmpty(child)
		}
		return t
	case []interface{}:
		if len(t) == 0 {
			return nil
		}
		for i, child := range t {
			t[i] = normalizeEmpty(child)
		}
		return t
	default:
		return v
	}
}

// field is one line of a resource's string form.
type field struct {
	name  string
	value interface{}
}

// formatResource renders id and fields as
//
//	<id>:
//	  <name>: <value>
//
// Multi-line values are placed on the following lines, indented.
func formatResource(id string, fields ...field) string {
	var b strings.Builder
	b.WriteString(id)
	b.WriteString(":")
	for _, f := range fields {
		v := formatValue(f.value)
		if strings.Contains(v, "\n") {
			fmt.Fprintf(&b, "\n  %s:", f.name)
			for _, line := range strings.Split(v, "\n") {
				if line == "" {
					b.WriteString("\n")
					continue
				}
				b.WriteString("\n    ")
				b.WriteString(line)
			}
			continue
		}
		fmt.Fprintf(&b, "\n  %s: %s", f.name, v)
	}
	return b.String()
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return fmt.Sprintf("%t", t)
	case int, int64, float64:
		return fmt.Sprintf("%v", t)
	case []string:
		return formatList(t)
	case []Binding:
		items := make([]string, 0, len(t))
		for _, b := range t {
			items = append(items, b.String())
		}
		return formatList(items)
	default:
		if v == nil {
			return "{}"
		}
		data, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		s := string(data)
		if s == "null" {
			return "{}"
		}
		return s
	}
}

func formatList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return m
	}
	return out
}

func cloneMaps(ms []map[string]interface{}) []map[string]interface{} {
	if ms == nil {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(ms))
	for _, m := range ms {
		out = append(out, cloneMap(m))
	}
	return out
}
