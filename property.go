// property.go: Plugin property values and descriptors
//
// Property values are a closed tagged union. The JSON and YAML codecs pick the
// tag from the token or node kind, so a value read from disk always carries the
// representation it had on the wire.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// PropertyKind is the tag of a PropertyValue.
type PropertyKind int

const (
	PropertyNull PropertyKind = iota
	PropertyBool
	PropertyString
	PropertyNumber
)

// String makes PropertyKind satisfy fmt.Stringer.
func (k PropertyKind) String() string {
	switch k {
	case PropertyNull:
		return "null"
	case PropertyBool:
		return "boolean"
	case PropertyString:
		return "string"
	case PropertyNumber:
		return "number"
	default:
		return "unknown"
	}
}

// PropertyValue is an immutable tagged union of {null, boolean, string, number}.
// The zero value is null.
type PropertyValue struct {
	kind PropertyKind
	b    bool
	s    string
	n    float64
}

// NullValue returns the null property value.
func NullValue() PropertyValue { return PropertyValue{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) PropertyValue { return PropertyValue{kind: PropertyBool, b: b} }

// StringValue wraps a string.
func StringValue(s string) PropertyValue { return PropertyValue{kind: PropertyString, s: s} }

// NumberValue wraps a number.
func NumberValue(n float64) PropertyValue { return PropertyValue{kind: PropertyNumber, n: n} }

// Kind returns the tag.
func (v PropertyValue) Kind() PropertyKind { return v.kind }

// IsNull reports whether the value is null.
func (v PropertyValue) IsNull() bool { return v.kind == PropertyNull }

// Bool returns the boolean payload and whether the tag is boolean.
func (v PropertyValue) Bool() (bool, bool) { return v.b, v.kind == PropertyBool }

// Str returns the string payload and whether the tag is string.
func (v PropertyValue) Str() (string, bool) { return v.s, v.kind == PropertyString }

// Number returns the numeric payload and whether the tag is number.
func (v PropertyValue) Number() (float64, bool) { return v.n, v.kind == PropertyNumber }

// Equal compares tag and payload.
func (v PropertyValue) Equal(other PropertyValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case PropertyBool:
		return v.b == other.b
	case PropertyString:
		return v.s == other.s
	case PropertyNumber:
		return v.n == other.n
	default:
		return true
	}
}

// String renders the value for logs.
func (v PropertyValue) String() string {
	switch v.kind {
	case PropertyBool:
		return strconv.FormatBool(v.b)
	case PropertyString:
		return strconv.Quote(v.s)
	case PropertyNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	default:
		return "null"
	}
}

// MarshalJSON implements json.Marshaler.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case PropertyBool:
		return json.Marshal(v.b)
	case PropertyString:
		return json.Marshal(v.s)
	case PropertyNumber:
		return json.Marshal(v.n)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. Objects and arrays are rejected.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty property value")
	}
	switch trimmed[0] {
	case 'n':
		*v = NullValue()
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '{', '[':
		return fmt.Errorf("property values must be scalars, got %q", trimmed[0])
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
		return nil
	}
}

// MarshalYAML implements yaml.Marshaler.
func (v PropertyValue) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case PropertyBool:
		return v.b, nil
	case PropertyString:
		return v.s, nil
	case PropertyNumber:
		return v.n, nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *PropertyValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: property values must be scalars", node.Line)
	}
	switch node.ShortTag() {
	case "!!null":
		*v = NullValue()
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case "!!int", "!!float":
		var n float64
		if err := node.Decode(&n); err != nil {
			return err
		}
		*v = NumberValue(n)
	default:
		*v = StringValue(node.Value)
	}
	return nil
}

// PluginProperty is one named entry of a plugin's property map.
type PluginProperty struct {
	Name  string
	Value PropertyValue
}

// PluginProperties is an ordered property map. After reconciliation the order
// is the plugin's declared schema order; on the wire it is an object.
type PluginProperties []PluginProperty

// Get returns the value for name.
func (p PluginProperties) Get(name string) (PropertyValue, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return PropertyValue{}, false
}

// Names returns the property names in order.
func (p PluginProperties) Names() []string {
	names := make([]string, len(p))
	for i, prop := range p {
		names[i] = prop.Name
	}
	return names
}

// With returns a copy with name set to value, appending if absent.
func (p PluginProperties) With(name string, value PropertyValue) PluginProperties {
	out := make(PluginProperties, 0, len(p)+1)
	replaced := false
	for _, prop := range p {
		if prop.Name == name {
			out = append(out, PluginProperty{Name: name, Value: value})
			replaced = true
			continue
		}
		out = append(out, prop)
	}
	if !replaced {
		out = append(out, PluginProperty{Name: name, Value: value})
	}
	return out
}

func (p PluginProperties) clone() PluginProperties {
	if p == nil {
		return nil
	}
	out := make(PluginProperties, len(p))
	copy(out, p)
	return out
}

// MarshalJSON writes the properties as an object in slice order.
func (p PluginProperties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		value, err := prop.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object. Key order on the wire is not significant;
// entries are sorted by name until reconciliation reorders them.
func (p *PluginProperties) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	raw := make(map[string]PropertyValue)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = propertiesFromMap(raw)
	return nil
}

// MarshalYAML writes the properties as a mapping node in slice order.
func (p PluginProperties) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, prop := range p {
		var valueNode yaml.Node
		value, err := prop.Value.MarshalYAML()
		if err != nil {
			return nil, err
		}
		if err := valueNode.Encode(value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: prop.Name},
			&valueNode)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping node.
func (p *PluginProperties) UnmarshalYAML(node *yaml.Node) error {
	if node.ShortTag() == "!!null" {
		*p = nil
		return nil
	}
	raw := make(map[string]PropertyValue)
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = propertiesFromMap(raw)
	return nil
}

func propertiesFromMap(raw map[string]PropertyValue) PluginProperties {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(PluginProperties, 0, len(names))
	for _, name := range names {
		out = append(out, PluginProperty{Name: name, Value: raw[name]})
	}
	return out
}

// PropertyType is the declared type of a plugin property.
type PropertyType string

const (
	PropertyTypeString  PropertyType = "string"
	PropertyTypeBoolean PropertyType = "boolean"
	PropertyTypeDouble  PropertyType = "double"
)

// Accepts reports whether value is valid for the declared type. Numeric
// properties may be unset (null); string and boolean properties may not.
func (t PropertyType) Accepts(value PropertyValue) bool {
	switch t {
	case PropertyTypeString:
		return value.Kind() == PropertyString
	case PropertyTypeBoolean:
		return value.Kind() == PropertyBool
	case PropertyTypeDouble:
		return value.Kind() == PropertyNumber || value.Kind() == PropertyNull
	default:
		return false
	}
}

// ZeroValue is the default used when a descriptor declares none.
func (t PropertyType) ZeroValue() PropertyValue {
	switch t {
	case PropertyTypeString:
		return StringValue("")
	case PropertyTypeBoolean:
		return BoolValue(false)
	default:
		return NullValue()
	}
}

// PropertyDescriptor declares one plugin property.
type PropertyDescriptor struct {
	Name          string        `json:"name" yaml:"name"`
	Type          PropertyType  `json:"type" yaml:"type"`
	Default       PropertyValue `json:"default" yaml:"default"`
	Hidden        bool          `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Label         string        `json:"label,omitempty" yaml:"label,omitempty"`
	CheckboxLabel string        `json:"checkboxLabel,omitempty" yaml:"checkboxLabel,omitempty"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// DefaultValue returns the declared default, or the type's zero value when the
// declared default does not match the declared type.
func (d PropertyDescriptor) DefaultValue() PropertyValue {
	if d.Type.Accepts(d.Default) {
		return d.Default
	}
	return d.Type.ZeroValue()
}
