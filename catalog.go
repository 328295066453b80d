// catalog.go: Plugin catalog, the declared schema of every known plugin
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"slices"
	"strings"

	"github.com/agilira/argus"
)

// PluginDescriptor declares one plugin: its identity, its property schema and
// the artifacts consumed by the weaving engine. Instrumentation and Aspects
// are carried through unchanged.
//
// Example descriptor (JSON):
//
//	{
//	  "id": "jdbc",
//	  "name": "JDBC Plugin",
//	  "properties": [
//	    {"name": "captureBindParameters", "type": "boolean", "default": true},
//	    {"name": "stackTraceThresholdMillis", "type": "double", "default": 1000}
//	  ],
//	  "transactionTypes": ["Background"],
//	  "aspects": ["org.example.jdbc.StatementAspect"]
//	}
type PluginDescriptor struct {
	ID               string                  `json:"id" yaml:"id"`
	Name             string                  `json:"name" yaml:"name"`
	Properties       []PropertyDescriptor    `json:"properties,omitempty" yaml:"properties,omitempty"`
	TransactionTypes []string                `json:"transactionTypes,omitempty" yaml:"transactionTypes,omitempty"`
	Instrumentation  []InstrumentationConfig `json:"instrumentation,omitempty" yaml:"instrumentation,omitempty"`
	Aspects          []string                `json:"aspects,omitempty" yaml:"aspects,omitempty"`
}

// Property returns the descriptor of the named property.
func (d PluginDescriptor) Property(name string) (PropertyDescriptor, bool) {
	i := slices.IndexFunc(d.Properties, func(p PropertyDescriptor) bool { return p.Name == name })
	if i < 0 {
		return PropertyDescriptor{}, false
	}
	return d.Properties[i], true
}

// Validate checks the descriptor in isolation.
func (d PluginDescriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return NewInvalidCatalogError("plugin id is required")
	}
	seen := make(map[string]struct{}, len(d.Properties))
	for _, property := range d.Properties {
		if strings.TrimSpace(property.Name) == "" {
			return NewInvalidPropertyError(d.ID, property.Name, "property name is required")
		}
		if _, dup := seen[property.Name]; dup {
			return NewInvalidPropertyError(d.ID, property.Name, "duplicate property name")
		}
		seen[property.Name] = struct{}{}

		switch property.Type {
		case PropertyTypeString, PropertyTypeBoolean, PropertyTypeDouble:
		default:
			return NewInvalidPropertyError(d.ID, property.Name, "unknown property type "+string(property.Type))
		}
		if !property.Type.Accepts(property.Default) && !property.Default.IsNull() {
			return NewInvalidPropertyError(d.ID, property.Name,
				"default value "+property.Default.String()+" does not match type "+string(property.Type))
		}
	}
	for _, capturePoint := range d.Instrumentation {
		if err := capturePoint.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d PluginDescriptor) clone() PluginDescriptor {
	out := d
	out.Properties = slices.Clone(d.Properties)
	out.TransactionTypes = slices.Clone(d.TransactionTypes)
	out.Instrumentation = cloneEach(d.Instrumentation, InstrumentationConfig.clone)
	out.Aspects = slices.Clone(d.Aspects)
	return out
}

// PluginCatalog is the ordered set of known plugins. Catalog order determines
// the order of plugin configs in the document.
type PluginCatalog []PluginDescriptor

// Descriptor returns the descriptor with the given plugin id.
func (c PluginCatalog) Descriptor(id string) (PluginDescriptor, bool) {
	i := slices.IndexFunc(c, func(d PluginDescriptor) bool { return d.ID == id })
	if i < 0 {
		return PluginDescriptor{}, false
	}
	return c[i], true
}

// Validate checks every descriptor and that plugin ids are unique.
func (c PluginCatalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, descriptor := range c {
		if err := descriptor.Validate(); err != nil {
			return err
		}
		if _, dup := seen[descriptor.ID]; dup {
			return NewDuplicatePluginError(descriptor.ID)
		}
		seen[descriptor.ID] = struct{}{}
	}
	return nil
}

// FirstTransactionType returns the first transaction type declared by any
// plugin, in catalog order.
func (c PluginCatalog) FirstTransactionType() string {
	for _, descriptor := range c {
		for _, transactionType := range descriptor.TransactionTypes {
			if transactionType != "" {
				return transactionType
			}
		}
	}
	return ""
}

func (c PluginCatalog) clone() PluginCatalog {
	return cloneEach(c, PluginDescriptor.clone)
}

// LoadPluginCatalog reads plugin descriptor documents and returns the
// validated catalog in argument order. Each file holds either a single
// descriptor or a list of descriptors; the format is detected from the
// file extension.
func LoadPluginCatalog(paths ...string) (PluginCatalog, error) {
	var catalog PluginCatalog
	for _, path := range paths {
		descriptors, err := loadDescriptorFile(path)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, descriptors...)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

func loadDescriptorFile(path string) ([]PluginDescriptor, error) {
	securePath, err := validateAndSecureFilePath(path)
	if err != nil {
		return nil, NewCatalogReadError(path, err)
	}
	content, err := readFileSecurely(securePath)
	if err != nil {
		return nil, NewCatalogReadError(securePath, err)
	}

	format := documentFormat(securePath)
	if isListDocument(content, format) {
		var descriptors []PluginDescriptor
		if err := decodeDocument(content, format, &descriptors); err != nil {
			return nil, NewCatalogReadError(securePath, err)
		}
		return descriptors, nil
	}

	var descriptor PluginDescriptor
	if err := decodeDocument(content, format, &descriptor); err != nil {
		return nil, NewCatalogReadError(securePath, err)
	}
	return []PluginDescriptor{descriptor}, nil
}

// isListDocument reports whether the document's top-level value is a sequence.
func isListDocument(content []byte, format argus.ConfigFormat) bool {
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || trimmed == "---" {
			continue
		}
		if format == argus.FormatYAML {
			return strings.HasPrefix(trimmed, "- ") || trimmed == "-" || strings.HasPrefix(trimmed, "[")
		}
		return strings.HasPrefix(trimmed, "[")
	}
	return false
}
