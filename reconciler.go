// reconciler.go: Rebuilds plugin property maps from the declared schema
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

// ReconcilePluginConfig reconstructs a plugin config from the plugin's
// current schema and whatever was last persisted for it (nil when nothing was).
//
// For each declared property, in schema order:
//   - a stored value whose type matches the declared type is kept, unless the
//     property is hidden
//   - anything else (missing, mistyped, hidden) falls back to the declared default
//
// Stored properties the schema no longer declares are dropped. Enabled is
// carried over from stored, and defaults to true for a newly discovered plugin.
// The result's key set is exactly the schema's key set.
func ReconcilePluginConfig(descriptor PluginDescriptor, stored *PluginConfig) PluginConfig {
	reconciled := PluginConfig{
		ID:         descriptor.ID,
		Enabled:    true,
		Properties: make(PluginProperties, 0, len(descriptor.Properties)),
	}
	if stored != nil {
		reconciled.Enabled = stored.Enabled
	}

	for _, property := range descriptor.Properties {
		value := property.DefaultValue()
		if stored != nil && !property.Hidden {
			if storedValue, ok := stored.Properties.Get(property.Name); ok && property.Type.Accepts(storedValue) {
				value = storedValue
			}
		}
		reconciled.Properties = append(reconciled.Properties, PluginProperty{Name: property.Name, Value: value})
	}
	return reconciled
}

// reconcileAll produces one plugin config per catalog entry, in catalog
// order, and reports which stored ids were dropped because no plugin
// declares them anymore.
func reconcileAll(catalog PluginCatalog, stored []PluginConfig) (plugins []PluginConfig, dropped []string) {
	byID := make(map[string]*PluginConfig, len(stored))
	for i := range stored {
		byID[stored[i].ID] = &stored[i]
	}

	plugins = make([]PluginConfig, 0, len(catalog))
	for _, descriptor := range catalog {
		plugins = append(plugins, ReconcilePluginConfig(descriptor, byID[descriptor.ID]))
		delete(byID, descriptor.ID)
	}
	for _, p := range stored {
		if _, unknown := byID[p.ID]; unknown {
			dropped = append(dropped, p.ID)
		}
	}
	return plugins, dropped
}
