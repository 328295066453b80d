// store_entities.go: Section and list-entity mutations
//
// Every mutation follows the same sequence under the store's write lock:
// check the caller's prior version against the live snapshot, build a new
// snapshot with the one changed section or item, persist it, swap it in.
// Listeners are notified once the lock is released.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

// validated is implemented by every versioned section and list item.
type validated interface {
	Validate() error
}

// updateSection replaces one singleton section. notifyFor may be nil, in
// which case only global listeners are notified.
func updateSection[T validated](s *Store, entity string, updated T, priorVersion string,
	get func(*Config) T, set func(*Config, T), notifyFor func(old, updated T) notification) (string, error) {

	if err := updated.Validate(); err != nil {
		s.recordRejection(entity, err)
		return "", err
	}

	return s.commit(entity, func(current *Config) (commitResult, error) {
		old := get(current)
		currentVersion := s.versioner.Hash(old)
		if currentVersion != priorVersion {
			return commitResult{}, NewOptimisticLockError(entity, priorVersion, currentVersion)
		}

		version := s.versioner.Hash(updated)
		if version == currentVersion {
			return commitResult{version: version, noop: true}, nil
		}

		next := current.shallow()
		set(next, updated)

		n := notification{global: true}
		if notifyFor != nil {
			n = notifyFor(old, updated)
		}
		return commitResult{next: next, priorVersion: priorVersion, version: version, notify: n}, nil
	})
}

// UpdateGeneralConfig replaces the general section. Flipping Enabled also
// notifies every plugin listener.
func (s *Store) UpdateGeneralConfig(cfg GeneralConfig, priorVersion string) (string, error) {
	return updateSection(s, "general config", cfg, priorVersion,
		func(c *Config) GeneralConfig { return c.General },
		func(c *Config, v GeneralConfig) { c.General = v },
		func(old, updated GeneralConfig) notification {
			return notification{global: true, allPlugins: old.Enabled != updated.Enabled}
		})
}

// UpdateStorageConfig replaces the storage section.
func (s *Store) UpdateStorageConfig(cfg StorageConfig, priorVersion string) (string, error) {
	cfg = cfg.clone()
	return updateSection(s, "storage config", cfg, priorVersion,
		func(c *Config) StorageConfig { return c.Storage },
		func(c *Config, v StorageConfig) { c.Storage = v },
		nil)
}

// UpdateUserInterfaceConfig replaces the UI section. An empty default
// displayed transaction type is derived the same way loading derives it, so
// the committed section is the one a restart reads back.
func (s *Store) UpdateUserInterfaceConfig(cfg UserInterfaceConfig, priorVersion string) (string, error) {
	cfg = cfg.clone().normalized()
	cfg, _ = backfillDefaultTransactionType(cfg, s.catalog, s.current.Load().Instrumentation)
	return updateSection(s, "ui config", cfg, priorVersion,
		func(c *Config) UserInterfaceConfig { return c.UserInterface },
		func(c *Config, v UserInterfaceConfig) { c.UserInterface = v },
		nil)
}

// UpdateUserRecordingConfig replaces the user recording section.
func (s *Store) UpdateUserRecordingConfig(cfg UserRecordingConfig, priorVersion string) (string, error) {
	return updateSection(s, "user recording config", cfg, priorVersion,
		func(c *Config) UserRecordingConfig { return c.UserRecording },
		func(c *Config, v UserRecordingConfig) { c.UserRecording = v },
		nil)
}

// UpdateAdvancedConfig replaces the advanced section.
func (s *Store) UpdateAdvancedConfig(cfg AdvancedConfig, priorVersion string) (string, error) {
	return updateSection(s, "advanced config", cfg, priorVersion,
		func(c *Config) AdvancedConfig { return c.Advanced },
		func(c *Config, v AdvancedConfig) { c.Advanced = v },
		nil)
}

// PluginConfigs returns the plugin configs in catalog order.
func (s *Store) PluginConfigs() []PluginConfig {
	return cloneEach(s.current.Load().Plugins, PluginConfig.clone)
}

// PluginConfig returns the config of one plugin.
func (s *Store) PluginConfig(pluginID string) (PluginConfig, error) {
	p, ok := s.current.Load().Plugin(pluginID)
	if !ok {
		return PluginConfig{}, NewPluginNotFoundError(pluginID)
	}
	return p.clone(), nil
}

// UpdatePluginConfig replaces a plugin's config wholesale. The entry is
// located by plugin id and priorVersion must match its current version.
//
// Properties are checked against the plugin's schema: undeclared names and
// mistyped values are rejected, missing properties take their defaults and
// hidden properties always keep their declared default. Only that plugin's
// listeners are notified.
func (s *Store) UpdatePluginConfig(cfg PluginConfig, priorVersion string) (string, error) {
	const entity = "plugin config"

	descriptor, ok := s.catalog.Descriptor(cfg.ID)
	if !ok {
		err := NewPluginNotFoundError(cfg.ID)
		s.recordRejection(entity, err)
		return "", err
	}
	if err := validatePluginProperties(descriptor, cfg); err != nil {
		s.recordRejection(entity, err)
		return "", err
	}
	reconciled := ReconcilePluginConfig(descriptor, &cfg)

	return s.commit(entity, func(current *Config) (commitResult, error) {
		i := current.pluginIndex(cfg.ID)
		if i < 0 {
			return commitResult{}, NewPluginNotFoundError(cfg.ID)
		}
		currentVersion := s.versioner.Hash(current.Plugins[i])
		if currentVersion != priorVersion {
			return commitResult{}, NewOptimisticLockError(entity+" "+cfg.ID, priorVersion, currentVersion)
		}

		version := s.versioner.Hash(reconciled)
		if version == currentVersion {
			return commitResult{version: version, noop: true}, nil
		}

		next := current.shallow()
		next.Plugins = withReplaced(current.Plugins, i, reconciled)
		return commitResult{
			next:         next,
			priorVersion: priorVersion,
			version:      version,
			notify:       notification{pluginIDs: []string{cfg.ID}},
		}, nil
	})
}

func validatePluginProperties(descriptor PluginDescriptor, cfg PluginConfig) error {
	for _, property := range cfg.Properties {
		declared, ok := descriptor.Property(property.Name)
		if !ok {
			return NewInvalidEntityError("plugin config", "plugin "+cfg.ID+" declares no property "+property.Name)
		}
		if !declared.Type.Accepts(property.Value) {
			return NewInvalidEntityError("plugin config",
				"property "+property.Name+" expects "+string(declared.Type)+", got "+property.Value.Kind().String())
		}
	}
	return nil
}

// listAccess binds the generic list operations to one list of the aggregate.
type listAccess[T any] struct {
	entity string
	items  func(*Config) []T
	set    func(*Config, []T)
	clone  func(T) T

	// conflict reports a uniqueness violation of item against items,
	// ignoring the element at index skip (-1 for inserts).
	conflict func(s *Store, items []T, skip int, item T) error
}

func insertEntity[T validated](s *Store, list listAccess[T], item T) (string, error) {
	item = list.clone(item)
	if err := item.Validate(); err != nil {
		s.recordRejection(list.entity, err)
		return "", err
	}

	return s.commit(list.entity, func(current *Config) (commitResult, error) {
		items := list.items(current)
		if err := list.conflict(s, items, -1, item); err != nil {
			return commitResult{}, err
		}
		next := current.shallow()
		list.set(next, withAppended(items, item))
		return commitResult{
			next:    next,
			version: s.versioner.Hash(item),
			notify:  notification{global: true},
		}, nil
	})
}

func updateEntity[T validated](s *Store, list listAccess[T], item T, priorVersion string) (string, error) {
	item = list.clone(item)
	if err := item.Validate(); err != nil {
		s.recordRejection(list.entity, err)
		return "", err
	}

	return s.commit(list.entity, func(current *Config) (commitResult, error) {
		items := list.items(current)
		i := indexByVersion(s.versioner, items, priorVersion)
		if i < 0 {
			return commitResult{}, NewEntityNotFoundError(list.entity, priorVersion)
		}
		version := s.versioner.Hash(item)
		if version == priorVersion {
			return commitResult{version: version, noop: true}, nil
		}
		if err := list.conflict(s, items, i, item); err != nil {
			return commitResult{}, err
		}
		next := current.shallow()
		list.set(next, withReplaced(items, i, item))
		return commitResult{
			next:         next,
			priorVersion: priorVersion,
			version:      version,
			notify:       notification{global: true},
		}, nil
	})
}

func deleteEntity[T any](s *Store, list listAccess[T], priorVersion string) error {
	_, err := s.commit(list.entity, func(current *Config) (commitResult, error) {
		items := list.items(current)
		i := indexByVersion(s.versioner, items, priorVersion)
		if i < 0 {
			return commitResult{}, NewEntityNotFoundError(list.entity, priorVersion)
		}
		next := current.shallow()
		list.set(next, withRemoved(items, i))
		return commitResult{
			next:         next,
			priorVersion: priorVersion,
			notify:       notification{global: true},
		}, nil
	})
	return err
}

func findEntity[T any](s *Store, list listAccess[T], version string) (T, error) {
	items := list.items(s.current.Load())
	if i := indexByVersion(s.versioner, items, version); i >= 0 {
		return list.clone(items[i]), nil
	}
	var zero T
	return zero, NewEntityNotFoundError(list.entity, version)
}

// contentConflict rejects an item identical to another element of the list.
func contentConflict[T any](entity string) func(*Store, []T, int, T) error {
	return func(s *Store, items []T, skip int, item T) error {
		version := s.versioner.Hash(item)
		for j, existing := range items {
			if j != skip && s.versioner.Hash(existing) == version {
				return NewDuplicateContentError(entity, version)
			}
		}
		return nil
	}
}

var capturePoints = listAccess[InstrumentationConfig]{
	entity:   "capture point",
	items:    func(c *Config) []InstrumentationConfig { return c.Instrumentation },
	set:      func(c *Config, items []InstrumentationConfig) { c.Instrumentation = items },
	clone:    InstrumentationConfig.clone,
	conflict: contentConflict[InstrumentationConfig]("capture point"),
}

var gauges = listAccess[GaugeConfig]{
	entity: "gauge",
	items:  func(c *Config) []GaugeConfig { return c.Gauges },
	set:    func(c *Config, items []GaugeConfig) { c.Gauges = items },
	clone:  GaugeConfig.clone,
	conflict: func(_ *Store, items []GaugeConfig, skip int, item GaugeConfig) error {
		for j, existing := range items {
			if j != skip && existing.MBeanObjectName == item.MBeanObjectName {
				return NewDuplicateMBeanObjectNameError(item.MBeanObjectName)
			}
		}
		return nil
	},
}

var alerts = listAccess[AlertConfig]{
	entity:   "alert",
	items:    func(c *Config) []AlertConfig { return c.Alerts },
	set:      func(c *Config, items []AlertConfig) { c.Alerts = items },
	clone:    AlertConfig.clone,
	conflict: contentConflict[AlertConfig]("alert"),
}

// InstrumentationConfigs returns the capture points in document order.
func (s *Store) InstrumentationConfigs() []InstrumentationConfig {
	return cloneEach(s.current.Load().Instrumentation, InstrumentationConfig.clone)
}

// InstrumentationConfig returns the capture point with the given version.
func (s *Store) InstrumentationConfig(version string) (InstrumentationConfig, error) {
	return findEntity(s, capturePoints, version)
}

// InsertInstrumentationConfig appends a capture point and returns its version.
//
// Capture points have no natural key: their identity is their content
// version. Inserting one identical to an existing capture point therefore
// fails with ErrCodeDuplicateContent instead of storing a second copy that
// could never be addressed on its own.
func (s *Store) InsertInstrumentationConfig(cfg InstrumentationConfig) (string, error) {
	return insertEntity(s, capturePoints, cfg)
}

// UpdateInstrumentationConfig replaces the capture point whose version is priorVersion.
func (s *Store) UpdateInstrumentationConfig(cfg InstrumentationConfig, priorVersion string) (string, error) {
	return updateEntity(s, capturePoints, cfg, priorVersion)
}

// DeleteInstrumentationConfig removes the capture point whose version is priorVersion.
func (s *Store) DeleteInstrumentationConfig(priorVersion string) error {
	return deleteEntity(s, capturePoints, priorVersion)
}

// GaugeConfigs returns the gauges in document order.
func (s *Store) GaugeConfigs() []GaugeConfig {
	return cloneEach(s.current.Load().Gauges, GaugeConfig.clone)
}

// GaugeConfig returns the gauge with the given version.
func (s *Store) GaugeConfig(version string) (GaugeConfig, error) {
	return findEntity(s, gauges, version)
}

// GaugeConfigByName returns the gauge for an mbean object name.
func (s *Store) GaugeConfigByName(mbeanObjectName string) (GaugeConfig, error) {
	current := s.current.Load()
	if i := current.gaugeIndexByName(mbeanObjectName); i >= 0 {
		return current.Gauges[i].clone(), nil
	}
	return GaugeConfig{}, NewEntityNotFoundError("gauge", mbeanObjectName)
}

// InsertGaugeConfig appends a gauge. The mbean object name must not be in use.
func (s *Store) InsertGaugeConfig(cfg GaugeConfig) (string, error) {
	return insertEntity(s, gauges, cfg)
}

// UpdateGaugeConfig replaces the gauge whose version is priorVersion.
func (s *Store) UpdateGaugeConfig(cfg GaugeConfig, priorVersion string) (string, error) {
	return updateEntity(s, gauges, cfg, priorVersion)
}

// DeleteGaugeConfig removes the gauge whose version is priorVersion.
func (s *Store) DeleteGaugeConfig(priorVersion string) error {
	return deleteEntity(s, gauges, priorVersion)
}

// AlertConfigs returns the alerts in document order.
func (s *Store) AlertConfigs() []AlertConfig {
	return cloneEach(s.current.Load().Alerts, AlertConfig.clone)
}

// AlertConfig returns the alert with the given version.
func (s *Store) AlertConfig(version string) (AlertConfig, error) {
	return findEntity(s, alerts, version)
}

// InsertAlertConfig appends an alert and returns its version.
func (s *Store) InsertAlertConfig(cfg AlertConfig) (string, error) {
	return insertEntity(s, alerts, cfg)
}

// UpdateAlertConfig replaces the alert whose version is priorVersion.
func (s *Store) UpdateAlertConfig(cfg AlertConfig, priorVersion string) (string, error) {
	return updateEntity(s, alerts, cfg, priorVersion)
}

// DeleteAlertConfig removes the alert whose version is priorVersion.
func (s *Store) DeleteAlertConfig(priorVersion string) error {
	return deleteEntity(s, alerts, priorVersion)
}
