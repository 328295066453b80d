// errors.go: structured error definitions for the configuration store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the configuration store
const (
	// Document errors (1700-1799)
	ErrCodeConfigParseError      = "CONFIG_1702"
	ErrCodeConfigValidationError = "CONFIG_1703"
	ErrCodeConfigWatcherError    = "CONFIG_1704"
	ErrCodeConfigPathError       = "CONFIG_1705"
	ErrCodeConfigFileError       = "CONFIG_1706"
	ErrCodeSerializationError    = "CONFIG_1707"
	ErrCodeAuditError            = "CONFIG_1708"

	// Catalog errors (1800-1899)
	ErrCodeInvalidCatalog   = "CATALOG_1801"
	ErrCodeDuplicatePlugin  = "CATALOG_1802"
	ErrCodeInvalidProperty  = "CATALOG_1803"
	ErrCodeCatalogReadError = "CATALOG_1804"

	// Store errors (2100-2199)
	ErrCodeOptimisticLock   = "STORE_2101"
	ErrCodeDuplicateKey     = "STORE_2102"
	ErrCodeEntityNotFound   = "STORE_2103"
	ErrCodeInvalidEntity    = "STORE_2104"
	ErrCodeDuplicateContent = "STORE_2105"
	ErrCodeStoreClosed      = "STORE_2106"
)

// Store error constructors

func NewOptimisticLockError(section, expectedVersion, currentVersion string) *errors.Error {
	return errors.New(ErrCodeOptimisticLock, "Optimistic lock conflict on "+section).
		WithUserMessage("The configuration was changed by someone else; reload it and retry").
		WithContext("section", section).
		WithContext("expected_version", expectedVersion).
		WithContext("current_version", currentVersion).
		WithSeverity("warning")
}

func NewDuplicateMBeanObjectNameError(mbeanObjectName string) *errors.Error {
	return errors.New(ErrCodeDuplicateKey, "Duplicate gauge mbean object name").
		WithUserMessage("A gauge for this mbean object name already exists").
		WithContext("mbean_object_name", mbeanObjectName).
		WithSeverity("warning")
}

func NewEntityNotFoundError(entity, version string) *errors.Error {
	return errors.New(ErrCodeEntityNotFound, entity+" not found").
		WithUserMessage("The requested configuration entry does not exist; it may have been changed or deleted").
		WithContext("entity", entity).
		WithContext("version", version).
		WithSeverity("warning")
}

func NewPluginNotFoundError(pluginID string) *errors.Error {
	return errors.New(ErrCodeEntityNotFound, "plugin config not found").
		WithUserMessage("No plugin with this id is known to the agent").
		WithContext("entity", "plugin config").
		WithContext("id", pluginID).
		WithSeverity("warning")
}

func NewInvalidEntityError(entity, reason string) *errors.Error {
	return errors.New(ErrCodeInvalidEntity, "Invalid "+entity+": "+reason).
		WithUserMessage("The configuration entry is not valid").
		WithContext("entity", entity).
		WithContext("reason", reason).
		WithSeverity("error")
}

func NewDuplicateContentError(entity, version string) *errors.Error {
	return errors.New(ErrCodeDuplicateContent, "Identical "+entity+" already exists").
		WithUserMessage("An identical configuration entry already exists").
		WithContext("entity", entity).
		WithContext("version", version).
		WithSeverity("warning")
}

func NewStoreClosedError() *errors.Error {
	return errors.New(ErrCodeStoreClosed, "Store is closed").
		WithUserMessage("The configuration store has been closed").
		WithSeverity("error")
}

// Document error constructors

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Failed to parse configuration document").
		WithUserMessage("The configuration file is not valid").
		WithContext("file_path", path).
		WithSeverity("error")
}

func NewConfigFileError(path, operation string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigFileError, "Configuration file "+operation+" failed").
		WithUserMessage("Could not access the configuration file").
		WithContext("file_path", path).
		WithContext("operation", operation).
		WithSeverity("error")
}

func NewConfigPathError(path, reason string) *errors.Error {
	return errors.New(ErrCodeConfigPathError, "Invalid configuration path: "+reason).
		WithUserMessage("The configuration path is not usable").
		WithContext("file_path", path).
		WithSeverity("error")
}

func NewSerializationError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeSerializationError, "Serialization error: "+message).
		WithUserMessage("Configuration serialization failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeConfigWatcherError, "Config watcher error: "+message).
			WithUserMessage("Configuration file watching failed").
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeConfigWatcherError, "Config watcher error: "+message).
		WithUserMessage("Configuration file watching failed").
		WithSeverity("error")
}

func NewAuditError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeAuditError, "Audit error: "+message).
		WithUserMessage("Configuration audit logging could not be set up").
		WithSeverity("error")
}

// Catalog error constructors

func NewInvalidCatalogError(message string) *errors.Error {
	return errors.New(ErrCodeInvalidCatalog, "Invalid plugin catalog: "+message).
		WithUserMessage("The plugin catalog is not valid").
		WithSeverity("error")
}

func NewDuplicatePluginError(pluginID string) *errors.Error {
	return errors.New(ErrCodeDuplicatePlugin, "Duplicate plugin id").
		WithUserMessage("Plugin ids must be unique within the catalog").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewInvalidPropertyError(pluginID, property, reason string) *errors.Error {
	return errors.New(ErrCodeInvalidProperty, "Invalid property descriptor: "+reason).
		WithUserMessage("A plugin property descriptor is not valid").
		WithContext("plugin_id", pluginID).
		WithContext("property", property).
		WithSeverity("error")
}

func NewCatalogReadError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeCatalogReadError, "Failed to read plugin descriptor").
		WithUserMessage("A plugin descriptor file could not be read").
		WithContext("file_path", path).
		WithSeverity("error")
}

// Predicates

// HasErrorCode reports whether err (or anything it wraps) is a structured
// error carrying code.
func HasErrorCode(err error, code string) bool {
	var structured *errors.Error
	if !stderrors.As(err, &structured) {
		return false
	}
	return structured.ErrorCode() == errors.ErrorCode(code)
}

// IsOptimisticLockError reports whether err is an optimistic-lock conflict.
func IsOptimisticLockError(err error) bool {
	return HasErrorCode(err, ErrCodeOptimisticLock)
}

// IsDuplicateError reports whether err is a natural-key or content duplicate.
func IsDuplicateError(err error) bool {
	return HasErrorCode(err, ErrCodeDuplicateKey) || HasErrorCode(err, ErrCodeDuplicateContent)
}

// IsNotFoundError reports whether err signals a missing entity.
func IsNotFoundError(err error) bool {
	return HasErrorCode(err, ErrCodeEntityNotFound)
}
