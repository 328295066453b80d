// config_migration.go: Legacy field renames and structural backfills
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"regexp"
	"strings"

	"github.com/agilira/argus"
)

// fieldRename maps a document key used by an earlier release to its current name.
type fieldRename struct {
	Old string
	New string
}

// legacyFieldRenames is applied to the raw document before parsing. Entries
// are appended when a key is renamed and never removed.
var legacyFieldRenames = []fieldRename{
	{Old: "defaultTransactionType", New: "defaultDisplayedTransactionType"},
	{Old: "cappedDatabaseSizeMb", New: "traceCappedDatabaseSizeMb"},
	{Old: "maxEntriesPerTrace", New: "maxTraceEntriesPerTransaction"},
}

var yamlRenamePatterns = compileYAMLRenamePatterns(legacyFieldRenames)

func compileYAMLRenamePatterns(renames []fieldRename) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(renames))
	for i, rename := range renames {
		patterns[i] = regexp.MustCompile(`(?m)^(\s*(?:-\s+)?)` + regexp.QuoteMeta(rename.Old) + `(\s*):`)
	}
	return patterns
}

// applyLegacyRenames rewrites old key names in raw document content. JSON keys
// are matched with their quotes; YAML keys at the start of a mapping line.
func applyLegacyRenames(content []byte, format argus.ConfigFormat) ([]byte, []string) {
	text := string(content)
	var applied []string
	for i, rename := range legacyFieldRenames {
		before := text
		if format == argus.FormatYAML {
			text = yamlRenamePatterns[i].ReplaceAllString(text, "${1}"+rename.New+"${2}:")
		} else {
			text = strings.ReplaceAll(text, `"`+rename.Old+`"`, `"`+rename.New+`"`)
		}
		if text != before {
			applied = append(applied, rename.Old)
		}
	}
	return []byte(text), applied
}

// fitCardinality truncates or pads values to the length of defaults, padding
// with the default at the same position.
func fitCardinality[T any](values, defaults []T) ([]T, bool) {
	if len(values) == len(defaults) {
		return values, false
	}
	out := make([]T, len(defaults))
	n := copy(out, values)
	copy(out[n:], defaults[n:])
	return out, true
}

// backfillStorage repairs the rollup list cardinality.
func backfillStorage(storage StorageConfig) (StorageConfig, bool) {
	defaults := DefaultStorageConfig()
	var expirationChanged, sizesChanged bool
	storage.RollupExpirationHours, expirationChanged = fitCardinality(storage.RollupExpirationHours, defaults.RollupExpirationHours)
	storage.RollupCappedDatabaseSizesMb, sizesChanged = fitCardinality(storage.RollupCappedDatabaseSizesMb, defaults.RollupCappedDatabaseSizesMb)
	return storage, expirationChanged || sizesChanged
}

// backfillDefaultTransactionType derives an empty default displayed
// transaction type from the first plugin-declared transaction type, else the
// first capture point transaction type.
func backfillDefaultTransactionType(ui UserInterfaceConfig, catalog PluginCatalog, instrumentation []InstrumentationConfig) (UserInterfaceConfig, bool) {
	if ui.DefaultDisplayedTransactionType != "" {
		return ui, false
	}
	derived := catalog.FirstTransactionType()
	if derived == "" {
		for _, capturePoint := range instrumentation {
			if capturePoint.TransactionType != "" {
				derived = capturePoint.TransactionType
				break
			}
		}
	}
	if derived == "" {
		return ui, false
	}
	ui.DefaultDisplayedTransactionType = derived
	return ui, true
}
