// Package agentconfig provides the versioned configuration store of a
// monitoring agent: general settings, storage policy, UI settings, advanced
// tuning, and the plugin, capture point, gauge and alert collections.
//
// The store keeps one immutable snapshot of the configuration. Readers use it
// without locking; writers submit a replacement section or list item together
// with the version token they last read, and the store rejects the change if
// someone else committed first. Version tokens are content hashes, so any two
// copies of a section can be compared for equality.
//
// Key Features:
//   - Lock-free reads of a consistent snapshot
//   - Optimistic concurrency with content-addressable version tokens
//   - JSON or YAML document with legacy field renames and structural backfills
//   - Plugin properties reconciled against each plugin's declared schema
//   - Recovery from corrupt documents with a .invalid-orig backup
//   - Global and plugin-scoped change listeners
//   - Optional argus watcher for operator edits and argus audit trail
//
// Basic Usage:
//
//	catalog, err := agentconfig.LoadPluginCatalog("plugins/jdbc.json", "plugins/servlet.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store, err := agentconfig.NewStore("/var/lib/agent", catalog, agentconfig.DefaultStoreOptions(), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	prior := store.GeneralConfig()
//	general := prior
//	general.TraceStoreThresholdMillis = 500
//	if _, err := store.UpdateGeneralConfig(general, prior.Version()); err != nil {
//		if agentconfig.IsOptimisticLockError(err) {
//			// re-read and retry
//		}
//	}
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package agentconfig
