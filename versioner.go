// versioner.go: Content-addressable version tokens for config sections
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tidwall/pretty"
)

// versionLength is the number of hex characters in a version token.
const versionLength = 40

// SentinelVersion is returned when a section cannot be serialized. It never
// equals a real token, so optimistic-lock checks against it always fail
// safely instead of crashing the write path.
var SentinelVersion = strings.Repeat("0", versionLength)

var canonicalOptions = &pretty.Options{Width: 80, Indent: "  ", SortKeys: true}

// ContentVersioner computes deterministic version tokens from the canonical
// serialization of a section: JSON with sorted object keys, no insignificant
// whitespace, and absent, null and empty optional fields all omitted.
type ContentVersioner struct {
	logger Logger
}

// NewContentVersioner creates a versioner that reports serialization
// failures to logger (nil for silent operation).
func NewContentVersioner(logger any) *ContentVersioner {
	return &ContentVersioner{logger: NewLogger(logger)}
}

// Hash returns the version token of section. It never panics and never
// returns an error: failures yield SentinelVersion and are logged.
func (v *ContentVersioner) Hash(section any) (version string) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Version hashing panicked, using sentinel version",
				"section_type", fmt.Sprintf("%T", section),
				"panic", r)
			version = SentinelVersion
		}
	}()

	canonical, err := CanonicalJSON(section)
	if err != nil {
		v.logger.Error("Failed to serialize section for versioning, using sentinel version",
			"section_type", fmt.Sprintf("%T", section),
			"error", err)
		return SentinelVersion
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:versionLength/2])
}

// CanonicalJSON returns the canonical serialization used for versioning.
func CanonicalJSON(section any) ([]byte, error) {
	raw, err := json.Marshal(section)
	if err != nil {
		return nil, NewSerializationError(fmt.Sprintf("%T", section), err)
	}
	return pretty.Ugly(pretty.PrettyOptions(raw, canonicalOptions)), nil
}

var (
	silentVersioner  = NewContentVersioner(nil)
	packageVersioner atomic.Pointer[ContentVersioner]
)

// SetVersionLogger routes serialization failures reported by the Version()
// methods of config sections to logger.
func SetVersionLogger(logger any) {
	packageVersioner.Store(NewContentVersioner(logger))
}

func defaultVersioner() *ContentVersioner {
	if v := packageVersioner.Load(); v != nil {
		return v
	}
	return silentVersioner
}
