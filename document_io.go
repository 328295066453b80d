// document_io.go: Secure file access and format handling for config documents
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// maxDocumentSize bounds every document read to prevent memory exhaustion.
const maxDocumentSize = int64(10 * 1024 * 1024)

// cleanDocumentPath normalizes a document path that may not exist yet.
//
// The check rejects:
//   - empty paths and embedded null bytes
//   - ".." components, plain or percent-encoded
//   - control characters and paths longer than the OS accepts
func cleanDocumentPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty file path provided")
	}
	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("null byte detected in path")
	}
	if strings.Contains(path, "%2e%2e") || strings.Contains(path, "%2E%2E") {
		return "", fmt.Errorf("encoded path traversal detected")
	}
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return "", fmt.Errorf("path traversal detected: contains '..' component")
		}
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	maxLength := 4095
	if runtime.GOOS == "windows" {
		maxLength = 259
	}
	if len(absPath) > maxLength {
		return "", fmt.Errorf("path too long: %d characters (max %d)", len(absPath), maxLength)
	}
	for i, r := range absPath {
		if r < 32 && r != '\t' {
			return "", fmt.Errorf("control character at position %d in path", i)
		}
	}
	return absPath, nil
}

// validateAndSecureFilePath cleans path and checks that it names an existing,
// readable regular file within the size limit.
func validateAndSecureFilePath(path string) (string, error) {
	absPath, err := cleanDocumentPath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("path is not a regular file: %s", absPath)
	}
	if info.Size() > maxDocumentSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxDocumentSize)
	}
	return absPath, nil
}

// readFileSecurely reads a regular file of bounded size. Errors wrap the
// underlying os error so callers can test for fs.ErrNotExist.
func readFileSecurely(path string) ([]byte, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("file is no longer a regular file")
	}
	if info.Size() > maxDocumentSize {
		return nil, fmt.Errorf("file size exceeds limit: %d > %d", info.Size(), maxDocumentSize)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileSecurely replaces filename with data. The content goes to a
// temporary sibling first and is renamed into place, so a concurrent reader
// sees either the old or the new document.
func writeFileSecurely(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0600); err != nil && runtime.GOOS != "windows" {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write file content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	return nil
}

// documentFormat picks the codec from the file extension. Anything argus
// does not recognise as YAML is treated as JSON.
func documentFormat(path string) argus.ConfigFormat {
	if argus.DetectFormat(path) == argus.FormatYAML {
		return argus.FormatYAML
	}
	return argus.FormatJSON
}

// checkDocumentRoot rejects a configuration document whose top level is not
// an object. A bare null decodes without error into either format and would
// otherwise load as an untouched set of defaults.
func checkDocumentRoot(content []byte, format argus.ConfigFormat) error {
	trimmed := bytes.TrimSpace(content)
	if format == argus.FormatYAML {
		var root yaml.Node
		if err := yaml.Unmarshal(trimmed, &root); err != nil {
			return fmt.Errorf("failed to parse YAML document: %w", err)
		}
		if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
			return fmt.Errorf("document root must be a mapping")
		}
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("document root must be an object")
	}
	return nil
}

// decodeDocument parses content into target using the hybrid strategy:
//   - JSON objects: argus parses to a tree, which is bound to target
//   - JSON arrays: encoding/json directly (argus trees are objects only)
//   - YAML: gopkg.in/yaml.v3, which handles the full YAML syntax
func decodeDocument(content []byte, format argus.ConfigFormat, target any) error {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return fmt.Errorf("document is empty")
	}

	if format == argus.FormatYAML {
		if err := yaml.Unmarshal(trimmed, target); err != nil {
			return fmt.Errorf("failed to parse YAML document: %w", err)
		}
		return nil
	}

	if !json.Valid(trimmed) {
		return fmt.Errorf("document is not valid JSON")
	}
	if trimmed[0] != '{' {
		return json.Unmarshal(trimmed, target)
	}
	tree, err := argus.ParseConfig(trimmed, argus.FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to parse JSON document: %w", err)
	}
	return bindDocumentTree(tree, target)
}

// bindDocumentTree converts a parsed tree to a typed value by way of JSON,
// which keeps the custom unmarshalers of property values in play.
func bindDocumentTree(tree map[string]interface{}, target any) error {
	if tree == nil {
		return fmt.Errorf("document tree is nil")
	}
	jsonBytes, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal document tree: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to bind document: %w", err)
	}
	return nil
}
