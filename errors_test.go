// errors_test.go: Tests for structured error definitions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestStoreErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.Error
		code     string
		severity string
		context  map[string]interface{}
	}{
		{
			name:     "optimistic lock",
			err:      NewOptimisticLockError("general config", "aaa", "bbb"),
			code:     ErrCodeOptimisticLock,
			severity: "warning",
			context:  map[string]interface{}{"section": "general config", "expected_version": "aaa", "current_version": "bbb"},
		},
		{
			name:     "duplicate mbean object name",
			err:      NewDuplicateMBeanObjectNameError("java.lang:type=Memory"),
			code:     ErrCodeDuplicateKey,
			severity: "warning",
			context:  map[string]interface{}{"mbean_object_name": "java.lang:type=Memory"},
		},
		{
			name:     "entity not found",
			err:      NewEntityNotFoundError("alert", "ccc"),
			code:     ErrCodeEntityNotFound,
			severity: "warning",
			context:  map[string]interface{}{"entity": "alert", "version": "ccc"},
		},
		{
			name:     "plugin not found",
			err:      NewPluginNotFoundError("jdbc"),
			code:     ErrCodeEntityNotFound,
			severity: "warning",
			context:  map[string]interface{}{"id": "jdbc"},
		},
		{
			name:     "invalid entity",
			err:      NewInvalidEntityError("gauge", "bad name"),
			code:     ErrCodeInvalidEntity,
			severity: "error",
			context:  map[string]interface{}{"entity": "gauge", "reason": "bad name"},
		},
		{
			name:     "duplicate content",
			err:      NewDuplicateContentError("capture point", "ddd"),
			code:     ErrCodeDuplicateContent,
			severity: "warning",
			context:  map[string]interface{}{"version": "ddd"},
		},
		{
			name:     "store closed",
			err:      NewStoreClosedError(),
			code:     ErrCodeStoreClosed,
			severity: "error",
		},
		{
			name:     "duplicate plugin",
			err:      NewDuplicatePluginError("jdbc"),
			code:     ErrCodeDuplicatePlugin,
			severity: "error",
			context:  map[string]interface{}{"plugin_id": "jdbc"},
		},
		{
			name:     "invalid property",
			err:      NewInvalidPropertyError("jdbc", "flag", "unknown type"),
			code:     ErrCodeInvalidProperty,
			severity: "error",
			context:  map[string]interface{}{"plugin_id": "jdbc", "property": "flag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, errors.ErrorCode(tt.code), tt.err.ErrorCode())
			assert.Equal(t, tt.severity, tt.err.Severity)
			assert.NotEmpty(t, tt.err.UserMessage())
			assert.False(t, tt.err.IsRetryable())
			for key, value := range tt.context {
				assert.Equal(t, value, tt.err.Context[key], key)
			}
		})
	}
}

func TestDocumentErrorConstructorsWrapCause(t *testing.T) {
	cause := fmt.Errorf("open config.json: %w", fs.ErrPermission)

	tests := []struct {
		name string
		err  *errors.Error
		code string
	}{
		{"parse", NewConfigParseError("/data/config.json", cause), ErrCodeConfigParseError},
		{"file", NewConfigFileError("/data/config.json", "write", cause), ErrCodeConfigFileError},
		{"serialization", NewSerializationError("config document", cause), ErrCodeSerializationError},
		{"watcher", NewConfigWatcherError("failed to start", cause), ErrCodeConfigWatcherError},
		{"audit", NewAuditError("failed to open", cause), ErrCodeAuditError},
		{"catalog read", NewCatalogReadError("/plugins/jdbc.json", cause), ErrCodeCatalogReadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, HasErrorCode(tt.err, tt.code))
			assert.Equal(t, cause, tt.err.Cause)
			assert.True(t, stderrors.Is(tt.err.Cause, fs.ErrPermission))
		})
	}

	watcherErr := NewConfigWatcherError("already running", nil)
	assert.True(t, HasErrorCode(watcherErr, ErrCodeConfigWatcherError))
}

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("update failed: %w", NewOptimisticLockError("ui config", "a", "b"))

	assert.True(t, IsOptimisticLockError(wrapped))
	assert.False(t, IsNotFoundError(wrapped))
	assert.False(t, IsDuplicateError(wrapped))

	assert.True(t, IsDuplicateError(NewDuplicateMBeanObjectNameError("x:y=z")))
	assert.True(t, IsDuplicateError(NewDuplicateContentError("alert", "v")))
	assert.True(t, IsNotFoundError(NewPluginNotFoundError("jdbc")))

	assert.False(t, HasErrorCode(nil, ErrCodeOptimisticLock))
	assert.False(t, HasErrorCode(fmt.Errorf("plain"), ErrCodeOptimisticLock))
}
