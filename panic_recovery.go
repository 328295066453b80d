// panic_recovery.go: Panic recovery with stack traces for callbacks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"runtime"
)

// RecoveryHandler receives a recovered panic value and the stack of the
// panicking goroutine.
type RecoveryHandler func(recovered interface{}, stack []byte)

func captureStack() []byte {
	buf := make([]byte, 64<<10)
	n := runtime.Stack(buf, false)
	return buf[:n]
}

// withStackRecover returns a function to defer that logs any panic with its
// stack trace.
//
//	go func() {
//	    defer withStackRecover(logger, "document_watcher")()
//	    // potentially panicking code
//	}()
func withStackRecover(logger Logger, component string) func() {
	return func() {
		if r := recover(); r != nil {
			logRecoveredPanic(logger, component)(r, captureStack())
		}
	}
}

// logRecoveredPanic builds a handler that logs the panic at error level.
func logRecoveredPanic(logger Logger, component string) RecoveryHandler {
	return func(recovered interface{}, stack []byte) {
		logger.Error("Panic recovered",
			"component", component,
			"panic", recovered,
			"stack", string(stack))
	}
}

// safeCall runs fn, passing any panic to handler instead of unwinding
// further. It reports whether fn panicked.
func safeCall(handler RecoveryHandler, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			handler(r, captureStack())
		}
	}()
	fn()
	return false
}
