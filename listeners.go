// listeners.go: Change notification fan-out
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package agentconfig

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/agilira/go-timecache"
)

// ConfigListener is notified after a committed change. Listeners read the new
// state through the store's getters.
type ConfigListener interface {
	OnChange()
}

// ConfigListenerFunc adapts a plain function to ConfigListener.
type ConfigListenerFunc func()

// OnChange implements ConfigListener.
func (f ConfigListenerFunc) OnChange() { f() }

type registeredListener struct {
	id       uint64
	listener ConfigListener
}

// notification describes who to notify after a commit.
type notification struct {
	global     bool
	allPlugins bool
	pluginIDs  []string
}

// ListenerRegistry fans change notifications out to global listeners (any
// change) and plugin-scoped listeners (one plugin's change).
//
// Listeners are called sequentially on the committing goroutine, after the
// commit and outside the store's write lock. A panicking listener is logged
// and skipped; the remaining listeners still run.
type ListenerRegistry struct {
	mu      sync.RWMutex
	global  []registeredListener
	plugins map[string][]registeredListener
	nextID  uint64

	logger   Logger
	metrics  MetricsCollector
	failures atomic.Int64
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry(logger any, metrics MetricsCollector) *ListenerRegistry {
	if metrics == nil {
		metrics = NewDefaultMetricsCollector()
	}
	return &ListenerRegistry{
		plugins: make(map[string][]registeredListener),
		logger:  NewLogger(logger),
		metrics: metrics,
	}
}

// AddGlobal registers a listener for every committed change. The returned
// function unregisters it.
func (r *ListenerRegistry) AddGlobal(listener ConfigListener) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.global = append(r.global, registeredListener{id: id, listener: listener})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.global = withoutListener(r.global, id)
	}
}

// AddPlugin registers a listener for changes to one plugin's config and to
// the general enabled toggle. The returned function unregisters it.
func (r *ListenerRegistry) AddPlugin(pluginID string, listener ConfigListener) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.plugins[pluginID] = append(r.plugins[pluginID], registeredListener{id: id, listener: listener})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		remaining := withoutListener(r.plugins[pluginID], id)
		if len(remaining) == 0 {
			delete(r.plugins, pluginID)
			return
		}
		r.plugins[pluginID] = remaining
	}
}

func withoutListener(listeners []registeredListener, id uint64) []registeredListener {
	out := make([]registeredListener, 0, len(listeners))
	for _, l := range listeners {
		if l.id != id {
			out = append(out, l)
		}
	}
	return out
}

// NotifyGlobal calls every global listener.
func (r *ListenerRegistry) NotifyGlobal() {
	r.notify(notification{global: true})
}

// NotifyPlugin calls the listeners of one plugin.
func (r *ListenerRegistry) NotifyPlugin(pluginID string) {
	r.notify(notification{pluginIDs: []string{pluginID}})
}

// NotifyAllPlugins calls every plugin-scoped listener.
func (r *ListenerRegistry) NotifyAllPlugins() {
	r.notify(notification{allPlugins: true})
}

// Failures returns the number of listener calls that panicked.
func (r *ListenerRegistry) Failures() int64 {
	return r.failures.Load()
}

// Len returns the number of registered global and plugin-scoped listeners.
func (r *ListenerRegistry) Len() (global, plugin int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, listeners := range r.plugins {
		plugin += len(listeners)
	}
	return len(r.global), plugin
}

func (r *ListenerRegistry) notify(n notification) {
	targets := r.snapshot(n)
	if len(targets) == 0 {
		return
	}

	start := timecache.CachedTimeNano()
	for _, target := range targets {
		safeCall(r.failureHandler(target.scope), target.listener.OnChange)
	}
	elapsed := float64(timecache.CachedTimeNano()-start) / 1e6
	r.metrics.RecordHistogram(MetricNotifyDuration, nil, elapsed)
}

type notifyTarget struct {
	scope    string
	listener ConfigListener
}

// snapshot copies the listeners to call so that registration changes made
// by a listener do not affect the running notification.
func (r *ListenerRegistry) snapshot(n notification) []notifyTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []notifyTarget
	if n.global {
		for _, l := range r.global {
			targets = append(targets, notifyTarget{scope: "global", listener: l.listener})
		}
	}

	pluginIDs := n.pluginIDs
	if n.allPlugins {
		pluginIDs = make([]string, 0, len(r.plugins))
		for id := range r.plugins {
			pluginIDs = append(pluginIDs, id)
		}
		sort.Strings(pluginIDs)
	}
	for _, id := range pluginIDs {
		for _, l := range r.plugins[id] {
			targets = append(targets, notifyTarget{scope: "plugin:" + id, listener: l.listener})
		}
	}
	return targets
}

func (r *ListenerRegistry) failureHandler(scope string) RecoveryHandler {
	return func(recovered interface{}, stack []byte) {
		r.failures.Add(1)
		r.metrics.IncrementCounter(MetricListenerFailures, map[string]string{"scope": scope}, 1)
		r.logger.Error("Config listener failed",
			"scope", scope,
			"panic", recovered,
			"stack", string(stack))
	}
}
