package crawler

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// ThrottleLevel indicates memory pressure severity.
type ThrottleLevel int

const (
	// ThrottleNormal indicates memory usage is within normal bounds.
	ThrottleNormal ThrottleLevel = iota
	// ThrottleWarning indicates memory usage is elevated (75-90% of limit).
	ThrottleWarning
	// ThrottleCritical indicates memory usage is critical (>90% of limit).
	ThrottleCritical
)

// defaultWarnPercent and defaultCriticalPercent are the throttle thresholds
// for a single-fetch-at-a-time crawl. Each concurrent worker holds its own
// fetched body (and the Frontier's links/scores derived from it) in memory
// at once, so higher concurrency needs to start throttling earlier; see
// ThresholdsForConcurrency.
const (
	defaultWarnPercent     = 75.0
	defaultCriticalPercent = 90.0
)

// MemoryWatcher monitors memory pressure and triggers throttling callbacks.
// It uses runtime/debug.SetMemoryLimit for soft memory limits (Go 1.19+).
type MemoryWatcher struct {
	mu              sync.RWMutex
	limitBytes      int64
	warnPercent     float64
	criticalPercent float64
	callback        func(level ThrottleLevel)
	lastLevel       ThrottleLevel
}

// NewMemoryWatcher creates a memory watcher with the specified limit in MB,
// using the default warn/critical thresholds (75%/90%).
// The runtime soft memory limit is set to 100% of the specified value.
func NewMemoryWatcher(limitMB int64) *MemoryWatcher {
	return NewMemoryWatcherWithThresholds(limitMB, defaultWarnPercent, defaultCriticalPercent)
}

// NewMemoryWatcherWithThresholds is NewMemoryWatcher with caller-supplied
// warn/critical percentages. ThresholdsForConcurrency derives sensible
// values from the Scheduler's worker count.
func NewMemoryWatcherWithThresholds(limitMB int64, warnPercent, criticalPercent float64) *MemoryWatcher {
	limitBytes := limitMB * 1024 * 1024

	// Set soft memory limit using Go 1.19+ API
	// We set it at 100% of requested limit - the caller should account for overhead
	debug.SetMemoryLimit(limitBytes)

	return &MemoryWatcher{
		limitBytes:      limitBytes,
		warnPercent:     warnPercent,
		criticalPercent: criticalPercent,
		lastLevel:       ThrottleNormal,
	}
}

// ThresholdsForConcurrency scales the warn/critical thresholds down as
// worker count rises: more concurrent fetchers hold more buffered response
// bodies in memory simultaneously, so high-concurrency runs need to react
// to memory pressure sooner than a single-worker crawl would.
func ThresholdsForConcurrency(concurrency int) (warnPercent, criticalPercent float64) {
	switch {
	case concurrency >= 64:
		return 60, 80
	case concurrency >= 32:
		return 70, 85
	default:
		return defaultWarnPercent, defaultCriticalPercent
	}
}

// Check returns current memory usage percentage and throttle level.
// Call this periodically to detect memory pressure.
func (m *MemoryWatcher) Check() (usedPercent float64, level ThrottleLevel) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Use HeapAlloc for actual memory in use (not Sys which includes reserved)
	usedBytes := float64(memStats.HeapAlloc)
	limitBytes := float64(m.limitBytes)

	if limitBytes <= 0 {
		return 0, ThrottleNormal
	}

	usedPercent = (usedBytes / limitBytes) * 100

	m.mu.RLock()
	warnPercent := m.warnPercent
	criticalPercent := m.criticalPercent
	m.mu.RUnlock()

	// Determine throttle level
	switch {
	case usedPercent >= criticalPercent:
		level = ThrottleCritical
	case usedPercent >= warnPercent:
		level = ThrottleWarning
	default:
		level = ThrottleNormal
	}

	// Trigger callback if level changed
	m.mu.RLock()
	lastLevel := m.lastLevel
	callback := m.callback
	m.mu.RUnlock()

	if level != lastLevel && callback != nil {
		m.mu.Lock()
		m.lastLevel = level
		m.mu.Unlock()
		callback(level)
	}

	return usedPercent, level
}

// SetThrottleCallback registers a callback to be invoked when throttle level changes.
func (m *MemoryWatcher) SetThrottleCallback(cb func(level ThrottleLevel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// SetLimit updates the memory limit in bytes.
func (m *MemoryWatcher) SetLimit(limitBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limitBytes = limitBytes
	debug.SetMemoryLimit(limitBytes)
}
