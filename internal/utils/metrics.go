// internal/utils/metrics.go
package utils

import (
	"sync"
	"sync/atomic"
)

// 指标名称常量，后台任务（健康轮询、记忆持久化）通过计数器暴露状态，
// 前台可以检查这些值而不是依赖日志副作用
const (
	MetricTurnsProcessed       = "chat.turns_processed"
	MetricStrategyLLM          = "chat.strategy_llm"
	MetricStrategyEmotion      = "chat.strategy_emotion_fallback"
	MetricStrategyFallback     = "chat.strategy_fallback"
	MetricEmotionFailures      = "chat.emotion_failures"
	MetricHistorySanitized     = "chat.history_turns_sanitized"
	MetricHealthCheckOK        = "inference.health_check_ok"
	MetricHealthCheckFailed    = "inference.health_check_failed"
	MetricPersistenceFailures  = "inference.persistence_failures"
	MetricPersistenceSucceeded = "inference.persistence_succeeded"
	MetricCancelRequests       = "inference.cancel_requests"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	counters map[string]*Counter
	mu       sync.RWMutex
}

// Counter metric - using atomic operations for thread-safe value updates
type Counter struct {
	name  string
	value int64
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = &MetricsCollector{
			counters: make(map[string]*Counter),
		}
	})
	return globalMetrics
}

// getOrCreate returns the named counter, creating it on first use
func (m *MetricsCollector) getOrCreate(name string) *Counter {
	// Fast path for existing counters
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if exists {
		return counter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Double-check after acquiring write lock
	counter, exists = m.counters[name]
	if !exists {
		counter = &Counter{name: name}
		m.counters[name] = counter
	}
	return counter
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(&m.getOrCreate(name).value, 1)
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(&m.getOrCreate(name).value, value)
}

// GetCounter returns the current value of a counter (0 if never written)
func (m *MetricsCollector) GetCounter(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(&counter.value)
}

// Snapshot returns a copy of all counter values
func (m *MetricsCollector) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]int64, len(m.counters))
	for name, counter := range m.counters {
		snapshot[name] = atomic.LoadInt64(&counter.value)
	}
	return snapshot
}
