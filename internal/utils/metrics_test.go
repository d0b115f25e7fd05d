// internal/utils/metrics_test.go
package utils

import (
	"sync"
	"testing"
)

// TestMetricsCounters 测试计数器的递增与快照
func TestMetricsCounters(t *testing.T) {
	collector := GetMetricsCollector()

	base := collector.GetCounter("test.counter")
	collector.IncrementCounter("test.counter")
	collector.AddCounter("test.counter", 4)

	if got := collector.GetCounter("test.counter"); got != base+5 {
		t.Errorf("计数器应增加5，实际增加: %d", got-base)
	}

	snapshot := collector.Snapshot()
	if snapshot["test.counter"] != base+5 {
		t.Errorf("快照应包含最新值，实际: %d", snapshot["test.counter"])
	}
}

// TestMetricsConcurrentIncrement 测试并发递增不丢计数
func TestMetricsConcurrentIncrement(t *testing.T) {
	collector := GetMetricsCollector()
	base := collector.GetCounter("test.concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.IncrementCounter("test.concurrent")
			}
		}()
	}
	wg.Wait()

	if got := collector.GetCounter("test.concurrent"); got != base+1000 {
		t.Errorf("并发递增应不丢计数，期望增加1000，实际: %d", got-base)
	}
}

// TestMetricsUnknownCounter 测试未知计数器返回零值
func TestMetricsUnknownCounter(t *testing.T) {
	collector := GetMetricsCollector()
	if got := collector.GetCounter("test.never-touched"); got != 0 {
		t.Errorf("未知计数器应为0，实际: %d", got)
	}
}
