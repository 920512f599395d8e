package observability

import (
	"strconv"
	"sync"
)

// Metrics provides basic in-memory counters for the pipeline.
type Metrics struct {
	mu              sync.Mutex
	stageCount      map[string]int64
	ruleCount       map[string]int64
	sinkFailures    map[string]int64
	queueRejections int64
	requestCount    map[string]int64
	errorCount      map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		stageCount:   make(map[string]int64),
		ruleCount:    make(map[string]int64),
		sinkFailures: make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordStage counts a completed pipeline stage.
func (m *Metrics) RecordStage(stage string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageCount[stage]++
}

// RecordRuleHit counts a triggered policy rule.
func (m *Metrics) RecordRuleHit(reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleCount[reason]++
}

// RecordSinkFailure counts a failed sink delivery.
func (m *Metrics) RecordSinkFailure(sink string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinkFailures[sink]++
}

// RecordQueueRejection counts a run rejected by the worker pool.
func (m *Metrics) RecordQueueRejection() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueRejections++
}

// RecordRequest increments counters for HTTP requests.
func (m *Metrics) RecordRequest(path, method string, status int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[requestKey(path, method, status)]++
}

// RecordError increments HTTP error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[path+"|"+method+"|"+code]++
}

// Snapshot returns a copy of all counters for the readiness payload.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"stages":           copyCounts(m.stageCount),
		"policy_rules":     copyCounts(m.ruleCount),
		"sink_failures":    copyCounts(m.sinkFailures),
		"queue_rejections": {"total": m.queueRejections},
	}
}

func requestKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
