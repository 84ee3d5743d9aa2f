package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks commit and audit runs.
type MetricsCollector struct {
	mu sync.RWMutex

	commitStartTime time.Time
	commitEndTime   time.Time
	commitCount     int
	commitFailures  int
	commitTotalTime time.Duration

	auditStartTime time.Time
	auditEndTime   time.Time
	auditCount     int
	auditFailures  int
	auditTotalTime time.Duration

	transactionsProcessed int
	transactionsSkipped   int
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	Failures       int       `json:"failures"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

type MetricsResponse struct {
	Commit                OperationMetrics `json:"commit"`
	Audit                 OperationMetrics `json:"audit"`
	TransactionsProcessed int              `json:"transactions_processed"`
	TransactionsSkipped   int              `json:"transactions_skipped"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordCommitStart marks the start of a commit run
func (mc *MetricsCollector) RecordCommitStart() time.Time {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	if mc.commitCount == 0 {
		mc.commitStartTime = now
	}
	mc.commitCount++
	return now
}

// RecordCommitEnd marks the end of a commit run
func (mc *MetricsCollector) RecordCommitEnd(started time.Time, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.commitEndTime = time.Now()
	mc.commitTotalTime += mc.commitEndTime.Sub(started)
	if err != nil {
		mc.commitFailures++
	}
}

func (mc *MetricsCollector) RecordAuditStart() time.Time {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	if mc.auditCount == 0 {
		mc.auditStartTime = now
	}
	mc.auditCount++
	return now
}

// RecordAuditEnd closes an audit run; tally is nil when the run failed.
func (mc *MetricsCollector) RecordAuditEnd(started time.Time, tally *TallyResult) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.auditEndTime = time.Now()
	mc.auditTotalTime += mc.auditEndTime.Sub(started)
	if tally == nil {
		mc.auditFailures++
		return
	}
	mc.transactionsProcessed += tally.Processed
	mc.transactionsSkipped += tally.Skipped
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return MetricsResponse{
		Commit: OperationMetrics{
			StartTime:      mc.commitStartTime,
			EndTime:        mc.commitEndTime,
			Count:          mc.commitCount,
			Failures:       mc.commitFailures,
			ProcessingTime: mc.commitTotalTime.Milliseconds(),
		},
		Audit: OperationMetrics{
			StartTime:      mc.auditStartTime,
			EndTime:        mc.auditEndTime,
			Count:          mc.auditCount,
			Failures:       mc.auditFailures,
			ProcessingTime: mc.auditTotalTime.Milliseconds(),
		},
		TransactionsProcessed: mc.transactionsProcessed,
		TransactionsSkipped:   mc.transactionsSkipped,
	}
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.commitStartTime = time.Time{}
	mc.commitEndTime = time.Time{}
	mc.commitCount = 0
	mc.commitFailures = 0
	mc.commitTotalTime = 0

	mc.auditStartTime = time.Time{}
	mc.auditEndTime = time.Time{}
	mc.auditCount = 0
	mc.auditFailures = 0
	mc.auditTotalTime = 0

	mc.transactionsProcessed = 0
	mc.transactionsSkipped = 0
}
