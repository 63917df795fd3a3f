// Package metrics 提供 docchat 服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PipelineMetrics 文档摄取与聊天流水线业务指标。
type PipelineMetrics struct {
	// 摄取指标
	documentsIngested uint64 // 摄取成功的文档数
	chunksIngested    uint64 // 写入的分块数
	ingestErrors      uint64 // 摄取失败次数
	ingestConflicts   uint64 // 抢锁失败（文档已在处理中）次数

	// 检索指标
	retrievalVector   uint64  // 向量路径命中的检索次数
	retrievalFallback uint64  // 走关键词回退的检索次数
	retrievalEmpty    uint64  // 两级均零命中的检索次数
	retrievalDuration float64 // 检索总耗时（秒）

	// 聊天指标
	chatStreams   uint64 // 发起的流式回合数
	chatPersisted uint64 // 完整落库的助手消息数
	chatFailed    uint64 // 流异常终止的回合数
	chatCancelled uint64 // 调用方取消的回合数

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalMetrics *PipelineMetrics
	metricsOnce   sync.Once
)

// GetPipelineMetrics 获取全局指标实例。
func GetPipelineMetrics() *PipelineMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &PipelineMetrics{
			startTime: time.Now(),
		}
	})
	return globalMetrics
}

// RecordIngestion 记录一次摄取结果。
func (m *PipelineMetrics) RecordIngestion(chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIngested, 1)
	atomic.AddUint64(&m.chunksIngested, uint64(chunks))
}

// RecordIngestConflict 记录一次抢锁失败。
func (m *PipelineMetrics) RecordIngestConflict() {
	atomic.AddUint64(&m.ingestConflicts, 1)
}

// RecordRetrieval 记录一次检索及其命中路径。
func (m *PipelineMetrics) RecordRetrieval(strategy string, results int, duration time.Duration) {
	switch {
	case results == 0:
		atomic.AddUint64(&m.retrievalEmpty, 1)
	case strategy == "keyword":
		atomic.AddUint64(&m.retrievalFallback, 1)
	default:
		atomic.AddUint64(&m.retrievalVector, 1)
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordChatStream 记录一次流式回合的发起。
func (m *PipelineMetrics) RecordChatStream() {
	atomic.AddUint64(&m.chatStreams, 1)
}

// RecordChatPersisted 记录一次完整落库。
func (m *PipelineMetrics) RecordChatPersisted() {
	atomic.AddUint64(&m.chatPersisted, 1)
}

// RecordChatFailed 记录一次流异常终止。
func (m *PipelineMetrics) RecordChatFailed() {
	atomic.AddUint64(&m.chatFailed, 1)
}

// RecordChatCancelled 记录一次调用方取消。
func (m *PipelineMetrics) RecordChatCancelled() {
	atomic.AddUint64(&m.chatCancelled, 1)
}

// Stats 返回当前指标快照，用于管理接口的 JSON 输出。
func (m *PipelineMetrics) Stats() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	m.durationMu.Unlock()

	return map[string]any{
		"documents_ingested":         atomic.LoadUint64(&m.documentsIngested),
		"chunks_ingested":            atomic.LoadUint64(&m.chunksIngested),
		"ingest_errors":              atomic.LoadUint64(&m.ingestErrors),
		"ingest_conflicts":           atomic.LoadUint64(&m.ingestConflicts),
		"retrieval_vector":           atomic.LoadUint64(&m.retrievalVector),
		"retrieval_fallback":         atomic.LoadUint64(&m.retrievalFallback),
		"retrieval_empty":            atomic.LoadUint64(&m.retrievalEmpty),
		"retrieval_duration_seconds": retrievalDuration,
		"chat_streams":               atomic.LoadUint64(&m.chatStreams),
		"chat_persisted":             atomic.LoadUint64(&m.chatPersisted),
		"chat_failed":                atomic.LoadUint64(&m.chatFailed),
		"chat_cancelled":             atomic.LoadUint64(&m.chatCancelled),
		"uptime_seconds":             time.Since(m.startTime).Seconds(),
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *PipelineMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}

	counter("documents_ingested_total", "Documents ingested successfully.", atomic.LoadUint64(&m.documentsIngested))
	counter("chunks_ingested_total", "Chunks written to the vector store.", atomic.LoadUint64(&m.chunksIngested))
	counter("ingest_errors_total", "Failed ingestion runs.", atomic.LoadUint64(&m.ingestErrors))
	counter("ingest_conflicts_total", "Ingestion runs rejected because the document was already processing.", atomic.LoadUint64(&m.ingestConflicts))

	counter("retrieval_vector_total", "Retrievals answered by the vector path.", atomic.LoadUint64(&m.retrievalVector))
	counter("retrieval_fallback_total", "Retrievals answered by the keyword fallback.", atomic.LoadUint64(&m.retrievalFallback))
	counter("retrieval_empty_total", "Retrievals with no results from either path.", atomic.LoadUint64(&m.retrievalEmpty))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	m.durationMu.Unlock()
	sb.WriteString(fmt.Sprintf("# HELP %s_retrieval_duration_seconds_total Total retrieval duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_retrieval_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_retrieval_duration_seconds_total %.6f\n\n", prefix, retrievalDuration))

	counter("chat_streams_total", "Streaming chat turns started.", atomic.LoadUint64(&m.chatStreams))
	counter("chat_persisted_total", "Assistant messages persisted after full completion.", atomic.LoadUint64(&m.chatPersisted))
	counter("chat_failed_total", "Chat turns terminated by a stream error.", atomic.LoadUint64(&m.chatFailed))
	counter("chat_cancelled_total", "Chat turns cancelled by the caller.", atomic.LoadUint64(&m.chatCancelled))

	sb.WriteString(fmt.Sprintf("# HELP %s_uptime_seconds Service uptime.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_uptime_seconds gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_uptime_seconds %.0f\n", prefix, time.Since(m.startTime).Seconds()))

	return sb.String()
}

// Reset 清零所有指标，仅用于测试。
func (m *PipelineMetrics) Reset() {
	atomic.StoreUint64(&m.documentsIngested, 0)
	atomic.StoreUint64(&m.chunksIngested, 0)
	atomic.StoreUint64(&m.ingestErrors, 0)
	atomic.StoreUint64(&m.ingestConflicts, 0)
	atomic.StoreUint64(&m.retrievalVector, 0)
	atomic.StoreUint64(&m.retrievalFallback, 0)
	atomic.StoreUint64(&m.retrievalEmpty, 0)
	atomic.StoreUint64(&m.chatStreams, 0)
	atomic.StoreUint64(&m.chatPersisted, 0)
	atomic.StoreUint64(&m.chatFailed, 0)
	atomic.StoreUint64(&m.chatCancelled, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.durationMu.Unlock()
}
