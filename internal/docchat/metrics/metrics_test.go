package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestMetrics() *PipelineMetrics {
	m := GetPipelineMetrics()
	m.Reset()
	return m
}

func TestGetPipelineMetrics(t *testing.T) {
	m1 := GetPipelineMetrics()
	m2 := GetPipelineMetrics()
	assert.Same(t, m1, m2, "应该返回同一个单例实例")
}

func TestRecordIngestion(t *testing.T) {
	m := newTestMetrics()

	m.RecordIngestion(12, nil)
	m.RecordIngestion(8, nil)
	m.RecordIngestion(0, assert.AnError)
	m.RecordIngestConflict()

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats["documents_ingested"])
	assert.Equal(t, uint64(20), stats["chunks_ingested"])
	assert.Equal(t, uint64(1), stats["ingest_errors"])
	assert.Equal(t, uint64(1), stats["ingest_conflicts"])
}

func TestRecordRetrievalPaths(t *testing.T) {
	m := newTestMetrics()

	m.RecordRetrieval("vector", 3, 10*time.Millisecond)
	m.RecordRetrieval("keyword", 2, 10*time.Millisecond)
	m.RecordRetrieval("keyword", 0, 10*time.Millisecond)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats["retrieval_vector"])
	assert.Equal(t, uint64(1), stats["retrieval_fallback"])
	assert.Equal(t, uint64(1), stats["retrieval_empty"])
	assert.InDelta(t, 0.03, stats["retrieval_duration_seconds"], 0.001)
}

func TestRecordChat(t *testing.T) {
	m := newTestMetrics()

	m.RecordChatStream()
	m.RecordChatStream()
	m.RecordChatPersisted()
	m.RecordChatFailed()
	m.RecordChatCancelled()

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats["chat_streams"])
	assert.Equal(t, uint64(1), stats["chat_persisted"])
	assert.Equal(t, uint64(1), stats["chat_failed"])
	assert.Equal(t, uint64(1), stats["chat_cancelled"])
}

func TestExportPrometheusFormat(t *testing.T) {
	m := newTestMetrics()
	m.RecordIngestion(5, nil)

	out := m.Export("docchat", "pipeline")

	assert.Contains(t, out, "# HELP docchat_pipeline_documents_ingested_total")
	assert.Contains(t, out, "# TYPE docchat_pipeline_documents_ingested_total counter")
	assert.Contains(t, out, "docchat_pipeline_documents_ingested_total 1")
	assert.Contains(t, out, "docchat_pipeline_chunks_ingested_total 5")
	assert.Contains(t, out, "docchat_pipeline_uptime_seconds")
	assert.False(t, strings.Contains(out, "%!"), "no formatting errors in export")
}

func TestConcurrentRecording(t *testing.T) {
	m := newTestMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordIngestion(1, nil)
				m.RecordRetrieval("vector", 1, time.Millisecond)
				m.RecordChatStream()
			}
		}()
	}
	wg.Wait()

	stats := m.Stats()
	assert.Equal(t, uint64(1000), stats["documents_ingested"])
	assert.Equal(t, uint64(1000), stats["retrieval_vector"])
	assert.Equal(t, uint64(1000), stats["chat_streams"])
}
