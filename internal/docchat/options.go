// Package docchat provides the docchat service server implementation.
package docchat

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/pkg/options"
)

var _ options.IOptions = (*PipelineOptions)(nil)

// PipelineOptions 摄取与问答流水线配置。
type PipelineOptions struct {
	// ChunkSize 单块最大字符数。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻块重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK 聊天回合检索的段落数。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Threshold 向量检索相似度下限。
	Threshold float32 `json:"threshold" mapstructure:"threshold"`

	// EmbeddingDim 嵌入向量维度，需与嵌入模型输出一致。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// IngestWorkers 并发摄取任务数上限。
	IngestWorkers int `json:"ingest-workers" mapstructure:"ingest-workers"`

	// MaxHistory 带入提示词的历史消息条数上限。
	MaxHistory int `json:"max-history" mapstructure:"max-history"`
}

// NewPipelineOptions 创建默认流水线配置。
func NewPipelineOptions() *PipelineOptions {
	return &PipelineOptions{
		ChunkSize:     1000,
		ChunkOverlap:  200,
		TopK:          5,
		Threshold:     0.6,
		EmbeddingDim:  768,
		IngestWorkers: 4,
		MaxHistory:    20,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *PipelineOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	prefix := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, prefix+"pipeline.chunk-size", o.ChunkSize, "Maximum characters per chunk")
	fs.IntVar(&o.ChunkOverlap, prefix+"pipeline.chunk-overlap", o.ChunkOverlap, "Characters of overlap between adjacent chunks")
	fs.IntVar(&o.TopK, prefix+"pipeline.top-k", o.TopK, "Number of passages retrieved per chat turn")
	fs.Float32Var(&o.Threshold, prefix+"pipeline.threshold", o.Threshold, "Minimum cosine similarity for vector search results")
	fs.IntVar(&o.EmbeddingDim, prefix+"pipeline.embedding-dim", o.EmbeddingDim, "Embedding vector dimension")
	fs.IntVar(&o.IngestWorkers, prefix+"pipeline.ingest-workers", o.IngestWorkers, "Maximum concurrent document ingestion jobs")
	fs.IntVar(&o.MaxHistory, prefix+"pipeline.max-history", o.MaxHistory, "Maximum history messages included in the prompt")
}

// Validate verifies pipeline options.
func (o *PipelineOptions) Validate() []error {
	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("pipeline.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.top-k must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.embedding-dim must be positive"))
	}
	if o.IngestWorkers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.ingest-workers must be positive"))
	}
	return errs
}

// CacheOptions 嵌入结果缓存配置。
type CacheOptions struct {
	// Enabled 是否启用嵌入缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewCacheOptions 创建默认缓存配置。
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "docchat:emb:",
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *CacheOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "cache.enabled", o.Enabled, "Enable embedding result caching in Redis")
	fs.DurationVar(&o.TTL, "cache.ttl", o.TTL, "Embedding cache TTL")
	fs.StringVar(&o.KeyPrefix, "cache.key-prefix", o.KeyPrefix, "Embedding cache key prefix")
}
