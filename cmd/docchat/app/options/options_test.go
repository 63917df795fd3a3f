package options

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerOptionsDefaultsValidate(t *testing.T) {
	opts := NewServerOptions()

	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())
}

func TestServerOptionsValidateAggregates(t *testing.T) {
	opts := NewServerOptions()
	opts.HTTPOptions.Addr = ""
	opts.PipelineOptions.TopK = 0
	opts.PipelineOptions.EmbeddingDim = 0

	err := opts.Validate()
	require.Error(t, err)

	// 聚合错误应同时包含所有校验失败项
	assert.Contains(t, err.Error(), "http.addr")
	assert.Contains(t, err.Error(), "pipeline.top-k")
	assert.Contains(t, err.Error(), "pipeline.embedding-dim")
}

func TestServerOptionsAddFlags(t *testing.T) {
	opts := NewServerOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)

	for _, name := range []string{
		"http.addr",
		"mysql.database",
		"milvus.address",
		"minio.bucket",
		"embedding.llm.model",
		"chat.llm.model",
		"pipeline.chunk-size",
		"shutdown-timeout",
	} {
		assert.NotNil(t, fs.Lookup(name), "flag %s should be registered", name)
	}
}

func TestServerOptionsConfig(t *testing.T) {
	opts := NewServerOptions()

	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Equal(t, opts.HTTPOptions, cfg.HTTPOptions)
	assert.Equal(t, opts.PipelineOptions, cfg.PipelineOptions)
	assert.Equal(t, opts.ShutdownTimeout, cfg.ShutdownTimeout)
}
