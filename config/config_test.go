package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3500, cfg.Chunking.ThresholdWords)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSizeWords)
	assert.Equal(t, 200, cfg.Chunking.OverlapWords)
	assert.Equal(t, 5, cfg.Chunking.TitleWeight)
	assert.Equal(t, "bge-base-en-v1.5", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 400, cfg.Retrieval.RetrievalK)
	assert.Equal(t, 150, cfg.Reranking.KeywordRerankTopN)
	assert.Equal(t, "log", cfg.Reranking.KeywordLengthNormalization)
	assert.Equal(t, 0.25, cfg.SemanticFilter.MinAbsoluteThreshold)
	assert.Equal(t, 4, cfg.Pool.Workers)
	assert.Equal(t, 24, cfg.Pool.QueueSize)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database_path: /tmp/test.db
chunking:
  threshold_words: 2000
embedding:
  model: gte-base-en-v1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	assert.Equal(t, 2000, cfg.Chunking.ThresholdWords)
	assert.Equal(t, "gte-base-en-v1.5", cfg.Embedding.Model)

	// Unset fields fall back to defaults.
	assert.Equal(t, 1000, cfg.Chunking.ChunkSizeWords)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 0.08, cfg.Reranking.TitleBoostMax)
}

func TestLoad_SignalTogglesHonored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
reranking:
  title_boost_enabled: false
  recency_boost:
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Reranking.TitleBoostEnabled)
	assert.False(t, cfg.Reranking.Recency.Enabled)
}

func TestLoad_ExplicitZeroHonored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
reranking:
  keyword_boost_max: 0
pool:
  timeout_seconds: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Reranking.KeywordBoostMax, "an explicit zero must not be overwritten")
	assert.Equal(t, 0, cfg.Pool.TimeoutSeconds)

	// Keys the file omits still carry defaults.
	assert.Equal(t, 0.03, cfg.Reranking.KeywordBoostScale)
	assert.Equal(t, 4, cfg.Pool.Workers)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
