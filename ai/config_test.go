package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, "bge-base-en-v1.5", cfg.Model)
	assert.Equal(t, 768, cfg.Dimension)
	assert.Equal(t, 32, cfg.BatchSize)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://embedder:9100/v1"),
		WithModel("gte-base-en-v1.5"),
		WithDimension(1024),
		WithAPIKey("secret"),
		WithBatchSize(64),
	)

	assert.Equal(t, "http://embedder:9100/v1", cfg.Host)
	assert.Equal(t, "gte-base-en-v1.5", cfg.Model)
	assert.Equal(t, 1024, cfg.Dimension)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 64, cfg.BatchSize)
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "adds v1 suffix", host: "http://localhost:11434", want: "http://localhost:11434/v1"},
		{name: "strips trailing slash", host: "http://localhost:11434/", want: "http://localhost:11434/v1"},
		{name: "already canonical", host: "http://localhost:11434/v1", want: "http://localhost:11434/v1"},
		{name: "empty untouched", host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Host: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.Host)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := NewConfig()
	require.NoError(t, valid.Validate())

	assert.Error(t, (&Config{Model: "m", Dimension: 768, BatchSize: 32}).Validate())
	assert.Error(t, (&Config{Host: "http://x/v1", Dimension: 768, BatchSize: 32}).Validate())
	assert.Error(t, (&Config{Host: "http://x/v1", Model: "m", BatchSize: 32}).Validate())
	assert.Error(t, (&Config{Host: "http://x/v1", Model: "m", Dimension: 768}).Validate())
}
