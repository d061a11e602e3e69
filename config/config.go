// Package config defines the single configuration record for the search
// core, loaded from YAML with sensible defaults for every field.
package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// ChunkingConfig controls how long articles are split.
type ChunkingConfig struct {
	ThresholdWords int      `yaml:"threshold_words"`
	ChunkSizeWords int      `yaml:"chunk_size_words"`
	OverlapWords   int      `yaml:"overlap_words"`
	SectionMarkers []string `yaml:"section_markers"`
	TitleWeight    int      `yaml:"title_weight"`
}

// EmbeddingConfig identifies the embedding model and its endpoint.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
}

// RetrievalConfig controls the dense retrieval stage.
type RetrievalConfig struct {
	RetrievalK int `yaml:"retrieval_k"`
}

// PhrasePresenceBoost is one reranking signal; see RerankingConfig.
type PhrasePresenceBoost struct {
	Enabled         bool    `yaml:"enabled"`
	InTitle         float64 `yaml:"in_title"`
	InContent       float64 `yaml:"in_content"`
	AllTermsInTitle float64 `yaml:"all_terms_in_title"`
}

// SemanticDiscoveryBoost rewards high-similarity candidates with little
// literal term overlap.
type SemanticDiscoveryBoost struct {
	Enabled          bool    `yaml:"enabled"`
	MinSemanticScore float64 `yaml:"min_semantic_score"`
	MaxKeywordHits   int     `yaml:"max_keyword_hits"`
	Boost            float64 `yaml:"boost"`
}

// QueryLengthScaling shrinks all boost magnitudes for longer queries.
type QueryLengthScaling struct {
	ShortTerms       int     `yaml:"short_terms"`
	MediumTerms      int     `yaml:"medium_terms"`
	MediumMultiplier float64 `yaml:"medium_multiplier"`
	LongMultiplier   float64 `yaml:"long_multiplier"`
}

// RecencyBoost maps publication age to an additive score tier. At most
// one tier applies per candidate.
type RecencyBoost struct {
	Enabled    bool    `yaml:"enabled"`
	Week       float64 `yaml:"week"`
	Month      float64 `yaml:"month"`
	Quarter    float64 `yaml:"quarter"`
	Year       float64 `yaml:"year"`
	ThreeYears float64 `yaml:"three_years"`
}

// RerankingConfig holds every reranking signal's parameters. Each signal
// carries its own enabled flag so it can be rolled back independently.
type RerankingConfig struct {
	TitleBoostEnabled bool    `yaml:"title_boost_enabled"`
	TitleBoostMax     float64 `yaml:"title_boost_max"`

	KeywordBoostEnabled        bool    `yaml:"keyword_boost_enabled"`
	KeywordBoostMax            float64 `yaml:"keyword_boost_max"`
	KeywordBoostScale          float64 `yaml:"keyword_boost_scale"`
	KeywordDensityScale        float64 `yaml:"keyword_density_scale"`
	KeywordRerankTopN          int     `yaml:"keyword_rerank_top_n"`
	KeywordMaxQueryTerms       int     `yaml:"keyword_max_query_terms"`
	KeywordLengthNormalization string  `yaml:"keyword_length_normalization"` // "log" or "linear"
	KeywordLogBaseOffset       float64 `yaml:"keyword_log_base_offset"`

	PhrasePresence    PhrasePresenceBoost    `yaml:"phrase_presence_boost"`
	SemanticDiscovery SemanticDiscoveryBoost `yaml:"semantic_discovery_boost"`
	QueryLength       QueryLengthScaling     `yaml:"query_length_scaling"`
	Recency           RecencyBoost           `yaml:"recency_boost"`
}

// SemanticFilterConfig drives distribution-adaptive threshold selection
// over the retrieved score distribution.
type SemanticFilterConfig struct {
	MinAbsoluteThreshold     float64 `yaml:"min_absolute_threshold"`
	StdMultiplier            float64 `yaml:"std_multiplier"`
	DistributionAdaptive     bool    `yaml:"distribution_adaptive"`
	TightClusterStdThreshold float64 `yaml:"tight_cluster_std_threshold"`
	TightClusterMultiplier   float64 `yaml:"tight_cluster_multiplier"`
	WideSpreadStdThreshold   float64 `yaml:"wide_spread_std_threshold"`
	WideSpreadMultiplier     float64 `yaml:"wide_spread_multiplier"`
}

// PoolConfig bounds concurrent query execution.
type PoolConfig struct {
	Workers        int `yaml:"workers"`
	QueueSize      int `yaml:"queue_size"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Config is the root configuration record.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	IndexDir     string `yaml:"index_dir"`

	Chunking       ChunkingConfig       `yaml:"chunking"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Retrieval      RetrievalConfig      `yaml:"retrieval"`
	Reranking      RerankingConfig      `yaml:"reranking"`
	SemanticFilter SemanticFilterConfig `yaml:"semantic_filter"`
	Pool           PoolConfig           `yaml:"pool"`
}

// Load reads a config from path. A missing file yields the defaults.
// The file is decoded over the defaults, so keys it omits keep their
// default values while explicit values, including zeros, are honored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DatabasePath: "data/articles.db",
		IndexDir:     "data/index",
		Chunking: ChunkingConfig{
			ThresholdWords: 3500,
			ChunkSizeWords: 1000,
			OverlapWords:   200,
			SectionMarkers: []string{"\n\n", "\n"},
			TitleWeight:    5,
		},
		Embedding: EmbeddingConfig{
			Model:     "bge-base-en-v1.5",
			Dimension: 768,
			BaseURL:   "http://localhost:11434/v1",
			APIKeyEnv: "EMBEDDING_API_KEY",
			BatchSize: 32,
			CacheSize: 2048,
		},
		Retrieval: RetrievalConfig{
			RetrievalK: 400,
		},
		Reranking: RerankingConfig{
			TitleBoostEnabled: true,
			TitleBoostMax:     0.08,

			KeywordBoostEnabled:        true,
			KeywordBoostMax:            0.06,
			KeywordBoostScale:          0.03,
			KeywordDensityScale:        100.0,
			KeywordRerankTopN:          150,
			KeywordMaxQueryTerms:       5,
			KeywordLengthNormalization: "log",
			KeywordLogBaseOffset:       10,

			PhrasePresence: PhrasePresenceBoost{
				Enabled:         true,
				InTitle:         0.08,
				InContent:       0.06,
				AllTermsInTitle: 0.04,
			},
			SemanticDiscovery: SemanticDiscoveryBoost{
				Enabled:          true,
				MinSemanticScore: 0.70,
				MaxKeywordHits:   1,
				Boost:            0.025,
			},
			QueryLength: QueryLengthScaling{
				ShortTerms:       3,
				MediumTerms:      4,
				MediumMultiplier: 0.5,
				LongMultiplier:   0.25,
			},
			Recency: RecencyBoost{
				Enabled:    true,
				Week:       0.07,
				Month:      0.05,
				Quarter:    0.03,
				Year:       0.02,
				ThreeYears: 0.01,
			},
		},
		SemanticFilter: SemanticFilterConfig{
			MinAbsoluteThreshold:     0.25,
			StdMultiplier:            2.0,
			DistributionAdaptive:     true,
			TightClusterStdThreshold: 0.05,
			TightClusterMultiplier:   1.0,
			WideSpreadStdThreshold:   0.12,
			WideSpreadMultiplier:     2.5,
		},
		Pool: PoolConfig{
			Workers:        4,
			QueueSize:      24,
			TimeoutSeconds: 2,
		},
	}
}
