// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads hybridrag settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/hybridrag/ai"
	"gopkg.in/yaml.v3"
)

// Embedding providers.
const (
	EmbeddingHashing = "hashing"
	EmbeddingOpenAI  = "openai"
)

// Config holds every hybridrag setting. The zero value plus ApplyDefaults is
// a usable local configuration.
type Config struct {
	// Dir holds the vector store and the index snapshot.
	Dir        string          `yaml:"dir"`
	Collection string          `yaml:"collection"`
	Chunking   ChunkingConfig  `yaml:"chunking"`
	Ingestion  IngestionConfig `yaml:"ingestion"`
	Search     SearchConfig    `yaml:"search"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	AI         AIConfig        `yaml:"ai"`
	Bootstrap  BootstrapConfig `yaml:"bootstrap"`
	Logging    LoggingConfig   `yaml:"logging"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

// ChunkingConfig holds the word window used for plain text.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IngestionConfig holds vector build settings.
type IngestionConfig struct {
	BatchSize      int `yaml:"batch_size"`
	PoolSize       int `yaml:"pool_size"` // 0 = NumCPU/2
	MaxRetries     int `yaml:"max_retries"`
	RetryDelayMs   int `yaml:"retry_delay_ms"`
	CallTimeoutSec int `yaml:"call_timeout_sec"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	Mode          string  `yaml:"mode"` // lexical, vector, hybrid
	TopK          int     `yaml:"top_k"`
	LexicalWeight float64 `yaml:"lexical_weight"`
	VectorWeight  float64 `yaml:"vector_weight"`
	TimeoutSec    int     `yaml:"timeout_sec"`
}

// EmbeddingConfig selects the embedding function.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // hashing (default) or openai
	Width    int    `yaml:"width"`    // hashing only
}

// AIConfig holds the OpenAI-compatible endpoint used for answers and,
// when Embedding.Provider is openai, for embeddings.
type AIConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Host            string  `yaml:"host"`
	APIKey          string  `yaml:"api_key"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	GenerationModel string  `yaml:"generation_model"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	TimeoutSec      int     `yaml:"timeout_sec"`
}

// BootstrapConfig controls the startup ingestion retry loop.
type BootstrapConfig struct {
	MaxAttempts  int `yaml:"max_attempts"`
	RetryDelayMs int `yaml:"retry_delay_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MetricsConfig holds the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load reads configuration from a YAML file, expands ${VAR} and
// ${VAR:-default} references, applies defaults and validates the result.
// An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration from data.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = "hybridrag-data"
	}
	if c.Collection == "" {
		c.Collection = "medical_knowledge"
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 1000
		if c.Chunking.Overlap == 0 {
			c.Chunking.Overlap = 200
		}
	}
	if c.Ingestion.BatchSize <= 0 {
		c.Ingestion.BatchSize = 100
	}
	if c.Ingestion.MaxRetries <= 0 {
		c.Ingestion.MaxRetries = 3
	}
	if c.Ingestion.RetryDelayMs <= 0 {
		c.Ingestion.RetryDelayMs = 500
	}
	if c.Ingestion.CallTimeoutSec <= 0 {
		c.Ingestion.CallTimeoutSec = 30
	}
	if c.Search.Mode == "" {
		c.Search.Mode = "hybrid"
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = 5
	}
	if c.Search.LexicalWeight == 0 && c.Search.VectorWeight == 0 {
		c.Search.LexicalWeight = 0.6
		c.Search.VectorWeight = 0.4
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = EmbeddingHashing
	}
	if c.Embedding.Width <= 0 {
		c.Embedding.Width = 384
	}

	defaults := ai.DefaultConfig()
	if c.AI.Host == "" {
		c.AI.Host = defaults.Host
	}
	if c.AI.APIKey == "" {
		c.AI.APIKey = defaults.APIKey
	}
	if c.AI.EmbeddingModel == "" {
		c.AI.EmbeddingModel = defaults.EmbeddingModel
	}
	if c.AI.GenerationModel == "" {
		c.AI.GenerationModel = defaults.GenerationModel
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = defaults.Temperature
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = defaults.MaxTokens
	}
	if c.AI.TimeoutSec <= 0 {
		c.AI.TimeoutSec = 60
	}

	if c.Bootstrap.MaxAttempts <= 0 {
		c.Bootstrap.MaxAttempts = 3
	}
	if c.Bootstrap.RetryDelayMs <= 0 {
		c.Bootstrap.RetryDelayMs = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Ingestion.PoolSize < 0 {
		return fmt.Errorf("ingestion.pool_size must not be negative, got %d", c.Ingestion.PoolSize)
	}
	switch strings.ToLower(c.Search.Mode) {
	case "lexical", "bm25", "vector", "hybrid":
	default:
		return fmt.Errorf("search.mode must be lexical, vector or hybrid, got %q", c.Search.Mode)
	}
	if c.Search.LexicalWeight < 0 || c.Search.VectorWeight < 0 {
		return errors.New("search weights must not be negative")
	}
	switch c.Embedding.Provider {
	case EmbeddingHashing, EmbeddingOpenAI:
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			EmbeddingHashing, EmbeddingOpenAI, c.Embedding.Provider)
	}
	if c.Embedding.Provider == EmbeddingOpenAI || c.AI.Enabled {
		if err := c.AIConfig().Validate(); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// AIConfig converts the ai section to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.AI.Host),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxTokens(c.AI.MaxTokens),
	)
}

// VectorDir is where the vector collection lives.
func (c *Config) VectorDir() string {
	return filepath.Join(c.Dir, "vectors")
}

// SnapshotDir is where the document table and lexical state live.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.Dir, "snapshot")
}

// RetryDelay returns the ingestion retry base delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Ingestion.RetryDelayMs) * time.Millisecond
}

// CallTimeout returns the per-call embedding and store timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Ingestion.CallTimeoutSec) * time.Second
}

// SearchTimeout returns the vector search timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSec) * time.Second
}

// AnswerTimeout returns the answer generation timeout.
func (c *Config) AnswerTimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSec) * time.Second
}

// BootstrapDelay returns the base delay between bootstrap attempts.
func (c *Config) BootstrapDelay() time.Duration {
	return time.Duration(c.Bootstrap.RetryDelayMs) * time.Millisecond
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
