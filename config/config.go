// Package config resolves runtime settings from defaults, an optional YAML
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "config.yaml"

// ErrMissingAPIKey is returned by Validate when no provider key is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

type Config struct {
	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`

	Port            int           `yaml:"port"`
	CorpusPath      string        `yaml:"corpus_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Chunking   ChunkingConfig  `yaml:"chunking"`
	Embeddings EmbeddingConfig `yaml:"embeddings"`
	LLM        LLMConfig       `yaml:"llm"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	Index      IndexConfig     `yaml:"index"`
	Prompt     PromptConfig    `yaml:"prompt"`
	Log        LogConfig       `yaml:"log"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type EmbeddingConfig struct {
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

type LLMConfig struct {
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type IndexConfig struct {
	BuildTimeout time.Duration `yaml:"build_timeout"`
}

type PromptConfig struct {
	TemplateFile string `yaml:"template_file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when neither a file nor the environment
// overrides them.
func Default() Config {
	return Config{
		Port:            3000,
		CorpusPath:      "heraklion_history.txt",
		ShutdownTimeout: 10 * time.Second,
		Chunking: ChunkingConfig{
			Size:    200,
			Overlap: 50,
		},
		Embeddings: EmbeddingConfig{
			Model:       "text-embedding-ada-002",
			BatchSize:   64,
			Concurrency: 4,
		},
		LLM: LLMConfig{
			Model:   "gpt-3.5-turbo",
			Timeout: 60 * time.Second,
		},
		Retrieval: RetrievalConfig{TopK: 4},
		Index:     IndexConfig{BuildTimeout: 5 * time.Minute},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load layers the optional YAML file and then the environment on top of the
// defaults. It does not validate; callers decide which fields they need.
func Load() (Config, error) {
	cfg := Default()

	path := getEnv("CONFIG_FILE", "")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if err := loadFile(path, &cfg, explicit); err != nil {
		return Config{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.CorpusPath = getEnv("CORPUS_PATH", cfg.CorpusPath)
	cfg.Embeddings.Model = getEnv("EMBEDDING_MODEL", cfg.Embeddings.Model)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.Prompt.TemplateFile = getEnv("PROMPT_TEMPLATE_FILE", cfg.Prompt.TemplateFile)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &cfg.Port},
		{"CHUNK_SIZE", &cfg.Chunking.Size},
		{"CHUNK_OVERLAP", &cfg.Chunking.Overlap},
		{"EMBEDDING_DIMENSION", &cfg.Embeddings.Dimension},
		{"EMBEDDING_BATCH_SIZE", &cfg.Embeddings.BatchSize},
		{"EMBEDDING_CONCURRENCY", &cfg.Embeddings.Concurrency},
		{"RETRIEVAL_TOP_K", &cfg.Retrieval.TopK},
	}
	for _, item := range ints {
		value, err := getEnvInt(item.key, *item.dst)
		if err != nil {
			return err
		}
		*item.dst = value
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LLM_TIMEOUT", &cfg.LLM.Timeout},
		{"INDEX_BUILD_TIMEOUT", &cfg.Index.BuildTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, item := range durations {
		value, err := getEnvDuration(item.key, *item.dst)
		if err != nil {
			return err
		}
		*item.dst = value
	}

	return nil
}

// Validate reports the first setting that would prevent the server from
// starting.
func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.Concurrency <= 0 {
		return fmt.Errorf("embedding concurrency must be positive, got %d", c.Embeddings.Concurrency)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Index.BuildTimeout <= 0 {
		return fmt.Errorf("index build timeout must be positive, got %s", c.Index.BuildTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

func (c ChunkingConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Size, c.Overlap)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
