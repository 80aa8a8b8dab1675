package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fabfab/heraklion-chatbot/config"
)

func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "OPENAI_API_KEY", "OPENAI_BASE_URL", "PORT", "CORPUS_PATH",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "EMBEDDING_MODEL", "EMBEDDING_DIMENSION",
		"EMBEDDING_BATCH_SIZE", "EMBEDDING_CONCURRENCY", "LLM_MODEL", "LLM_TIMEOUT",
		"RETRIEVAL_TOP_K", "INDEX_BUILD_TIMEOUT", "PROMPT_TEMPLATE_FILE",
		"LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.Chunking.Size != 200 || cfg.Chunking.Overlap != 50 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" {
		t.Fatalf("unexpected llm model: %q", cfg.LLM.Model)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Fatalf("expected top_k 4, got %d", cfg.Retrieval.TopK)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "8080")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("LLM_TIMEOUT", "15s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("expected api key from env, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Chunking.Size != 500 {
		t.Fatalf("expected chunk size 500, got %d", cfg.Chunking.Size)
	}
	if cfg.LLM.Timeout != 15*time.Second {
		t.Fatalf("expected llm timeout 15s, got %s", cfg.LLM.Timeout)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "not-a-port")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for malformed PORT")
	}
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := "port: 4000\ncorpus_path: data/history.txt\nchunking:\n  size: 300\n  overlap: 30\nllm:\n  timeout: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "4500")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 4500 {
		t.Fatalf("expected env to win over file, got port %d", cfg.Port)
	}
	if cfg.CorpusPath != "data/history.txt" {
		t.Fatalf("unexpected corpus path: %q", cfg.CorpusPath)
	}
	if cfg.Chunking.Size != 300 || cfg.Chunking.Overlap != 30 {
		t.Fatalf("unexpected chunking: %+v", cfg.Chunking)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Fatalf("expected llm timeout 5s, got %s", cfg.LLM.Timeout)
	}
	if cfg.Embeddings.BatchSize != 64 {
		t.Fatalf("expected untouched defaults to survive, got batch size %d", cfg.Embeddings.BatchSize)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := config.Default()

	if err := cfg.Validate(); !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"overlap equals size": func(c *config.Config) { c.Chunking.Overlap = c.Chunking.Size },
		"negative overlap":    func(c *config.Config) { c.Chunking.Overlap = -1 },
		"zero chunk size":     func(c *config.Config) { c.Chunking.Size = 0 },
		"zero top k":          func(c *config.Config) { c.Retrieval.TopK = 0 },
		"port out of range":   func(c *config.Config) { c.Port = 70000 },
		"zero concurrency":    func(c *config.Config) { c.Embeddings.Concurrency = 0 },
		"zero llm timeout":    func(c *config.Config) { c.LLM.Timeout = 0 },
		"zero build timeout":  func(c *config.Config) { c.Index.BuildTimeout = 0 },
		"zero shutdown":       func(c *config.Config) { c.ShutdownTimeout = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.OpenAIAPIKey = "sk-test"
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsDefaultsWithKey(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
