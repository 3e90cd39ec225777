package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// OllamaEmbedderConfig points at a local Ollama server.
type OllamaEmbedderConfig struct {
	ServerURL string `yaml:"server_url"`
	Model     string `yaml:"model"`
}

// ONNXEmbedderConfig locates a sentence-transformer exported to ONNX.
type ONNXEmbedderConfig struct {
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LibraryPath string `yaml:"library_path"`
	MaxSeqLen   int    `yaml:"max_seq_len"`
	Dimension   int    `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	Workers   int                   `yaml:"workers"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Ollama    *OllamaEmbedderConfig `yaml:"ollama,omitempty"`
	ONNX      *ONNXEmbedderConfig   `yaml:"onnx,omitempty"`
}

// VectorIndexConfig selects and configures the vector index implementation.
type VectorIndexConfig struct {
	Type     string          `yaml:"type"`
	Path     string          `yaml:"path"`
	Badger   *BadgerConfig   `yaml:"badger,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// BadgerConfig configures the embedded Badger index.
type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// RedisConfig contains connection details for a Redis 8+ index.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PostgresConfig points at a Postgres server with pgvector installed.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SearchConfig holds the collection name and result-count bounds.
type SearchConfig struct {
	Collection  string `yaml:"collection"`
	DefaultTopK int    `yaml:"default_top_k"`
	MaxTopK     int    `yaml:"max_top_k"`
}

// CorpusConfig replaces the built-in documents when Documents is non-empty.
type CorpusConfig struct {
	Documents []string `yaml:"documents,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSecs int    `yaml:"read_timeout_secs"`
	SessionTTLMins  int    `yaml:"session_ttl_mins"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Search      SearchConfig      `yaml:"search"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// ${VAR} and ${VAR:-default} references are expanded from the environment before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/semsearch/config.yaml.
// If neither exists, it writes defaults to ~/.config/semsearch/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DataDir is where file-backed indexes and logs live by default.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".semsearch"
	}
	return filepath.Join(home, ".local", "share", "semsearch")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "semsearch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hashing", Dimension: 384},
		VectorIndex: VectorIndexConfig{Type: "sqlite", Path: filepath.Join(DataDir(), "index.db")},
		Search:      SearchConfig{Collection: "text_search_demo", DefaultTopK: 3, MaxTopK: 8},
		Server:      ServerConfig{Addr: ":8080", ReadTimeoutSecs: 15, SessionTTLMins: 30},
		Logging:     LoggingConfig{Level: "info"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	d := defaultConfig()
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = d.Embedder.Type
	}
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = d.Embedder.Dimension
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.ServerURL == "" {
			cfg.Embedder.Ollama.ServerURL = "http://localhost:11434"
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "all-minilm"
		}
	}
	if cfg.Embedder.Type == "onnx" {
		if cfg.Embedder.ONNX == nil {
			cfg.Embedder.ONNX = &ONNXEmbedderConfig{}
		}
		if cfg.Embedder.ONNX.MaxSeqLen == 0 {
			cfg.Embedder.ONNX.MaxSeqLen = 256
		}
		if cfg.Embedder.ONNX.Dimension == 0 {
			cfg.Embedder.ONNX.Dimension = 384
		}
	}

	if cfg.VectorIndex.Type == "" {
		cfg.VectorIndex.Type = d.VectorIndex.Type
	}
	if cfg.VectorIndex.Type == "sqlite" && cfg.VectorIndex.Path == "" {
		cfg.VectorIndex.Path = d.VectorIndex.Path
	}
	if cfg.VectorIndex.Type == "badger" {
		if cfg.VectorIndex.Badger == nil {
			cfg.VectorIndex.Badger = &BadgerConfig{}
		}
		if cfg.VectorIndex.Badger.Dir == "" && !cfg.VectorIndex.Badger.InMemory {
			cfg.VectorIndex.Badger.Dir = filepath.Join(DataDir(), "badger")
		}
	}
	if cfg.VectorIndex.Type == "qdrant" {
		if cfg.VectorIndex.Qdrant == nil {
			cfg.VectorIndex.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorIndex.Qdrant.URL == "" {
			cfg.VectorIndex.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorIndex.Qdrant.TimeoutSecs == 0 {
			cfg.VectorIndex.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.VectorIndex.Type == "redis" {
		if cfg.VectorIndex.Redis == nil {
			cfg.VectorIndex.Redis = &RedisConfig{}
		}
		if len(cfg.VectorIndex.Redis.Addrs) == 0 {
			cfg.VectorIndex.Redis.Addrs = []string{"localhost:6379"}
		}
	}

	if cfg.Search.Collection == "" {
		cfg.Search.Collection = d.Search.Collection
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = d.Search.DefaultTopK
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = d.Search.MaxTopK
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = d.Server.ReadTimeoutSecs
	}
	if cfg.Server.SessionTTLMins == 0 {
		cfg.Server.SessionTTLMins = d.Server.SessionTTLMins
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
}

// Validate checks the configuration for correctness.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hashing":
		if c.Embedder.Dimension <= 0 {
			return fmt.Errorf("embedder.dimension must be positive, got %d", c.Embedder.Dimension)
		}
	case "openai", "ollama":
	case "onnx":
		if c.Embedder.ONNX == nil || c.Embedder.ONNX.ModelPath == "" || c.Embedder.ONNX.VocabPath == "" {
			return fmt.Errorf("embedder.onnx.model_path and embedder.onnx.vocab_path are required")
		}
	default:
		return fmt.Errorf("embedder.type must be one of hashing, onnx, openai, ollama, got %q", c.Embedder.Type)
	}
	if c.Embedder.Workers < 0 {
		return fmt.Errorf("embedder.workers must not be negative, got %d", c.Embedder.Workers)
	}

	switch c.VectorIndex.Type {
	case "memory", "sqlite", "badger", "redis", "qdrant":
	case "postgres":
		if c.VectorIndex.Postgres == nil || c.VectorIndex.Postgres.DSN == "" {
			return fmt.Errorf("vector_index.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("vector_index.type must be one of memory, sqlite, badger, redis, qdrant, postgres, got %q", c.VectorIndex.Type)
	}

	if strings.TrimSpace(c.Search.Collection) == "" {
		return fmt.Errorf("search.collection is required")
	}
	if c.Search.MaxTopK < 1 {
		return fmt.Errorf("search.max_top_k must be at least 1, got %d", c.Search.MaxTopK)
	}
	if c.Search.DefaultTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k must be between 1 and %d, got %d", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
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
