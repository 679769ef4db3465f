package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"bilingual-rag/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	MaxRetries  int    `yaml:"max_retries"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
}

// HashingEmbedderConfig configures the offline hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// CacheConfig configures the query embedding cache. Size 0 disables it.
type CacheConfig struct {
	Size    int `yaml:"size"`
	TTLSecs int `yaml:"ttl_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string                 `yaml:"type"`
	OpenAI            *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing           *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	RequestsPerSecond float64                `yaml:"requests_per_second"`
	Burst             int                    `yaml:"burst"`
	Cache             CacheConfig            `yaml:"cache"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxLength     int `yaml:"max_length"`
	OverlapLength int `yaml:"overlap_length"`
}

// PathsConfig locates the pipeline's working directories.
type PathsConfig struct {
	PDFDir       string `yaml:"pdf_dir"`
	ExtractedDir string `yaml:"extracted_dir"`
	ChunkedDir   string `yaml:"chunked_dir"`
	VectorDir    string `yaml:"vector_dir"`
}

// DetectorConfig selects the query language detector.
type DetectorConfig struct {
	Type        string `yaml:"type"`
	LowAccuracy bool   `yaml:"low_accuracy"`
}

// RetrieverConfig configures retrieval defaults.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// GeneratorConfig selects and configures answer generation.
type GeneratorConfig struct {
	Type         string  `yaml:"type"`
	BaseURL      string  `yaml:"base_url"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
	MaxSentences int     `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins restricts CORS. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// AppConfig is the root application configuration structure. Corpora lists,
// per language, the chunk files merged into that language's index in order.
type AppConfig struct {
	Embedder  EmbedderConfig               `yaml:"embedder"`
	Chunker   ChunkerConfig                `yaml:"chunker"`
	Paths     PathsConfig                  `yaml:"paths"`
	Corpora   map[domain.Language][]string `yaml:"corpora"`
	Detector  DetectorConfig               `yaml:"detector"`
	Retriever RetrieverConfig              `yaml:"retriever"`
	Generator GeneratorConfig              `yaml:"generator"`
	Server    ServerConfig                 `yaml:"server"`
	Log       LogConfig                    `yaml:"log"`
}

// EmbedderTimeout returns the per-call embedding timeout.
func (c *AppConfig) EmbedderTimeout() time.Duration {
	if c.Embedder.OpenAI == nil {
		return 0
	}
	return time.Duration(c.Embedder.OpenAI.TimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfiguration, path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/bilingual-rag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
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

// Validate reports the first invalid setting as domain.ErrConfiguration.
func (c *AppConfig) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, fmt.Sprintf(format, args...))
	}
	switch c.Embedder.Type {
	case "openai", "hashing":
	default:
		return bad("unknown embedder type %q", c.Embedder.Type)
	}
	if c.Embedder.RequestsPerSecond < 0 || c.Embedder.Burst < 0 {
		return bad("embedder rate limit must not be negative")
	}
	if c.Chunker.MaxLength <= 0 {
		return bad("chunker.max_length must be positive")
	}
	if c.Chunker.OverlapLength < 0 || c.Chunker.OverlapLength >= c.Chunker.MaxLength {
		return bad("chunker.overlap_length must be in [0, max_length)")
	}
	for lang := range c.Corpora {
		if !slices.Contains(domain.Languages, lang) {
			return bad("corpora: unsupported language %q", lang)
		}
	}
	switch c.Detector.Type {
	case "lingua", "script":
	default:
		return bad("unknown detector type %q", c.Detector.Type)
	}
	if c.Retriever.TopK <= 0 {
		return bad("retriever.top_k must be positive")
	}
	switch c.Generator.Type {
	case "openai", "extractive":
	default:
		return bad("unknown generator type %q", c.Generator.Type)
	}
	if c.Paths.VectorDir == "" {
		return bad("paths.vector_dir is required")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bilingual-rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: "hashing"},
		Chunker:   ChunkerConfig{MaxLength: 1000, OverlapLength: 200},
		Detector:  DetectorConfig{Type: "lingua"},
		Generator: GeneratorConfig{Type: "extractive"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
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
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 5
		}
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 256
		}
	}
	if cfg.Embedder.Cache.Size > 0 && cfg.Embedder.Cache.TTLSecs == 0 {
		cfg.Embedder.Cache.TTLSecs = 600
	}
	if cfg.Chunker.MaxLength == 0 {
		cfg.Chunker.MaxLength = 1000
		if cfg.Chunker.OverlapLength == 0 {
			cfg.Chunker.OverlapLength = 200
		}
	}
	if cfg.Corpora == nil {
		cfg.Corpora = map[domain.Language][]string{
			domain.English: {"textbook_english_chunks.txt", "teachers_guide_english_chunks.txt"},
			domain.Bangla:  {"textbook_bangla_chunks.txt", "teachers_guide_bangla_chunks.txt"},
		}
	}
	if cfg.Paths.PDFDir == "" {
		cfg.Paths.PDFDir = "pdf"
	}
	if cfg.Paths.ExtractedDir == "" {
		cfg.Paths.ExtractedDir = "extracted_text"
	}
	if cfg.Paths.ChunkedDir == "" {
		cfg.Paths.ChunkedDir = "chunked_text"
	}
	if cfg.Paths.VectorDir == "" {
		cfg.Paths.VectorDir = "vector_store"
	}
	if cfg.Detector.Type == "" {
		cfg.Detector.Type = "lingua"
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 2
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "extractive"
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.BaseURL == "" {
			cfg.Generator.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gpt-4o-mini"
		}
		if cfg.Generator.Temperature == 0 {
			cfg.Generator.Temperature = 0.7
		}
		if cfg.Generator.TimeoutSecs == 0 {
			cfg.Generator.TimeoutSecs = 60
		}
	}
	if cfg.Generator.MaxSentences == 0 {
		cfg.Generator.MaxSentences = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
