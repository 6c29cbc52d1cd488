package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port"` // metrics/health listener
}

type GoogleVisionConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

type AzureReadConfig struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
}

type OCRConfig struct {
	Provider     string             `yaml:"provider"` // tesseract|google_vision|azure_cv
	Language     string             `yaml:"language"`
	GoogleVision GoogleVisionConfig `yaml:"google_vision"`
	AzureRead    AzureReadConfig    `yaml:"azure"`
}

type LocalStorageConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"` // used only for the storage locator string
}

type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

type StorageConfig struct {
	Backend   string             `yaml:"backend"` // local|postgres|firestore
	Local     LocalStorageConfig `yaml:"local"`
	Postgres  PostgresConfig     `yaml:"postgres"`
	Firestore FirestoreConfig    `yaml:"firestore"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ProcessingConfig struct {
	MaxFileSizeMB    int           `yaml:"max_file_size_mb"`
	SupportedFormats []string      `yaml:"supported_formats"`
	Concurrency      int           `yaml:"concurrency"` // queue worker pool size
	JobTimeout       time.Duration `yaml:"job_timeout"`
	JobAttempts      int           `yaml:"job_attempts"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type AIConfig struct {
	Provider    string        `yaml:"provider"` // gemini|openai|ollama
	Enabled     bool          `yaml:"enabled"`
	TokenBudget int           `yaml:"token_budget"` // prompt text cap
	Gemini      GeminiConfig  `yaml:"gemini"`
	OpenAI      OpenAIConfig  `yaml:"openai"`
	Ollama      OllamaConfig  `yaml:"ollama"`
	Runtime     RuntimeConfig `yaml:"-"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	OCR        OCRConfig        `yaml:"ocr"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Processing ProcessingConfig `yaml:"processing"`
	AI         AIConfig         `yaml:"ai"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads and validates the YAML config file. Defaults are applied
// before validation so a minimal file is enough for local runs.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Admin.Port <= 0 {
		c.Admin.Port = 9091
	}
	if c.OCR.Provider == "" {
		c.OCR.Provider = "tesseract"
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Local.Path == "" {
		c.Storage.Local.Path = "./storage"
	}
	if c.Storage.Firestore.Collection == "" {
		c.Storage.Firestore.Collection = "documents"
	}
	if c.Processing.MaxFileSizeMB <= 0 {
		c.Processing.MaxFileSizeMB = 50
	}
	if len(c.Processing.SupportedFormats) == 0 {
		c.Processing.SupportedFormats = []string{
			"pdf", "png", "jpg", "jpeg", "tiff", "bmp", "gif", "webp",
			"docx", "xlsx", "txt", "md", "csv", "json",
		}
	}
	if c.Processing.Concurrency <= 0 {
		c.Processing.Concurrency = 5
	}
	if c.Processing.JobTimeout <= 0 {
		c.Processing.JobTimeout = 5 * time.Minute
	}
	if c.Processing.JobAttempts <= 0 {
		c.Processing.JobAttempts = 3
	}
	if c.Processing.BackoffBase <= 0 {
		c.Processing.BackoffBase = 2 * time.Second
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "ollama"
	}
	if c.AI.TokenBudget <= 0 {
		c.AI.TokenBudget = 3000
	}
	if c.AI.Gemini.Model == "" {
		c.AI.Gemini.Model = "gemini-1.5-flash-latest"
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.Ollama.BaseURL == "" {
		c.AI.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.AI.Ollama.Model == "" {
		c.AI.Ollama.Model = "llama3:8b"
	}
	if c.AI.Ollama.Timeout <= 0 {
		c.AI.Ollama.Timeout = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case "postgres", "postgresql", "pg":
		if c.Storage.Postgres.URL == "" {
			return errors.New("storage.postgres.url is required for the postgres backend")
		}
	case "firestore":
		if c.Storage.Firestore.ProjectID == "" {
			return errors.New("storage.firestore.project_id is required for the firestore backend")
		}
	}
	if strings.EqualFold(c.AI.Provider, "gemini") && c.AI.Enabled && c.AI.Gemini.APIKey == "" {
		return errors.New("ai.gemini.api_key is required when ai.provider is gemini")
	}
	if strings.EqualFold(c.AI.Provider, "openai") && c.AI.Enabled && c.AI.OpenAI.APIKey == "" {
		return errors.New("ai.openai.api_key is required when ai.provider is openai")
	}
	return nil
}
