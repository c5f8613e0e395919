// Package config centralises configuration for the gateway.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Escalation policies understood by the generation router.
// PolicyLocalFirst and PolicyOnRequest share a single branch: both mean
// "escalate only when the caller asks for it".
const (
	PolicyLocalFirst    = "local_first"
	PolicyOnRequest     = "on_request"
	PolicyFallback      = "fallback"
	PolicyExternalFirst = "external_first"
	PolicyAlways        = "always"
)

// External provider tags.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderDisabled  = "disabled"
)

// DefaultRegion is the single sovereign region the governance gate accepts.
const DefaultRegion = "Région Grand Est"

// Config holds all configuration values.
type Config struct {
	// Storage
	DataDir    string
	JournalDir string
	AuditDir   string
	CorpusDir  string

	// Local generation (Ollama)
	OllamaHost   string
	LocalModel   string
	LocalTimeout time.Duration

	// External generation
	ExternalProvider       string
	ExternalModel          string
	OpenAIAPIKey           string
	AnthropicAPIKey        string
	ExternalConnectTimeout time.Duration
	ExternalTimeout        time.Duration

	// Routing
	Policy             string
	ExternalOnFallback bool

	// Governance
	Region string

	// Journal / events
	EventsRetained int
	AuditRetained  int
	PingInterval   time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables, falling back to
// local-first defaults that work without any setup.
func Load() Config {
	dataDir := getEnv("PASSERELLE_DATA_DIR", "./data")
	return Config{
		DataDir:    dataDir,
		JournalDir: getEnv("PASSERELLE_JOURNAL_DIR", filepath.Join(dataDir, "journal")),
		AuditDir:   getEnv("PASSERELLE_AUDIT_DIR", filepath.Join(dataDir, "audit")),
		CorpusDir:  getEnv("PASSERELLE_CORPUS_DIR", filepath.Join(dataDir, "corpus")),

		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),
		LocalModel:   getEnv("PASSERELLE_LOCAL_MODEL", "mistral:7b-instruct"),
		LocalTimeout: getDuration("PASSERELLE_LOCAL_TIMEOUT", 10*time.Second),

		ExternalProvider:       getEnv("PASSERELLE_EXTERNAL_PROVIDER", ProviderDisabled),
		ExternalModel:          getEnv("PASSERELLE_EXTERNAL_MODEL", ""),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:        getEnv("ANTHROPIC_API_KEY", ""),
		ExternalConnectTimeout: getDuration("PASSERELLE_EXTERNAL_CONNECT_TIMEOUT", 5*time.Second),
		ExternalTimeout:        getDuration("PASSERELLE_EXTERNAL_TIMEOUT", 18*time.Second),

		Policy:             getEnv("PASSERELLE_POLICY", PolicyLocalFirst),
		ExternalOnFallback: getEnv("PASSERELLE_EXTERNAL_ON_FALLBACK", "false") == "true",

		Region: getEnv("PASSERELLE_REGION", DefaultRegion),

		EventsRetained: getInt("PASSERELLE_EVENTS_RETAINED", 500),
		AuditRetained:  getInt("PASSERELLE_AUDIT_RETAINED", 2000),
		PingInterval:   getDuration("PASSERELLE_PING_INTERVAL", time.Minute),

		LogFile:  getEnv("PASSERELLE_LOG_FILE", filepath.Join(dataDir, "passerelle.log")),
		LogLevel: parseLogLevel(getEnv("PASSERELLE_LOG_LEVEL", "INFO")),
	}
}

// fileConfig is the YAML overlay shape. Only set fields override the
// environment-derived configuration.
type fileConfig struct {
	DataDir    string `yaml:"data_dir"`
	JournalDir string `yaml:"journal_dir"`
	AuditDir   string `yaml:"audit_dir"`
	CorpusDir  string `yaml:"corpus_dir"`

	OllamaHost string `yaml:"ollama_host"`
	LocalModel string `yaml:"local_model"`

	ExternalProvider string `yaml:"external_provider"`
	ExternalModel    string `yaml:"external_model"`

	Policy             string `yaml:"policy"`
	ExternalOnFallback *bool  `yaml:"external_on_fallback"`

	Region string `yaml:"region"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// ApplyFile overlays values from a YAML config file onto cfg.
func (c *Config) ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	overlay(&c.DataDir, fc.DataDir)
	overlay(&c.JournalDir, fc.JournalDir)
	overlay(&c.AuditDir, fc.AuditDir)
	overlay(&c.CorpusDir, fc.CorpusDir)
	overlay(&c.OllamaHost, fc.OllamaHost)
	overlay(&c.LocalModel, fc.LocalModel)
	overlay(&c.ExternalProvider, fc.ExternalProvider)
	overlay(&c.ExternalModel, fc.ExternalModel)
	overlay(&c.Policy, fc.Policy)
	overlay(&c.Region, fc.Region)
	overlay(&c.LogFile, fc.LogFile)
	if fc.ExternalOnFallback != nil {
		c.ExternalOnFallback = *fc.ExternalOnFallback
	}
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return nil
}

// IndexFile is the JSON document holding the vector index state.
func (c Config) IndexFile() string {
	return filepath.Join(c.DataDir, "vector_index", "index.json")
}

// MemoryFile is the JSON document holding the bounded conversation history.
func (c Config) MemoryFile() string {
	return filepath.Join(c.DataDir, "memory", "conversation_state.json")
}

// ExternalEnabled reports whether the configured provider tag allows
// escalation at all.
func (c Config) ExternalEnabled() bool {
	switch strings.ToLower(c.ExternalProvider) {
	case "", ProviderDisabled, "none", "local":
		return false
	}
	return true
}

func overlay(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
