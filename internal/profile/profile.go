package profile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	LLMProvider string // Provider identifier: openai, deepseek, siliconflow, ollama
	LLMAPIKey   string
	LLMBaseURL  string // Optional, has default per provider
	LLMModel    string
	LLMTimeout  int // Request timeout in seconds (default: 120)

	// Embedding configuration
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// External calendar/course feeds (optional; the local store-backed
	// calendar is always available)
	CalendarFeedURL string // ICS feed, read-only
	CourseFeedURL   string // LMS JSON feed

	// DemoDate pins the agent clock to a fixed instant (RFC3339) for
	// reproducible demos. Empty means wall clock.
	DemoDate string

	KnowledgePath string // directory of markdown knowledge-base files

	Mode    string // dev, demo, prod
	Addr    string
	Port    int
	Data    string // data directory
	DSN     string // sqlite database path
	Version string
}

// Provider default configurations for the LLM.
// Used when the base URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled reports whether the completion service is configured.
// Without it the agent still detects conflicts and parses intents; it just
// answers from the rule layer alone.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("DAYBRIDGE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("DAYBRIDGE_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("DAYBRIDGE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("DAYBRIDGE_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("DAYBRIDGE_LLM_TIMEOUT_SECONDS", 120)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		p.LLMProvider = "openai"
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.EmbeddingModel = getEnvOrDefault("DAYBRIDGE_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("DAYBRIDGE_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("DAYBRIDGE_EMBEDDING_BASE_URL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("DAYBRIDGE_EMBEDDING_DIMENSIONS", 1536)

	p.CalendarFeedURL = getEnvOrDefault("DAYBRIDGE_CALENDAR_FEED_URL", "")
	p.CourseFeedURL = getEnvOrDefault("DAYBRIDGE_COURSE_FEED_URL", "")
	p.DemoDate = getEnvOrDefault("DAYBRIDGE_DEMO_DATE", "")
	p.KnowledgePath = getEnvOrDefault("DAYBRIDGE_KNOWLEDGE_PATH", p.KnowledgePath)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if a relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.DSN == "" {
		dbFile := "daybridge_" + p.Mode + ".db"
		p.DSN = filepath.Join(p.Data, dbFile)
	}

	if p.KnowledgePath == "" {
		p.KnowledgePath = filepath.Join(p.Data, "knowledge")
	}

	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}

	return nil
}
