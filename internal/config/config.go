// Package config loads prodscout settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider identifies a generative backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Store backends for the knowledge store.
const (
	StoreSurrealDB = "surrealdb"
	StoreMemory    = "memory"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Knowledge store backend: "surrealdb" or "memory"
	Store string

	// Generative backend
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	SearchGrounding bool

	// Parallel identify calls per discovery cycle
	IdentifyConcurrency int

	// Default sheet mirror (CSV file)
	ExportPath string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// HTTP server
	ServerPort string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
func Load() Config {
	_ = godotenv.Load()

	provider := Provider(strings.ToLower(getEnv("PRODSCOUT_LLM_PROVIDER", string(ProviderOllama))))

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "prodscout"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "research"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		Store: strings.ToLower(getEnv("PRODSCOUT_STORE", StoreSurrealDB)),

		LLMProvider:     provider,
		LLMModel:        getEnv("PRODSCOUT_LLM_MODEL", defaultModel(provider)),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		SearchGrounding: getEnv("PRODSCOUT_SEARCH_GROUNDING", "true") == "true",

		IdentifyConcurrency: getEnvInt("PRODSCOUT_IDENTIFY_CONCURRENCY", 4),

		ExportPath: getEnv("PRODSCOUT_EXPORT_PATH", "prodscout-products.csv"),

		LogFile:  getEnv("PRODSCOUT_LOG_FILE", "/tmp/prodscout.log"),
		LogLevel: parseLogLevel(getEnv("PRODSCOUT_LOG_LEVEL", "INFO")),

		ServerPort: getEnv("PRODSCOUT_SERVER_PORT", "8585"),
	}
}

func defaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderAnthropic:
		return "claude-sonnet-4-5"
	case ProviderGemini:
		return "gemini-2.5-pro"
	default:
		return "llama3.1"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
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
