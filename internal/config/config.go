package config

import (
	"os"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	// Model gateway configuration
	GatewayBaseURL string
	GatewayAPIKey  string
	DefaultModel   string
	// Tool collaborators
	TavilyAPIKey      string
	FileGenServiceURL string
	// Realtime voice configuration
	RealtimeURL    string
	RealtimeVoice  string
	RealtimeAPIKey string
	// Admin prompt settings file
	PromptsFile string
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	supabaseURL := getEnv("SUPABASE_URL", "")

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: supabaseURL + "/auth/v1/.well-known/jwks.json",
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     getTablePrefix(env),

		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "https://openrouter.ai/api/v1"),
		GatewayAPIKey:  getEnv("GATEWAY_API_KEY", ""),
		DefaultModel:   getEnv("DEFAULT_MODEL", ""),

		TavilyAPIKey:      getEnv("TAVILY_API_KEY", ""),
		FileGenServiceURL: getEnv("FILEGEN_SERVICE_URL", ""),

		RealtimeURL:    getEnv("REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeVoice:  getEnv("REALTIME_VOICE", "alloy"),
		RealtimeAPIKey: getEnv("REALTIME_API_KEY", ""),

		PromptsFile: getEnv("PROMPTS_FILE", "prompts.yaml"),

		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
