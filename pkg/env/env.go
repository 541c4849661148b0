package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string

	// Knowledge corpus. At least one source must resolve before the index
	// can be built; startup fails otherwise.
	WebsiteURL   string
	CorpusPath   string
	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int

	// Embedding service (OpenAI)
	OpenAIApiKey   string
	EmbeddingModel string

	// Generation providers
	GeminiApiKey    string
	GeminiModel     string
	OpenAIChatModel string
	OpenAIMaxTokens int
	AITimeoutMs     int

	// Telephony transport (Twilio)
	TwilioAuthToken string
	PublicBaseURL   string
	Greeting        string
	VoiceName       string

	// Dialogue limits
	GatherTimeoutSec   int
	MaxTurns           int
	MaxCallDurationMin int
	SessionTTLMin      int

	// Optional infrastructure
	RedisURL string
	MongoURI string
	DBName   string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	LogLevel           string
	CORSAllowedOrigins string
	APIRateLimitRPM    int

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine in production, where real environment
		// variables are used directly.
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "5001"),

		WebsiteURL:   getEnv("WEBSITE_URL", ""),
		CorpusPath:   getEnv("CORPUS_PATH", ""),
		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		RetrievalK:   getEnvInt("RETRIEVAL_K", 3),

		OpenAIApiKey:   mustGetEnv("OPENAI_API_KEY"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),

		GeminiApiKey:    getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIChatModel: getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIMaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 500),
		AITimeoutMs:     getEnvInt("AI_TIMEOUT_MS", 4000),

		TwilioAuthToken: getEnv("TWILIO_AUTH_TOKEN", ""),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),
		Greeting:        getEnv("GREETING", "Welcome to customer support. Please speak your question after the beep."),
		VoiceName:       getEnv("VOICE_NAME", "alice"),

		GatherTimeoutSec:   getEnvInt("GATHER_TIMEOUT_SEC", 5),
		MaxTurns:           getEnvInt("MAX_TURNS", 50),
		MaxCallDurationMin: getEnvInt("MAX_CALL_DURATION_MIN", 10),
		SessionTTLMin:      getEnvInt("SESSION_TTL_MIN", 30),

		RedisURL: getEnv("REDIS_URL", ""),
		MongoURI: getEnv("MONGO_URI", ""),
		DBName:   getEnv("DB_NAME", "call_assistant"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "virtual-call-assistant"),
		JWTAudience: getEnv("JWT_AUDIENCE", "call-assistant-api"),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		APIRateLimitRPM:    getEnvInt("API_RATE_LIMIT_RPM", 180),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	if cfg.WebsiteURL == "" && cfg.CorpusPath == "" {
		return nil, fmt.Errorf("no knowledge corpus configured: set WEBSITE_URL or CORPUS_PATH")
	}

	return cfg, nil
}

// AITimeout returns the generation-service deadline. It must stay below the
// telephony listen window or the caller hears dead air.
func (c *Config) AITimeout() time.Duration {
	ms := c.AITimeoutMs
	if ms <= 0 {
		ms = 4000
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

func (c *Config) MaxCallDuration() time.Duration {
	return time.Duration(c.MaxCallDurationMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
