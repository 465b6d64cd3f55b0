package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Session  SessionConfig
	Router   RouterConfig
	Window   WindowConfig
	Mode     ModeConfig
	Gap      GapConfig
	Remote   RemoteConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	ProgressLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ProgressTopic      string // In-process topic for gap forwarding
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider        string // "ollama" or "huggingface"
	LLMModel           string // e.g. "llama3", "qwen2.5"
	OllamaBaseURL      string
	HuggingFaceKey     string
	HuggingFaceBaseURL string
	RequestsPerSec     float64
	Burst              int
	DefaultMaxToken    int
}

type SessionConfig struct {
	Store string // "memory" or "redis"
	TTL   time.Duration
}

type RouterConfig struct {
	ConfidenceThreshold float64
	TextDeadline        time.Duration
	VisualDeadline      time.Duration
}

type WindowConfig struct {
	Capacity    int
	TokenBudget int
	KeepRecent  int
}

type ModeConfig struct {
	ExamWordLimit     int
	ConceptWordTarget int
}

type GapConfig struct {
	EscalationThreshold int
	CategorizeRetries   int
	ForwardMaxRetries   int
}

// RemoteConfig points at external analyzer collaborators. Empty disables them.
type RemoteConfig struct {
	CodeAnalyzerURL    string
	VisualGeneratorURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			ProgressLogPath:    getEnv("PROGRESS_LOG_FILE_PATH", "logs/progress.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			ProgressTopic:      getEnv("PROGRESS_TOPIC_NAME", "GAP_PROGRESS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceKey:     getEnv("HUGGINGFACE_API_KEY", ""),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
			RequestsPerSec:     getEnvAsFloat("AI_REQUESTS_PER_SECOND", 5),
			Burst:              getEnvAsInt("AI_BURST", 10),
			DefaultMaxToken:    getEnvAsInt("AI_DEFAULT_MAX_TOKENS", 800),
		},
		Session: SessionConfig{
			Store: getEnv("SESSION_STORE", "memory"),
			TTL:   getEnvAsDuration("SESSION_TTL", time.Hour),
		},
		Router: RouterConfig{
			ConfidenceThreshold: getEnvAsFloat("CLASSIFY_CONFIDENCE_THRESHOLD", 0.5),
			TextDeadline:        getEnvAsDuration("ROUTER_TEXT_DEADLINE", 10*time.Second),
			VisualDeadline:      getEnvAsDuration("ROUTER_VISUAL_DEADLINE", 30*time.Second),
		},
		Window: WindowConfig{
			Capacity:    clamp(getEnvAsInt("WINDOW_CAPACITY", 8), 5, 10),
			TokenBudget: getEnvAsInt("WINDOW_TOKEN_BUDGET", 2000),
			KeepRecent:  getEnvAsInt("WINDOW_KEEP_RECENT", 2),
		},
		Mode: ModeConfig{
			ExamWordLimit:     getEnvAsInt("MODE_EXAM_WORD_LIMIT", 200),
			ConceptWordTarget: getEnvAsInt("MODE_CONCEPT_WORD_TARGET", 300),
		},
		Gap: GapConfig{
			EscalationThreshold: getEnvAsInt("GAP_ESCALATION_THRESHOLD", 3),
			CategorizeRetries:   getEnvAsInt("GAP_CATEGORIZE_RETRIES", 2),
			ForwardMaxRetries:   getEnvAsInt("GAP_FORWARD_MAX_RETRIES", 5),
		},
		Remote: RemoteConfig{
			CodeAnalyzerURL:    getEnv("REMOTE_CODE_ANALYZER_URL", ""),
			VisualGeneratorURL: getEnv("VISUAL_GENERATOR_URL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("10s") or plain seconds ("10")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
