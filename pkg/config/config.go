package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"support-assistant/pkg/constants"
)

type Config struct {
	Port     string
	LogLevel string
	PodID    string

	RedisURL     string
	DatabasePath string
	CorpusPath   string

	ContextWindow          int
	ContextCacheSize       int
	ContextCacheTTLSeconds int

	ConfidenceThreshold    float64
	ClarificationThreshold int
	KnowledgeHits          int
	MaxActions             int

	GenerationProvider  string
	GenerationModel     string
	GenerationAPIKey    string
	GenerationBaseURL   string
	VertexProject       string
	VertexLocation      string
	GenerationTimeoutMS int64
	GenerationMaxTokens int

	PolicyFile string
	Policy     *Policy

	LogRetentionHours int
	HandoffStream     string
	HandoffGroup      string
	LeaderElectionTTL int
}

// LoadDotEnv seeds the process environment from a .env file when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func Load() *Config {
	config := &Config{
		Port:     getEnv(constants.EnvPort, "8080"),
		LogLevel: getEnv(constants.EnvLogLevel, "info"),
		PodID:    getEnv(constants.EnvPodID, generatePodID()),

		RedisURL:     getEnv(constants.EnvRedisURL, ""),
		DatabasePath: getEnv(constants.EnvDatabasePath, constants.DefaultDatabasePath),
		CorpusPath:   getEnv(constants.EnvCorpusPath, constants.DefaultCorpusPath),

		ContextWindow:          getEnvInt(constants.EnvContextWindow, constants.DefaultContextWindow),
		ContextCacheSize:       getEnvInt(constants.EnvContextCacheSize, constants.DefaultContextCacheSize),
		ContextCacheTTLSeconds: getEnvInt(constants.EnvContextCacheTTL, constants.DefaultContextCacheTTL),

		ConfidenceThreshold:    getEnvFloat(constants.EnvConfidenceThreshold, constants.DefaultConfidenceThreshold),
		ClarificationThreshold: getEnvInt(constants.EnvClarificationThreshold, constants.DefaultClarificationThreshold),
		KnowledgeHits:          getEnvInt(constants.EnvKnowledgeHits, constants.DefaultKnowledgeHits),
		MaxActions:             getEnvInt(constants.EnvMaxActions, constants.DefaultMaxActions),

		GenerationProvider:  getEnv(constants.EnvGenerationProvider, ""),
		GenerationModel:     getEnv(constants.EnvGenerationModel, ""),
		GenerationAPIKey:    getEnv(constants.EnvGenerationAPIKey, getEnv(constants.EnvGeminiAPIKey, "")),
		GenerationBaseURL:   getEnv(constants.EnvGenerationBaseURL, ""),
		VertexProject:       getEnv(constants.EnvVertexProject, ""),
		VertexLocation:      getEnv(constants.EnvVertexLocation, constants.DefaultGenerationLocation),
		GenerationTimeoutMS: getEnvInt64(constants.EnvGenerationTimeout, constants.DefaultGenerationTimeoutMS),
		GenerationMaxTokens: getEnvInt(constants.EnvGenerationMaxTokens, constants.DefaultGenerationMaxTokens),

		PolicyFile: getEnv(constants.EnvPolicyFile, ""),

		LogRetentionHours: getEnvInt(constants.EnvLogRetentionHours, constants.DefaultLogRetentionHours),
		HandoffStream:     getEnv(constants.EnvHandoffStream, constants.DefaultHandoffStream),
		HandoffGroup:      getEnv(constants.EnvHandoffGroup, constants.DefaultHandoffGroup),
		LeaderElectionTTL: getEnvInt(constants.EnvLeaderElectionTTL, constants.DefaultLeaderElectionTTL),
	}

	// A bare GEMINI_API_KEY keeps working without naming the provider
	if config.GenerationProvider == "" && os.Getenv(constants.EnvGeminiAPIKey) != "" {
		config.GenerationProvider = "gemini"
	}

	return config
}

// Validate rejects thresholds that would make the decision logic meaningless
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.ClarificationThreshold < 1 {
		return fmt.Errorf("clarification threshold must be positive, got %d", c.ClarificationThreshold)
	}
	if c.ContextWindow < 2 {
		return fmt.Errorf("context window must hold at least one exchange, got %d", c.ContextWindow)
	}
	if c.KnowledgeHits < 1 {
		return fmt.Errorf("knowledge hits must be positive, got %d", c.KnowledgeHits)
	}
	if c.MaxActions < 1 {
		return fmt.Errorf("max actions must be positive, got %d", c.MaxActions)
	}
	if c.GenerationTimeoutMS <= 0 {
		return fmt.Errorf("generation timeout must be positive, got %dms", c.GenerationTimeoutMS)
	}
	return nil
}

func (c *Config) GenerationTimeout() time.Duration {
	return constants.MillisecondsToDuration(c.GenerationTimeoutMS)
}

func (c *Config) ContextCacheTTL() time.Duration {
	return constants.SecondsToDuration(c.ContextCacheTTLSeconds)
}

func (c *Config) LogRetention() time.Duration {
	return constants.HoursToDuration(c.LogRetentionHours)
}

func (c *Config) LeaderElectionTTLDuration() time.Duration {
	return constants.SecondsToDuration(c.LeaderElectionTTL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func generatePodID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
