package constants

import "time"

// Decision thresholds. These are the only tuning surface of the assistant and
// are exposed through config; the values here are the defaults.
const (
	// DefaultConfidenceThreshold - minimum match score for a knowledge answer to be returned verbatim
	DefaultConfidenceThreshold = 0.6

	// DefaultClarificationThreshold - consecutive clarifying replies before a forced hand-off
	DefaultClarificationThreshold = 2

	// DefaultContextWindow - turns kept in a conversation context (6 exchanges)
	DefaultContextWindow = 12

	// DefaultKnowledgeHits - knowledge records passed to the orchestrator and the prompt
	DefaultKnowledgeHits = 3

	// DefaultMaxActions - upper bound on suggested next actions
	DefaultMaxActions = 6
)

// Generation defaults
const (
	DefaultGenerationTimeoutMS  = 20000
	DefaultGenerationMaxTokens  = 300
	DefaultGenerationLocation   = "us-central1"
	DefaultPromptAnswerMaxChars = 300
)

// Storage and cache defaults
const (
	DefaultDatabasePath        = "data/assistant.db"
	DefaultCorpusPath          = "data/faqs.csv"
	DefaultContextCacheSize    = 10000
	DefaultContextCacheTTL     = 3600
	DefaultLogRetentionHours   = 720
	DefaultLeaderElectionTTL   = 10
	DefaultHistoryLimit        = 1000
	DefaultSummaryHistoryLimit = 2000
	DefaultListLimit           = 200
	MaxSummaryLength           = 2000
	LogSnippetLength           = 200
)

// Background routines
const (
	CleanupInterval       = 1 * time.Hour
	LeaderElectionPeriod  = 5 * time.Second
	ShutdownTimeout       = 30 * time.Second
	ServerShutdownTimeout = 10 * time.Second
)

// Redis key prefixes and names
const (
	ContextKeyPrefix     = "assistant:context:"
	LeaderElectionKey    = "assistant:leader"
	DefaultHandoffStream = "escalation_events"
	DefaultHandoffGroup  = "handoff-notifiers"
)

// Configuration environment variable names
const (
	EnvPort                   = "PORT"
	EnvLogLevel               = "LOG_LEVEL"
	EnvPodID                  = "POD_ID"
	EnvRedisURL               = "REDIS_URL"
	EnvDatabasePath           = "DATABASE_PATH"
	EnvCorpusPath             = "CORPUS_PATH"
	EnvContextWindow          = "CONTEXT_WINDOW"
	EnvContextCacheSize       = "CONTEXT_CACHE_SIZE"
	EnvContextCacheTTL        = "CONTEXT_CACHE_TTL_SECONDS"
	EnvConfidenceThreshold    = "CONFIDENCE_THRESHOLD"
	EnvClarificationThreshold = "CLARIFICATION_THRESHOLD"
	EnvKnowledgeHits          = "KNOWLEDGE_HITS"
	EnvMaxActions             = "MAX_ACTIONS"
	EnvGenerationProvider     = "GENERATION_PROVIDER"
	EnvGenerationModel        = "GENERATION_MODEL"
	EnvGenerationAPIKey       = "GENERATION_API_KEY"
	EnvGeminiAPIKey           = "GEMINI_API_KEY"
	EnvGenerationBaseURL      = "GENERATION_BASE_URL"
	EnvVertexProject          = "VERTEX_PROJECT"
	EnvVertexLocation         = "VERTEX_LOCATION"
	EnvGenerationTimeout      = "GENERATION_TIMEOUT_MS"
	EnvGenerationMaxTokens    = "GENERATION_MAX_TOKENS"
	EnvPolicyFile             = "POLICY_FILE"
	EnvLogRetentionHours      = "LOG_RETENTION_HOURS"
	EnvHandoffStream          = "HANDOFF_STREAM"
	EnvHandoffGroup           = "HANDOFF_GROUP"
	EnvLeaderElectionTTL      = "LEADER_ELECTION_TTL"
)

// Helper functions for time conversions
func MillisecondsToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func SecondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func HoursToDuration(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}
