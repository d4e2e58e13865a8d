package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TurnsProcessed          *prometheus.CounterVec
	EscalationsCreated      *prometheus.CounterVec
	KnowledgeTopScore       prometheus.Histogram
	KnowledgeSearchDuration prometheus.Histogram
	GenerationRequests      *prometheus.CounterVec
	GenerationDuration      *prometheus.HistogramVec
	SuggestionsGenerated    *prometheus.CounterVec
	ContextCacheLookups     *prometheus.CounterVec
	StoreOperationDuration  *prometheus.HistogramVec
	RedisOperationDuration  *prometheus.HistogramVec
	LeaderChanges           prometheus.Counter
	LeaderElectionDuration  prometheus.Histogram
	HandoffEventsPublished  prometheus.Counter
	HandoffEventsProcessed  *prometheus.CounterVec
	HandoffProcessDuration  prometheus.Histogram
	LogEntriesPurged        prometheus.Counter
}

// NewMetrics registers on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry()
func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TurnsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_turns_processed_total",
			Help: "Total number of user turns answered, by reply source",
		}, []string{"source"}),
		EscalationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_escalations_created_total",
			Help: "Total number of escalation tickets opened, by trigger reason",
		}, []string{"reason"}),
		KnowledgeTopScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_knowledge_top_score",
			Help:    "Score of the best knowledge match per query",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		KnowledgeSearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_knowledge_search_duration_seconds",
			Help:    "Time taken to search the knowledge corpus",
			Buckets: prometheus.DefBuckets,
		}),
		GenerationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_generation_requests_total",
			Help: "Total number of generation backend calls, by backend and status",
		}, []string{"backend", "status"}),
		GenerationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_generation_duration_seconds",
			Help:    "Time taken by generation backend calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"backend"}),
		SuggestionsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_next_action_suggestions_total",
			Help: "Total number of next-action suggestions, by reason",
		}, []string{"reason"}),
		ContextCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_context_cache_lookups_total",
			Help: "Context window cache lookups, by result",
		}, []string{"result"}),
		StoreOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_store_operation_duration_seconds",
			Help:    "Time taken for persistent store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		RedisOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Time taken for Redis operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		LeaderChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "assistant_leader_changes_total",
			Help: "Total number of leader changes",
		}),
		LeaderElectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leader_election_duration_seconds",
			Help:    "Time taken for leader election operations",
			Buckets: prometheus.DefBuckets,
		}),
		HandoffEventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "assistant_handoff_events_published_total",
			Help: "Total number of escalation hand-off events published",
		}),
		HandoffEventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_handoff_events_processed_total",
			Help: "Total number of hand-off events processed, by status",
		}, []string{"status"}),
		HandoffProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_handoff_processing_duration_seconds",
			Help:    "Time taken to process hand-off stream batches",
			Buckets: prometheus.DefBuckets,
		}),
		LogEntriesPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "assistant_log_entries_purged_total",
			Help: "Total number of operational log entries removed by retention",
		}),
	}
}
