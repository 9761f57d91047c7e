// Package metrics holds the Prometheus collectors for ingestion, retrieval, the index
// lifecycle and sessions, registered on a package registry served at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry all tutor collectors are registered on.
var Registry = prometheus.NewRegistry()

var (
	ingestBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_ingest_batches_total",
			Help: "Ingestion batches by outcome (success or the error kind)",
		},
		[]string{"result"},
	)
	ingestChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_ingest_chunks_total",
			Help: "Chunks added to the index by ingestion",
		},
	)
	ingestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tutor_ingest_duration_seconds",
			Help:    "Duration of ingestion batches in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7m
		},
	)
	indexLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_index_loads_total",
			Help: "Index manager initializations by outcome (loaded, rebuilt, failed)",
		},
		[]string{"result"},
	)
	indexChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutor_index_chunks",
			Help: "Chunks in the index currently serving reads",
		},
	)
	retrievals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_retrievals_total",
			Help: "Retrieval requests by outcome",
		},
		[]string{"result"},
	)
	retrieveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tutor_retrieve_duration_seconds",
			Help:    "Duration of retrieval (embed + search) in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)
	sessionsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutor_sessions",
			Help: "Conversation sessions currently retained",
		},
	)
	sessionEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_session_evictions_total",
			Help: "Sessions removed by the eviction policy",
		},
	)
	answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_answers_total",
			Help: "Answered questions by outcome",
		},
		[]string{"result"},
	)
	generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_generations_total",
			Help: "Assistant generations (docs, tests, commit messages) by kind and outcome",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	Registry.MustRegister(
		ingestBatches, ingestChunks, ingestDuration,
		indexLoads, indexChunks,
		retrievals, retrieveDuration,
		sessionsTracked, sessionEvictions,
		answers, generations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IngestFinished records one ingestion batch. result is "success" or an error kind.
func IngestFinished(result string, chunks int, elapsed time.Duration) {
	ingestBatches.WithLabelValues(result).Inc()
	if chunks > 0 {
		ingestChunks.Add(float64(chunks))
	}
	ingestDuration.Observe(elapsed.Seconds())
}

// IndexLoaded records a manager initialization outcome and the size of the serving index.
func IndexLoaded(result string, chunks int) {
	indexLoads.WithLabelValues(result).Inc()
	indexChunks.Set(float64(chunks))
}

// Retrieved records one retrieval.
func Retrieved(result string, elapsed time.Duration) {
	retrievals.WithLabelValues(result).Inc()
	retrieveDuration.Observe(elapsed.Seconds())
}

// SessionsChanged sets the retained session count and adds evicted sessions.
func SessionsChanged(tracked, evicted int) {
	sessionsTracked.Set(float64(tracked))
	if evicted > 0 {
		sessionEvictions.Add(float64(evicted))
	}
}

// Answered records one AnswerOrchestrator request.
func Answered(result string) {
	answers.WithLabelValues(result).Inc()
}

// Generated records one assistant generation. kind is "docs", "test" or "commit_message".
func Generated(kind, result string) {
	generations.WithLabelValues(kind, result).Inc()
}
