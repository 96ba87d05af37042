package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_pipeline_requests_total",
		Help: "Total number of voice pipeline invocations",
	}, []string{"outcome"})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_pipeline_duration_seconds",
		Help:    "End-to-end voice pipeline latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	})

	recognitionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_asr_requests_total",
		Help: "Total number of speech recognition sessions",
	}, []string{"status"})

	recognitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_asr_latency_seconds",
		Help:    "Speech recognition session latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
	})

	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_llm_requests_total",
		Help: "Total number of reply generation requests",
	}, []string{"status"})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_llm_latency_seconds",
		Help:    "Reply generation latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	})

	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_tts_requests_total",
		Help: "Total number of speech synthesis requests",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "companion_tts_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	directives = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_directives_total",
		Help: "Reply directives by kind",
	}, []string{"kind"})
)

// RecordPipeline observes one end-to-end pipeline invocation.
func RecordPipeline(outcome string, start time.Time) {
	pipelineRequests.WithLabelValues(outcome).Inc()
	pipelineDuration.Observe(time.Since(start).Seconds())
}

// RecordRecognition observes one recognition session.
func RecordRecognition(status string, start time.Time) {
	recognitionRequests.WithLabelValues(status).Inc()
	recognitionLatency.Observe(time.Since(start).Seconds())
}

// RecordReplyGeneration observes one LLM exchange.
func RecordReplyGeneration(status string, start time.Time) {
	llmRequests.WithLabelValues(status).Inc()
	llmLatency.Observe(time.Since(start).Seconds())
}

// RecordSynthesis observes one TTS call.
func RecordSynthesis(status string, start time.Time) {
	synthesisRequests.WithLabelValues(status).Inc()
	synthesisLatency.Observe(time.Since(start).Seconds())
}

// RecordDirective counts one classified reply directive.
func RecordDirective(kind string) {
	directives.WithLabelValues(kind).Inc()
}
