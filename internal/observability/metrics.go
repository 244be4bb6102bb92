package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the agent.
type Metrics struct {
	ActiveCalls      prometheus.Gauge
	TalkTurns        prometheus.Counter
	AMICommands      *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	JobsProcessed    prometheus.Counter
	JobRetries       prometheus.Counter
	JobFailures      *prometheus.CounterVec
	KeywordHits      prometheus.Counter
	ScheduledPending prometheus.Gauge
	PlannerUploads   *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of conference sessions currently tracked.",
		}),
		TalkTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "talk_turns_total",
			Help:      "Completed talk turns across all sessions.",
		}),
		AMICommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ami_commands_total",
			Help:      "AMI actions by name and outcome.",
		}, []string{"action", "outcome"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "work_queue_depth",
			Help:      "Jobs waiting in the retry work queue.",
		}),
		JobsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Jobs completed successfully by the queue worker.",
		}),
		JobRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Jobs requeued after a transient media error.",
		}),
		JobFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "Jobs dropped as fatal, by reason.",
		}, []string{"reason"}),
		KeywordHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_hits_total",
			Help:      "Trigger keyword detections past the watermark.",
		}),
		ScheduledPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_actions_pending",
			Help:      "Deferred follow-up actions not yet fired.",
		}),
		PlannerUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planner_uploads_total",
			Help:      "Mission planner uploads by outcome.",
		}, []string{"outcome"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
