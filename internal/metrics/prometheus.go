package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kmntree/onos/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	electionsWon   *prometheus.CounterVec
	stepDowns      *prometheus.CounterVec
	heartbeats     *prometheus.CounterVec
	remoteExpired  *prometheus.CounterVec
	leadingGauge   *prometheus.GaugeVec
	listenerFaults prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "onos" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "onos"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.electionsWon = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "leadership",
			Name:      "elections_won_total",
			Help:      "Total elections won by the local node per topic.",
		}, []string{"topic"})

		p.stepDowns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "leadership",
			Name:      "step_downs_total",
			Help:      "Total leadership step-downs by topic and reason (collision, withdraw).",
		}, []string{"topic", "reason"})

		p.heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "leadership",
			Name:      "heartbeats_total",
			Help:      "Total leader heartbeat publish attempts by topic and result.",
		}, []string{"topic", "result"})

		p.remoteExpired = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "leadership",
			Name:      "remote_expirations_total",
			Help:      "Total stale remote leaders evicted locally per topic.",
		}, []string{"topic"})

		p.leadingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "leadership",
			Name:      "leading",
			Help:      "Whether the local node currently leads the topic (0 or 1).",
		}, []string{"topic"})

		p.listenerFaults = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "leadership",
			Name:      "listener_faults_total",
			Help:      "Total panics recovered from leadership event listeners.",
		})

		collectors := []prometheus.Collector{
			p.electionsWon, p.stepDowns, p.heartbeats,
			p.remoteExpired, p.leadingGauge, p.listenerFaults,
		}
		for _, c := range collectors {
			if err := p.reg.Register(c); err != nil {
				// AlreadyRegisteredError means another collector instance owns
				// the metric; keep using our local vector regardless.
				_ = err
			}
		}
	})
}

// RecordElected increments the elections-won counter for the topic.
func (p *PrometheusCollector) RecordElected(topic string) {
	p.ensureRegistered()
	p.electionsWon.WithLabelValues(topic).Inc()
}

// RecordStepDown increments the step-down counter for the topic and reason.
func (p *PrometheusCollector) RecordStepDown(topic, reason string) {
	p.ensureRegistered()
	p.stepDowns.WithLabelValues(topic, reason).Inc()
}

// RecordHeartbeat increments the heartbeat counter for the topic.
func (p *PrometheusCollector) RecordHeartbeat(topic string, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.heartbeats.WithLabelValues(topic, result).Inc()
}

// RecordRemoteExpired increments the remote expiration counter for the topic.
func (p *PrometheusCollector) RecordRemoteExpired(topic string) {
	p.ensureRegistered()
	p.remoteExpired.WithLabelValues(topic).Inc()
}

// SetLeading sets the per-topic leading gauge.
func (p *PrometheusCollector) SetLeading(topic string, leading bool) {
	p.ensureRegistered()
	v := 0.0
	if leading {
		v = 1.0
	}
	p.leadingGauge.WithLabelValues(topic).Set(v)
}

// RecordListenerFault increments the listener fault counter.
func (p *PrometheusCollector) RecordListenerFault() {
	p.ensureRegistered()
	p.listenerFaults.Inc()
}
