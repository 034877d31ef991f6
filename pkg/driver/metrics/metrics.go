// Package metrics instruments a driver with Prometheus counters and
// gauges. Instrumentation is optional: Noop satisfies the Collector
// contract by doing nothing, so kernel correctness never depends on a
// metrics registry being wired up.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector is the instrumentation seam a Driver accepts.
type Collector interface {
	MessageSent(msg string)
	MessageReceived(msg string)
	QueueDepth(depth int)
	Failure(kind string)
}

// Noop returns a Collector that discards every observation.
func Noop() Collector { return noopCollector{} }

type noopCollector struct{}

func (noopCollector) MessageSent(string)     {}
func (noopCollector) MessageReceived(string) {}
func (noopCollector) QueueDepth(int)         {}
func (noopCollector) Failure(string)         {}

// Prometheus is a Collector backed by client_golang. NewPrometheus
// registers its metrics on the prometheus.Registerer it is given, so a
// second collector with the same namespace on the same registry fails
// with a registration error.
type Prometheus struct {
	messages *prometheus.CounterVec
	queue    prometheus.Gauge
	failures *prometheus.CounterVec
}

// NewPrometheus builds a Prometheus collector and registers its
// metrics on reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	p := &Prometheus{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "messages_total",
			Help:      "Messages the driver has sent or received, by message name.",
		}, []string{"direction", "msg"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "queue_depth",
			Help:      "Current depth of the pipelined outstanding-response queue.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "failures_total",
			Help:      "Driver failures, by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{p.messages, p.queue, p.failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) MessageSent(msg string) {
	p.messages.WithLabelValues("sent", msg).Inc()
}

func (p *Prometheus) MessageReceived(msg string) {
	p.messages.WithLabelValues("received", msg).Inc()
}

func (p *Prometheus) QueueDepth(depth int) {
	p.queue.Set(float64(depth))
}

func (p *Prometheus) Failure(kind string) {
	p.failures.WithLabelValues(kind).Inc()
}
