package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "foldsim"
	subsystem = "sim"
)

// Collector records simulation metrics into its own registry. It satisfies
// sim.Recorder and is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	steps         *prometheus.CounterVec
	trajectories  *prometheus.CounterVec
	simulatedTime prometheus.Histogram
	batches       prometheus.Counter
	batchDuration prometheus.Histogram

	stepByAction map[string]prometheus.Counter
}

// NewCollector registers the simulation metrics on registry, or on a fresh
// registry when nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "steps_total",
			Help:      "Applied moves by action.",
		}, []string{"action"}),
		trajectories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "trajectories_total",
			Help:      "Finished trajectories by stop reason.",
		}, []string{"reason"}),
		simulatedTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "trajectory_simulated_seconds",
			Help:      "Simulated time at which trajectories stopped.",
			Buckets:   prometheus.ExponentialBuckets(1e-9, 10, 10),
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_total",
			Help:      "Completed batches.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock duration of batches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(c.steps, c.trajectories, c.simulatedTime, c.batches, c.batchDuration)

	c.stepByAction = make(map[string]prometheus.Counter)
	for _, action := range []string{"create", "delete", "shift"} {
		c.stepByAction[action] = c.steps.WithLabelValues(action)
	}
	return c
}

func (c *Collector) ObserveStep(action string) {
	if counter, ok := c.stepByAction[action]; ok {
		counter.Inc()
		return
	}
	c.steps.WithLabelValues(action).Inc()
}

func (c *Collector) ObserveTrajectory(reason string, simTime float64) {
	c.trajectories.WithLabelValues(reason).Inc()
	c.simulatedTime.Observe(simTime)
}

func (c *Collector) ObserveBatch(d time.Duration) {
	c.batches.Inc()
	c.batchDuration.Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
