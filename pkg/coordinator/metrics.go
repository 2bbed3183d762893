package coordinator

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type metrics struct {
	scheduled   prometheus.Counter
	refused     prometheus.Counter
	evicted     prometheus.Counter
	results     *prometheus.CounterVec
	jobsPerTask prometheus.Histogram
	evaluation  prometheus.Histogram
}

func newMetrics(c *Coordinator) *metrics {
	m := &metrics{
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capataz_jobs_scheduled_total",
			Help: "Total number of scheduled jobs.",
		}),
		refused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capataz_jobs_refused_total",
			Help: "Total number of jobs refused because the store was full.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capataz_jobs_evicted_total",
			Help: "Total number of jobs evicted from the store.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capataz_results_total",
			Help: "Total number of posted results, by status.",
		}, []string{"status"}),
		jobsPerTask: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capataz_jobs_per_task",
			Help:    "Number of jobs bundled in each handed out task.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		evaluation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capataz_job_evaluation_seconds",
			Help:    "Job execution time reported by drudgers.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	taskSize := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "capataz_task_size",
		Help: "Current number of jobs handed out per task.",
	}, func() float64 {
		return float64(c.TaskSize())
	})

	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "capataz_jobs_pending",
		Help: "Number of jobs waiting to be assigned.",
	}, func() float64 {
		return float64(len(c.store.Status().Pending))
	})

	assigned := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "capataz_jobs_assigned",
		Help: "Number of jobs assigned and not settled.",
	}, func() float64 {
		return float64(len(c.store.Status().Assigned))
	})

	m.scheduled = register(c.registry, m.scheduled)
	m.refused = register(c.registry, m.refused)
	m.evicted = register(c.registry, m.evicted)
	m.results = register(c.registry, m.results)
	m.jobsPerTask = register(c.registry, m.jobsPerTask)
	m.evaluation = register(c.registry, m.evaluation)
	register(c.registry, taskSize)
	register(c.registry, pending)
	register(c.registry, assigned)
	register(c.registry, collectors.NewGoCollector())
	register(c.registry, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	for _, status := range []Status{StatusIgnored, StatusInvalid, StatusResolved, StatusRejected} {
		m.results.WithLabelValues(string(status))
	}

	return m
}

// Registers collector, or returns the equal collector already registered.
// Coordinators sharing a registry thus share their counters, while the
// gauges report on the first coordinator only.
func register[T prometheus.Collector](registry prometheus.Registerer, collector T) T {
	err := registry.Register(collector)
	if err == nil {
		return collector
	}

	var registered prometheus.AlreadyRegisteredError
	if errors.As(err, &registered) {
		if existing, ok := registered.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}
