package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalTokens atomic.Int64

var (
	SampledTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sampled_tokens_total",
		Help: "The total number of tokens sampled",
	})

	SampleStepDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "sample_step_duration_seconds",
		Help: "Duration of full decode-step sampling calls",
	})

	KernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernel_duration_seconds",
		Help:    "Histogram of kernel execution times",
		Buckets: prometheus.DefBuckets,
	}, []string{"kernel"})

	AbortedStepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aborted_steps_total",
		Help: "Total number of sampling steps cancelled by the control flag",
	})

	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "numerical_instability_total",
		Help: "Total number of NaN/Inf values detected",
	}, []string{"buffer", "type"})

	ProbabilitySum = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probability_sum",
		Help:    "Distribution of unnormalized probability totals per decode step",
		Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 500, 1000, 10000},
	})

	SampleDraw = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sample_draw",
		Help:    "Distribution of the unit-interval pseudorandom draws",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	SamplingTemperature = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sampling_temperature",
		Help:    "Temperatures requested per decode step",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 1.0, 1.5, 2.0},
	})

	ThreadgroupsPerDispatch = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "threadgroups_per_dispatch",
		Help:    "Number of threadgroups launched per kernel dispatch",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})
)

// RecordKernelDuration records a single kernel launch.
func RecordKernelDuration(name string, duration time.Duration) {
	KernelDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordSampleStep records one completed decode-step sample.
func RecordSampleStep(duration time.Duration, temperature float32) {
	SampledTokensTotal.Inc()
	totalTokens.Add(1)
	SampleStepDuration.Observe(duration.Seconds())
	SamplingTemperature.Observe(float64(temperature))
}

// RecordAbortedStep records a sampling step cancelled by the control
// flag.
func RecordAbortedStep() {
	AbortedStepsTotal.Inc()
}

// RecordInstability counts a NaN or Inf sighting in a named buffer.
func RecordInstability(buffer, kind string) {
	NumericalInstability.WithLabelValues(buffer, kind).Inc()
}

// TotalTokens returns the process-lifetime sampled token count.
func TotalTokens() int64 {
	return totalTokens.Load()
}
