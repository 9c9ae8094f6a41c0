// Package metrics exports runloop.Driver measurements as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	runloop "github.com/joeycumines/go-runloop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Termination outcomes, used as the "outcome" label value.
const (
	OutcomeCompleted   = "completed"
	OutcomeExitSuccess = "exit_success"
	OutcomeExitFailure = "exit_failure"
	OutcomeFault       = "fault"
	OutcomeCancelled   = "cancelled"
	OutcomeError       = "error"
)

var allOutcomes = []string{
	OutcomeCompleted,
	OutcomeExitSuccess,
	OutcomeExitFailure,
	OutcomeFault,
	OutcomeCancelled,
	OutcomeError,
}

// Observer implements runloop.Observer, recording to Prometheus collectors.
type Observer struct {
	TicksTotal        prometheus.Counter
	TickDuration      prometheus.Histogram
	SuspendDuration   prometheus.Histogram
	TerminationsTotal *prometheus.CounterVec
}

var _ runloop.Observer = (*Observer)(nil)

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Observer, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	x := &Observer{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runloop_ticks_total",
			Help: "Total ticks run",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "runloop_tick_duration_seconds",
			Help:    "Execution time of each tick",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		SuspendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "runloop_suspend_seconds",
			Help:    "Time the driver waited between ticks",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		TerminationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runloop_terminations_total",
			Help: "Driver terminations, by outcome",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		x.TicksTotal,
		x.TickDuration,
		x.SuspendDuration,
		x.TerminationsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	// initialise every series, so absent outcomes export as zero
	for _, outcome := range allOutcomes {
		x.TerminationsTotal.WithLabelValues(outcome)
	}

	return x, nil
}

// ObserveTick implements runloop.Observer.
func (x *Observer) ObserveTick(d time.Duration) {
	x.TicksTotal.Inc()
	x.TickDuration.Observe(d.Seconds())
}

// ObserveSuspend implements runloop.Observer.
func (x *Observer) ObserveSuspend(d time.Duration) {
	x.SuspendDuration.Observe(d.Seconds())
}

// ObserveTermination implements runloop.Observer.
func (x *Observer) ObserveTermination(outcome runloop.Outcome, err error) {
	x.TerminationsTotal.WithLabelValues(Classify(outcome, err)).Inc()
}

// Classify maps the result of a driver to its "outcome" label value.
func Classify(outcome runloop.Outcome, err error) string {
	var fault *runloop.TickFault
	switch {
	case errors.As(err, &fault):
		return OutcomeFault
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case err != nil:
		return OutcomeError
	case outcome.Kind == runloop.OutcomeCompleted:
		return OutcomeCompleted
	case outcome.Kind == runloop.OutcomeRequestedExit && outcome.Exit.Success():
		return OutcomeExitSuccess
	case outcome.Kind == runloop.OutcomeRequestedExit:
		return OutcomeExitFailure
	default:
		return OutcomeError
	}
}

// Handler returns the Prometheus metrics HTTP handler, serving g. A nil g
// uses prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
