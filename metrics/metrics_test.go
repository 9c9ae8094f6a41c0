package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	runloop "github.com/joeycumines/go-runloop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	// every outcome series exists up front
	n, err := testutil.GatherAndCount(reg, "runloop_terminations_total")
	require.NoError(t, err)
	assert.Equal(t, len(allOutcomes), n)

	_, err = New(reg)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}

func TestObserver_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := New(reg)
	require.NoError(t, err)

	obs.ObserveTick(10 * time.Millisecond)
	obs.ObserveTick(20 * time.Millisecond)
	obs.ObserveSuspend(40 * time.Millisecond)
	obs.ObserveTermination(runloop.RequestedExit(runloop.ExitSuccess), nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(obs.TicksTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(obs.TerminationsTotal.WithLabelValues(OutcomeExitSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(obs.TerminationsTotal.WithLabelValues(OutcomeFault)))
	assert.Equal(t, 1, testutil.CollectAndCount(obs.TickDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(obs.SuspendDuration))
}

func TestClassify(t *testing.T) {
	for _, tc := range [...]struct {
		outcome runloop.Outcome
		err     error
		want    string
	}{
		{runloop.Completed(), nil, OutcomeCompleted},
		{runloop.RequestedExit(runloop.ExitSuccess), nil, OutcomeExitSuccess},
		{runloop.RequestedExit(runloop.ExitFailure(2)), nil, OutcomeExitFailure},
		{runloop.Outcome{}, &runloop.TickFault{Value: "boom"}, OutcomeFault},
		{runloop.Outcome{}, context.Canceled, OutcomeCancelled},
		{runloop.Outcome{}, fmt.Errorf("wrapped: %w", context.DeadlineExceeded), OutcomeCancelled},
		{runloop.Outcome{}, runloop.ErrHostRejected, OutcomeError},
		{runloop.Outcome{}, nil, OutcomeError},
	} {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.outcome, tc.err))
		})
	}
}

func TestObserver_WithDriver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := New(reg)
	require.NoError(t, err)

	exits := runloop.NewExitLog()
	var n int
	d, err := runloop.New(func() {
		n++
		if n == 3 {
			exits.Send(runloop.ExitFailure(5))
		}
	}, exits, runloop.RunLoop(time.Millisecond), runloop.WithObserver(obs))
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(3), testutil.ToFloat64(obs.TicksTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(obs.TerminationsTotal.WithLabelValues(OutcomeExitFailure)))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := New(reg)
	require.NoError(t, err)
	obs.ObserveTick(time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "runloop_ticks_total 1")
	assert.Contains(t, string(body), `runloop_terminations_total{outcome="completed"} 0`)
}

func TestHandler_Default(t *testing.T) {
	assert.NotNil(t, Handler(nil))
}
