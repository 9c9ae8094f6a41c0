package runloop

import (
	"fmt"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// DefaultMinimumTick is the delay used by [SuspendCooperative] when no time
// remains before the next tick.
const DefaultMinimumTick = time.Millisecond

// driverOptions holds configuration options for Driver creation.
type driverOptions struct {
	logger         *logiface.Logger[logiface.Event]
	host           Host
	observer       Observer
	clock          Clock
	overrunLimiter *catrate.Limiter
	minimumTick    time.Duration
	suspension     Suspension
}

// --- Driver Options ---

// Option configures a Driver instance.
type Option interface {
	applyDriver(*driverOptions) error
}

// driverOptionImpl implements Option.
type driverOptionImpl struct {
	applyDriverFunc func(*driverOptions) error
}

func (o *driverOptionImpl) applyDriver(opts *driverOptions) error {
	return o.applyDriverFunc(opts)
}

// WithSuspension selects how the driver waits between ticks. The default is
// [SuspendBlocking]. [SuspendCooperative] also requires [WithHost].
func WithSuspension(suspension Suspension) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		switch suspension {
		case SuspendBlocking, SuspendCooperative:
		default:
			return fmt.Errorf("runloop: invalid suspension: %v", suspension)
		}
		opts.suspension = suspension
		return nil
	}}
}

// WithHost sets the event loop used to schedule ticks under
// [SuspendCooperative]. It is ignored by [SuspendBlocking].
func WithHost(host Host) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.host = host
		return nil
	}}
}

// WithMinimumTick sets the smallest delay [SuspendCooperative] will register
// with the host, default [DefaultMinimumTick]. It guarantees the host a turn
// between ticks, even when no interval is configured.
func WithMinimumTick(d time.Duration) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		if d <= 0 {
			return fmt.Errorf("runloop: minimum tick must be positive: %s", d)
		}
		opts.minimumTick = d
		return nil
	}}
}

// WithLogger attaches a structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithObserver attaches hooks receiving tick, suspension and termination
// measurements, e.g. see the metrics package.
func WithObserver(observer Observer) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.observer = observer
		return nil
	}}
}

// WithClock replaces the wall clock, used to measure ticks and to sleep
// under [SuspendBlocking].
func WithClock(clock Clock) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.clock = clock
		return nil
	}}
}

// WithOverrunLimiter sets the limiter throttling the warning logged when a
// tick takes longer than the configured wait. Nil disables throttling.
func WithOverrunLimiter(limiter *catrate.Limiter) Option {
	return &driverOptionImpl{func(opts *driverOptions) error {
		opts.overrunLimiter = limiter
		return nil
	}}
}

// resolveDriverOptions applies Option instances to driverOptions.
func resolveDriverOptions(opts []Option) (*driverOptions, error) {
	cfg := &driverOptions{
		suspension:  SuspendBlocking,
		minimumTick: DefaultMinimumTick,
		clock:       realClock{},
		overrunLimiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyDriver(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.observer == nil {
		cfg.observer = nopObserver{}
	}
	if cfg.clock == nil {
		cfg.clock = realClock{}
	}
	if cfg.suspension == SuspendCooperative && cfg.host == nil {
		return nil, ErrNoHost
	}
	return cfg, nil
}
