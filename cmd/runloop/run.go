package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	runloop "github.com/joeycumines/go-runloop"
	"github.com/joeycumines/go-runloop/hostloop"
	"github.com/joeycumines/go-runloop/internal/config"
	"github.com/joeycumines/go-runloop/internal/demo"
	"github.com/joeycumines/go-runloop/internal/exitcode"
	"github.com/joeycumines/go-runloop/metrics"
)

type runFlags struct {
	configPath    string
	mode          string
	suspension    string
	metricsListen string
	logLevel      string
	wait          time.Duration
	minimumTick   time.Duration
	work          time.Duration
	ticks         int
	fail          bool
}

func runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo counter under the driver",
		Long: "Run the demo counter under the driver. The first SIGINT or SIGTERM requests a\n" +
			"normal exit, observed at the next poll; a second one stops immediately.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return &exitError{code: exitcode.InvalidConfig, err: err}
			}

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			outcome, err := runApp(cmd.Context(), cfg, cmd.ErrOrStderr(), sigCh)
			if code := exitcode.FromResult(outcome, err); code != exitcode.Success {
				return &exitError{code: code, err: err}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&f.mode, "mode", "", "run mode: once or loop")
	flags.DurationVar(&f.wait, "wait", 0, "minimum interval between the start of consecutive ticks")
	flags.StringVar(&f.suspension, "suspension", "", "suspension strategy: blocking or cooperative")
	flags.DurationVar(&f.minimumTick, "minimum-tick", 0, "smallest cooperative delay")
	flags.IntVar(&f.ticks, "ticks", 0, "request an exit after this many ticks (0 = never)")
	flags.DurationVar(&f.work, "work", 0, "simulated work per tick")
	flags.BoolVar(&f.fail, "fail", false, "request a failure exit instead of success")
	flags.StringVar(&f.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	flags.StringVar(&f.logLevel, "log-level", "", "log level, e.g. info, debug, trace, off")

	return cmd
}

// loadConfig reads the config file, if any, then applies explicitly set flags.
func loadConfig(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.RunMode.Mode = f.mode
	}
	if flags.Changed("wait") {
		cfg.RunMode.Wait = f.wait
	}
	if flags.Changed("suspension") {
		cfg.Suspension = f.suspension
	}
	if flags.Changed("minimum-tick") {
		cfg.MinimumTick = f.minimumTick
	}
	if flags.Changed("ticks") {
		cfg.Demo.MaxTicks = f.ticks
	}
	if flags.Changed("work") {
		cfg.Demo.Work = f.work
	}
	if flags.Changed("fail") {
		cfg.Demo.Fail = f.fail
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Listen = f.metricsListen
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(`time`)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// runApp runs the demo counter until it exits, wiring logging, metrics,
// signals and (if cooperative) a host loop.
func runApp(ctx context.Context, cfg *config.Config, logOutput io.Writer, signals <-chan os.Signal) (runloop.Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := newLogger(logOutput, cfg.LogLevel()).Clone().
		Str(`run_id`, uuid.NewString()).
		Logger()

	reg := prometheus.NewRegistry()
	observer, err := metrics.New(reg)
	if err != nil {
		return runloop.Outcome{}, err
	}

	if cfg.Metrics.Listen != "" {
		stop, err := serveMetrics(cfg.Metrics.Listen, reg, logger)
		if err != nil {
			return runloop.Outcome{}, err
		}
		defer stop()
	}

	exits := runloop.NewExitLog()
	app := demo.NewCounter(exits, cfg.Demo, logger)

	opts := []runloop.Option{
		runloop.WithLogger(logger),
		runloop.WithObserver(observer),
		runloop.WithSuspension(cfg.SuspensionStrategy()),
		runloop.WithMinimumTick(cfg.MinimumTick),
	}

	if cfg.SuspensionStrategy() == runloop.SuspendCooperative {
		host, err := hostloop.New(hostloop.WithLogger(logger))
		if err != nil {
			return runloop.Outcome{}, err
		}
		hostCtx, hostCancel := context.WithCancel(context.Background())
		go func() { _ = host.Run(hostCtx) }()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := host.Shutdown(shutdownCtx); err != nil && !errors.Is(err, hostloop.ErrLoopTerminated) {
				logger.Warning().Err(err).Log(`host shutdown failed`)
			}
			hostCancel()
		}()
		opts = append(opts, runloop.WithHost(host))
	}

	driver, err := runloop.New(app.Tick, exits, cfg.Settings(), opts...)
	if err != nil {
		return runloop.Outcome{}, err
	}

	go handleSignals(ctx, cancel, signals, exits, logger)

	return runDriver(ctx, driver)
}

// handleSignals requests a normal exit on the first signal, and cancels the
// run on the second.
func handleSignals(ctx context.Context, cancel context.CancelFunc, signals <-chan os.Signal, exits *runloop.ExitLog, logger *logiface.Logger[logiface.Event]) {
	var received int
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			received++
			if received == 1 {
				logger.Info().Stringer(`signal`, sig).Log(`requesting exit`)
				exits.Send(runloop.ExitSuccess)
				continue
			}
			logger.Warning().Stringer(`signal`, sig).Log(`forcing stop`)
			cancel()
			return
		}
	}
}

// runDriver runs the driver, converting a tick panic that escaped under
// blocking suspension into its recorded TickFault.
func runDriver(ctx context.Context, driver *runloop.Driver) (outcome runloop.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			if driver.State() != runloop.StateTerminated {
				panic(r)
			}
			outcome, err = driver.Wait(context.Background())
		}
	}()
	return driver.Run(ctx)
}

// serveMetrics starts an HTTP server exposing reg at /metrics.
func serveMetrics(addr string, reg *prometheus.Registry, logger *logiface.Logger[logiface.Event]) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info().Str(`addr`, ln.Addr().String()).Log(`metrics server starting`)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Err().Err(err).Log(`metrics server failed`)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Err().Err(err).Log(`metrics server shutdown error`)
		}
	}, nil
}
