package config

import (
	"fmt"
	"net"
	"strings"

	runloop "github.com/joeycumines/go-runloop"
	"github.com/joeycumines/logiface"
)

func validate(cfg *Config) error {
	if _, err := runloop.ParseRunMode(cfg.RunMode.Mode, cfg.RunMode.Wait); err != nil {
		return fmt.Errorf("config: run_mode.mode %q invalid: must be once or loop", cfg.RunMode.Mode)
	}
	if cfg.RunMode.Wait < 0 {
		return fmt.Errorf("config: run_mode.wait must not be negative, got %s", cfg.RunMode.Wait)
	}

	if _, err := parseSuspension(cfg.Suspension); err != nil {
		return err
	}
	if cfg.MinimumTick <= 0 {
		return fmt.Errorf("config: minimum_tick must be positive, got %s", cfg.MinimumTick)
	}

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return err
	}

	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("config: metrics.listen %q invalid: %w", cfg.Metrics.Listen, err)
		}
	}

	if cfg.Demo.MaxTicks < 0 {
		return fmt.Errorf("config: demo.max_ticks must not be negative, got %d", cfg.Demo.MaxTicks)
	}
	if cfg.Demo.Work < 0 {
		return fmt.Errorf("config: demo.work must not be negative, got %s", cfg.Demo.Work)
	}

	return nil
}

func parseSuspension(s string) (runloop.Suspension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blocking":
		return runloop.SuspendBlocking, nil
	case "cooperative":
		return runloop.SuspendCooperative, nil
	default:
		return 0, fmt.Errorf("config: suspension %q invalid: must be blocking or cooperative", s)
	}
}

// parseLevel accepts the logiface level keywords, plus common aliases.
func parseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "error":
		return logiface.LevelError, nil
	case "warn":
		return logiface.LevelWarning, nil
	case "information":
		return logiface.LevelInformational, nil
	case "off", "none":
		return logiface.LevelDisabled, nil
	}
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("config: log.level %q invalid", s)
}
