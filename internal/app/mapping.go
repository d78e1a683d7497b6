package app

import (
	"fmt"
	"strings"
	"time"

	logx "remindd/pkg/logx"

	"remindd/internal/config"
	"remindd/internal/delivery"
	"remindd/internal/scheduler"
	"remindd/internal/storage"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alerts: logx.AlertConfig{
			Enabled:    cfg.Logging.Alerts.Enabled,
			MinLevel:   cfg.Logging.Alerts.MinLevel,
			RatePerSec: cfg.Logging.Alerts.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	out := delivery.Config{Enabled: true}
	d := cfg.Delivery
	if d == nil {
		return out, nil
	}
	if d.Enabled != nil {
		out.Enabled = *d.Enabled
	}
	out.Workers = d.Workers
	out.QueueSize = d.QueueSize
	out.RatePerSec = d.RatePerSec
	out.RetryMax = d.RetryMax

	var err error
	if out.RetryBase, err = config.ParseDurationField("delivery.retry_base", d.RetryBase); err != nil {
		return delivery.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationField("delivery.retry_max_delay", d.RetryMaxDelay); err != nil {
		return delivery.Config{}, err
	}
	if out.SendTimeout, err = config.ParseDurationField("delivery.send_timeout", d.SendTimeout); err != nil {
		return delivery.Config{}, err
	}
	return out, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	sc := cfg.Scheduler
	retention, err := config.ParseDurationField("scheduler.retention", sc.Retention)
	if err != nil {
		return scheduler.Config{}, err
	}
	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return scheduler.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if tick := strings.TrimSpace(sc.Tick); tick != "" {
		if _, err := scheduler.ParseSchedule(tick); err != nil {
			return scheduler.Config{}, fmt.Errorf("scheduler.tick: %w", err)
		}
	}
	ci := sc.Checkin
	if ci.Enabled {
		if ci.FromHour < 0 || ci.FromHour > 23 || ci.ToHour < 0 || ci.ToHour > 23 || ci.ToHour < ci.FromHour {
			return scheduler.Config{}, fmt.Errorf("scheduler.checkin: invalid window %d..%d", ci.FromHour, ci.ToHour)
		}
	}
	return scheduler.Config{
		Enabled:   sc.Enabled,
		Tick:      sc.Tick,
		Timezone:  sc.Timezone,
		Retention: retention,
		Checkin: scheduler.CheckinConfig{
			Enabled:  ci.Enabled,
			Users:    ci.Users,
			FromHour: ci.FromHour,
			ToHour:   ci.ToHour,
			Channels: ci.Channels,
		},
	}, nil
}
