package app

import (
	"fmt"
	"strings"
	"time"

	"queuebot/internal/config"
	"queuebot/internal/lifecycle"
	"queuebot/internal/notify"
	"queuebot/internal/observability/pprof"
	"queuebot/internal/session"
	"queuebot/internal/store"
	"queuebot/internal/timefmt"
)

func mapStoreConfig(cfg *config.Config) (store.Config, error) {
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		return store.Config{}, fmt.Errorf("storage.path is required")
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{Path: path, BusyTimeout: busy}, nil
}

func mapNotifyConfig(cfg *config.Config) (notify.Config, error) {
	n := cfg.Notify
	if n.Workers < 0 {
		return notify.Config{}, fmt.Errorf("notify.workers must be >= 0")
	}
	if n.QueueSize < 0 {
		return notify.Config{}, fmt.Errorf("notify.queue_size must be >= 0")
	}
	if n.RatePerSec < 0 {
		return notify.Config{}, fmt.Errorf("notify.rate_per_sec must be >= 0")
	}
	if n.RetryMax < 0 {
		return notify.Config{}, fmt.Errorf("notify.retry_max must be >= 0")
	}
	retryBase, err := config.ParseDurationOrDefault("notify.retry_base", n.RetryBase, 0)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("notify.retry_max_delay", n.RetryMaxDelay, 0)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Workers:       n.Workers,
		QueueSize:     n.QueueSize,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}, nil
}

func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	p := cfg.Pprof
	read, err := config.ParseDurationOrDefault("pprof.read_timeout", p.ReadTimeout, 5*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("pprof.write_timeout", p.WriteTimeout, 30*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("pprof.idle_timeout", p.IdleTimeout, time.Minute)
	if err != nil {
		return pprof.Config{}, err
	}
	return pprof.Config{
		Enabled:      p.Enabled,
		Addr:         p.Addr,
		Token:        p.Token,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

// queueLocation resolves the fixed rendering/parsing zone. The default is
// UTC+3; an explicit utc_offset_hours: 0 means UTC.
func queueLocation(cfg *config.Config) *time.Location {
	offset := 3
	if cfg.Queue.UTCOffsetHours != nil {
		offset = *cfg.Queue.UTCOffsetHours
	}
	return timefmt.Zone(offset)
}

func mapSessionConfig(cfg *config.Config) (session.Config, error) {
	q := cfg.Queue
	if q.PageSize < 0 {
		return session.Config{}, fmt.Errorf("queue.page_size must be >= 0")
	}
	minOpen, err := config.ParseDurationOrDefault("queue.min_open_duration", q.MinOpenDuration, 0)
	if err != nil {
		return session.Config{}, err
	}
	minLead, err := config.ParseDurationOrDefault("queue.min_notify_lead", q.MinNotifyLead, 0)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		SuperAdminID:    cfg.Telegram.SuperAdminID,
		MinOpenDuration: minOpen,
		MinNotifyLead:   minLead,
		PageSize:        q.PageSize,
		Location:        queueLocation(cfg),
	}, nil
}

func mapLifecycleConfig(cfg *config.Config) (lifecycle.Config, error) {
	sweep, err := config.ParseDurationOrDefault("queue.sweep_interval", cfg.Queue.SweepInterval, 0)
	if err != nil {
		return lifecycle.Config{}, err
	}
	return lifecycle.Config{
		SweepInterval: sweep,
		Location:      queueLocation(cfg),
	}, nil
}
