// Package bootstrap wires storage, caches, the broker and the services from
// config. cargo-api, cargo-worker and cargoctl share it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/broker/kafka"
	"github.com/BearBump/CargoTrack/internal/cache"
	"github.com/BearBump/CargoTrack/internal/cache/rediscache"
	"github.com/BearBump/CargoTrack/internal/integrations/telegram"
	"github.com/BearBump/CargoTrack/internal/services/events"
	"github.com/BearBump/CargoTrack/internal/services/notifier"
	"github.com/BearBump/CargoTrack/internal/services/reconcile"
	"github.com/BearBump/CargoTrack/internal/services/settings"
	"github.com/BearBump/CargoTrack/internal/services/trackings"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/BearBump/CargoTrack/internal/storage/gormdir"
	"github.com/BearBump/CargoTrack/internal/storage/memcargo"
	"github.com/BearBump/CargoTrack/internal/storage/pgcargo"
	"github.com/pkg/errors"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DefaultStatusTopic = "cargo.status_changed"
)

type Deps struct {
	Store     storage.Store
	Directory storage.Directory
	Cache     cache.BytesCache
	Producer  *kafka.Producer

	Trackings *trackings.Service
	Reconcile *reconcile.Service
	Settings  *settings.Service
	Notifier  *notifier.Service

	pingers []func(ctx context.Context) error
	closers []func() error
}

// Factories позволяют тестам подменить внешние зависимости.
type Factories struct {
	OpenStore     func(cfg *config.Config) (storage.Store, func() error, error)
	OpenDirectory func(cfg *config.Config) (storage.Directory, func() error, error)
}

func DefaultFactories() Factories {
	return Factories{
		OpenStore: func(cfg *config.Config) (storage.Store, func() error, error) {
			if cfg.Cargo.StorageDriver == DriverMemory {
				return memcargo.New(), nil, nil
			}
			st, err := openPostgresWithRetry(cfg.Database.DSN(), 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, func() error { st.Close(); return nil }, nil
		},
		OpenDirectory: func(cfg *config.Config) (storage.Directory, func() error, error) {
			if cfg.Cargo.StorageDriver == DriverMemory {
				return memcargo.NewDirectory(), nil, nil
			}
			dir, err := gormdir.Open(cfg.Database.DSN())
			if err != nil {
				return nil, nil, err
			}
			return dir, dir.Close, nil
		},
	}
}

func Build(cfg *config.Config, f Factories) (*Deps, error) {
	switch cfg.Cargo.StorageDriver {
	case "", DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown storage_driver %q", cfg.Cargo.StorageDriver)
	}

	d := &Deps{}
	st, closeStore, err := f.OpenStore(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	d.Store = st
	d.addCloser(closeStore)
	if p, ok := st.(interface{ Ping(context.Context) error }); ok {
		d.pingers = append(d.pingers, p.Ping)
	}

	dir, closeDir, err := f.OpenDirectory(cfg)
	if err != nil {
		d.Close()
		return nil, errors.Wrap(err, "open directory")
	}
	d.Directory = dir
	d.addCloser(closeDir)

	var limiter notifier.Limiter
	if addr := cfg.Redis.Addr(); addr != "" {
		rc := rediscache.New(addr)
		d.Cache = rc
		limiter = rc.ChatLimiter()
		d.addCloser(rc.Close)
		d.pingers = append(d.pingers, rc.Ping)
	}

	var emitter *events.Emitter
	if brokers := cfg.Kafka.Brokers(); len(brokers) > 0 {
		d.Producer = kafka.NewProducer(brokers)
		d.addCloser(d.Producer.Close)
		emitter = events.NewEmitter(d.Producer, StatusTopic(cfg))
	}

	d.Trackings = trackings.New(d.Store, emitter, d.Cache, seconds(cfg.Cargo.DashboardTTLSeconds, 30*time.Second))
	d.Reconcile = reconcile.New(d.Store, emitter)
	d.Settings = settings.New(d.Directory, d.Cache, seconds(cfg.Cargo.SettingsTTLSeconds, 5*time.Minute))
	d.Notifier = notifier.New(d.Store, d.Directory, d.Settings, Sender(cfg), limiter, notifier.Config{
		ChatID:     cfg.Telegram.ChatID,
		RateLimit:  int64(cfg.Telegram.RateLimitPerMinute),
		RateWindow: time.Minute,
	})
	return d, nil
}

// Sender: без bot token сообщения только пишутся в лог.
func Sender(cfg *config.Config) telegram.Sender {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		slog.Warn("telegram is not configured, notifications go to the log")
		return telegram.LogSink{}
	}
	return telegram.New(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, 10*time.Second)
}

func StatusTopic(cfg *config.Config) string {
	if cfg.Kafka.StatusChangedTopicName != "" {
		return cfg.Kafka.StatusChangedTopicName
	}
	return DefaultStatusTopic
}

// Ready проверяет базу и Redis, если они подключены.
func (d *Deps) Ready(ctx context.Context) error {
	for _, p := range d.pingers {
		if err := p(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close закрывает ресурсы в обратном порядке открытия.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			slog.Warn("close dependency", "error", err.Error())
		}
	}
	d.closers = nil
}

func (d *Deps) addCloser(fn func() error) {
	if fn != nil {
		d.closers = append(d.closers, fn)
	}
}

func openPostgresWithRetry(connString string, wait time.Duration) (*pgcargo.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgcargo.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	return nil, fmt.Errorf("postgres is not ready after %s: %w", wait, lastErr)
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
