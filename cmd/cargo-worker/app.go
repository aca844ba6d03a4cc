package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/bootstrap"
	"github.com/BearBump/CargoTrack/internal/broker/kafka"
	"github.com/BearBump/CargoTrack/internal/services/scheduler"
)

type eventConsumer interface {
	ConsumeStatusChanges(ctx context.Context, handle kafka.StatusHandler) error
	Close() error
}

type workerFactories struct {
	newDeps     func(cfg *config.Config) (*bootstrap.Deps, error)
	newConsumer func(cfg *config.Config) eventConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newDeps: func(cfg *config.Config) (*bootstrap.Deps, error) {
			return bootstrap.Build(cfg, bootstrap.DefaultFactories())
		},
		newConsumer: func(cfg *config.Config) eventConsumer {
			brokers := cfg.Kafka.Brokers()
			if len(brokers) == 0 {
				return nil
			}
			group := cfg.Cargo.KafkaConsumerGroup
			if group == "" {
				group = "cargo-worker"
			}
			return kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers: brokers,
				Topic:   bootstrap.StatusTopic(cfg),
				GroupID: group,
			})
		},
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return scheduler.Config{
		NotifySchedule: cfg.Cargo.NotifySchedule,
		SyncSchedule:   cfg.Cargo.SyncSchedule,
		Concurrency:    cfg.Cargo.WorkerConcurrency,
		Backoff: scheduler.BackoffConfig{
			Backoff1: sec(cfg.Cargo.WorkerBackoff1Seconds),
			Backoff2: sec(cfg.Cargo.WorkerBackoff2Seconds),
			Backoff3: sec(cfg.Cargo.WorkerBackoff3Seconds),
			Backoff4: sec(cfg.Cargo.WorkerBackoff4Seconds),
		},
	}
}

// RunCargoWorker запускает планировщик, консьюмер событий и служебный HTTP.
// Возвращается при отмене ctx или при падении планировщика/HTTP.
func RunCargoWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	deps, err := f.newDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	sch := scheduler.New(deps.Notifier, deps.Directory, deps.Reconcile, schedulerConfig(cfg))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cons := f.newConsumer(cfg); cons != nil {
		defer func() { _ = cons.Close() }()
		go func() {
			slog.Info("kafka consumer started", "topic", bootstrap.StatusTopic(cfg))
			if err := cons.ConsumeStatusChanges(ctx, sch.HandleStatusChanged); err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "err", err)
			}
		}()
	}

	httpOpts.scheduler = sch
	httpOpts.cfg = cfg
	httpOpts.ready = deps.Ready
	httpErr := make(chan error, 1)
	go func() { httpErr <- runWorkerHTTPServer(ctx, httpOpts) }()

	schErr := make(chan error, 1)
	go func() { schErr <- sch.Run(ctx) }()

	select {
	case err := <-schErr:
		return err
	case err := <-httpErr:
		if err != nil {
			return err
		}
		return <-schErr
	}
}
