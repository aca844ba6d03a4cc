package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/logger"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	closeLog := logger.Setup(cfg.Log)
	defer func() { _ = closeLog() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunCargoWorker(ctx, cfg, defaultWorkerFactories(), workerHTTPOpts{
		httpAddr:    cfg.Cargo.WorkerHTTPAddr,
		swaggerPath: os.Getenv("workerSwaggerPath"),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
