package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/api/cargoapi"
	"github.com/BearBump/CargoTrack/internal/bootstrap"
	"github.com/BearBump/CargoTrack/internal/logger"
)

type cargoAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     cargoAPIOpts
	deps     *bootstrap.Deps
	api      *cargoapi.API
	auth     *cargoapi.Authenticator
	closeLog func() error
}

func mustBootstrapCargoAPI() *cargoAPIApp {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if cfg.Auth.JWTSecret == "" {
		panic("auth.jwt_secret (CARGO_JWT_SECRET) is required")
	}

	closeLog := logger.Setup(cfg.Log)

	deps, err := bootstrap.Build(cfg, bootstrap.DefaultFactories())
	if err != nil {
		panic(err)
	}

	grpcAddr := cfg.Cargo.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	httpAddr := cfg.Cargo.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &cargoAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: cargoAPIOpts{
			grpcAddr:    grpcAddr,
			httpAddr:    httpAddr,
			swaggerPath: os.Getenv("swaggerPath"),
		},
		deps:     deps,
		api:      cargoapi.New(deps.Trackings, deps.Reconcile, deps.Notifier, deps.Settings),
		auth:     cargoapi.NewAuthenticator(cfg.Auth.JWTSecret),
		closeLog: closeLog,
	}
}

func (a *cargoAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.deps != nil {
		a.deps.Close()
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func (a *cargoAPIApp) Run() error {
	return runCargoAPI(a.ctx, a.opts, a.api, a.auth, a.deps.Ready)
}
