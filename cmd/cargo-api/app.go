package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/CargoTrack/internal/api/cargoapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type cargoAPIOpts struct {
	grpcAddr    string
	httpAddr    string
	swaggerPath string

	onListen func(grpcAddr, httpAddr string)
}

// readiness проверяет зависимости для gRPC health.
type readiness func(ctx context.Context) error

func runCargoAPI(ctx context.Context, opts cargoAPIOpts, api *cargoapi.API, auth *cargoapi.Authenticator, ready readiness) error {
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
	}

	handler, err := api.Router(auth, opts.swaggerPath)
	if err != nil {
		return err
	}

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- runGRPCServer(ctx, grpcLis, ready)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, handler)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-grpcErr:
		return err
	case err := <-httpErr:
		return err
	}
}

// runGRPCServer поднимает health и reflection; статус обновляется по ready раз в 10с.
func runGRPCServer(ctx context.Context, lis net.Listener, ready readiness) error {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	setHealth := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if ready != nil {
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := ready(checkCtx)
			cancel()
			if err != nil {
				slog.Warn("readiness check failed", "err", err)
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
		hs.SetServingStatus("", status)
	}
	setHealth()

	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				stopped := make(chan struct{})
				go func() {
					s.GracefulStop()
					close(stopped)
				}()
				select {
				case <-stopped:
				case <-time.After(2 * time.Second):
					s.Stop()
				}
				_ = lis.Close()
				return
			case <-t.C:
				setHealth()
			}
		}
	}()

	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

func runHTTPServer(ctx context.Context, lis net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
