package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/bootstrap"
	"github.com/BearBump/CargoTrack/internal/broker/kafka"
	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// feedConsumer отдаёт заранее заданные сообщения и ждёт отмены.
type feedConsumer struct {
	msgs    []messages.StatusChanged
	handled chan error
	closed  bool
}

func (c *feedConsumer) ConsumeStatusChanges(ctx context.Context, handle kafka.StatusHandler) error {
	for _, m := range c.msgs {
		c.handled <- handle(ctx, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *feedConsumer) Close() error { c.closed = true; return nil }

func memoryFactories(cons eventConsumer) workerFactories {
	return workerFactories{
		newDeps: func(cfg *config.Config) (*bootstrap.Deps, error) {
			cfg.Cargo.StorageDriver = bootstrap.DriverMemory
			return bootstrap.Build(cfg, bootstrap.DefaultFactories())
		},
		newConsumer: func(cfg *config.Config) eventConsumer { return cons },
	}
}

func TestDefaultWorkerFactories_Consumer(t *testing.T) {
	f := defaultWorkerFactories()
	require.Nil(t, f.newConsumer(&config.Config{}))

	c := f.newConsumer(&config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}})
	require.NotNil(t, c)
	_, ok := c.(*kafka.Consumer)
	require.True(t, ok)
	require.NoError(t, c.Close())
}

func TestSchedulerConfig_FromCargoConfig(t *testing.T) {
	sc := schedulerConfig(&config.Config{Cargo: config.CargoConfig{
		NotifySchedule:        "*/5 * * * *",
		WorkerConcurrency:     7,
		WorkerBackoff1Seconds: 60,
	}})
	require.Equal(t, "*/5 * * * *", sc.NotifySchedule)
	require.Equal(t, 7, sc.Concurrency)
	require.Equal(t, time.Minute, sc.Backoff.Backoff1)
	require.Zero(t, sc.Backoff.Backoff2)
}

func TestRunCargoWorker_ServesAndStops(t *testing.T) {
	branch := int64(4)
	other := messages.NewStatusChanged(2, "KH-2", &branch, nil, string(models.StatusReadyForPickup),
		string(models.SourceManual), 1, time.Now())
	arrived := messages.NewStatusChanged(1, "KH-1", &branch, nil, string(models.StatusArrivedBranch),
		string(models.SourceManual), 1, time.Now())
	cons := &feedConsumer{msgs: []messages.StatusChanged{other, arrived}, handled: make(chan error, 2)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrCh := make(chan string, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- RunCargoWorker(ctx, &config.Config{}, memoryFactories(cons), workerHTTPOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(a string) { addrCh <- a },
		})
	}()
	addr := <-addrCh

	require.NoError(t, <-cons.handled)
	require.NoError(t, <-cons.handled)

	resp, err := http.Get("http://" + addr + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post("http://"+addr+"/trigger", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post("http://"+addr+"/trigger?branchId=x", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var st map[string]any
		if json.Unmarshal(body, &st) != nil {
			return false
		}
		runs, _ := st["totalRuns"].(float64)
		return runs >= 1
	}, 2*time.Second, 20*time.Millisecond)

	resp, err = http.Get("http://" + addr + "/config")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Contains(t, string(body), `"notifySchedule":"*/15 * * * *"`)

	cancel()
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.True(t, cons.closed)
}

func TestRunCargoWorker_BadSchedule(t *testing.T) {
	cfg := &config.Config{Cargo: config.CargoConfig{NotifySchedule: "not a cron"}}
	err := RunCargoWorker(context.Background(), cfg, memoryFactories(nil), workerHTTPOpts{httpAddr: "127.0.0.1:0"})
	require.Error(t, err)
}
