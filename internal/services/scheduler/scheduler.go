// Package scheduler drives the background work of cargo-worker: periodic
// branch-arrival notifications, the manifest sweep and event-triggered runs.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/notifier"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

type Notifier interface {
	NotifyBranchArrivals(ctx context.Context, branchID int64) (notifier.Result, error)
}

type Branches interface {
	ListActiveBranches(ctx context.Context) ([]*models.Branch, error)
}

type Sweeper interface {
	SyncAll(ctx context.Context) (models.SyncResult, error)
}

const (
	DefaultNotifySchedule = "*/15 * * * *"
	DefaultSyncSchedule   = "0 * * * *"
	DefaultConcurrency    = 4
)

type Config struct {
	NotifySchedule string
	SyncSchedule   string
	Concurrency    int
	Backoff        BackoffConfig
}

// WithDefaults заполняет пустые поля значениями по умолчанию.
func (c Config) WithDefaults() Config {
	if c.NotifySchedule == "" {
		c.NotifySchedule = DefaultNotifySchedule
	}
	if c.SyncSchedule == "" {
		c.SyncSchedule = DefaultSyncSchedule
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

type branchState struct {
	fails   int32
	retryAt time.Time
}

type Scheduler struct {
	notifier Notifier
	branches Branches
	sweeper  Sweeper

	cfg     Config
	backoff *Backoff
	now     func() time.Time

	triggerCh chan struct{}
	branchCh  chan int64
	sweepCh   chan struct{}

	stateMu sync.Mutex
	state   map[int64]*branchState

	startedAtUnixNano   int64
	lastRunUnixNano     atomic.Int64
	lastSweepUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	totalBranches       atomic.Int64
	totalUsers          atomic.Int64
	totalItems          atomic.Int64
	totalSynced         atomic.Int64
	totalSyncFailed     atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(n Notifier, b Branches, sw Sweeper, cfg Config) *Scheduler {
	cfg = cfg.WithDefaults()
	return &Scheduler{
		notifier:          n,
		branches:          b,
		sweeper:           sw,
		cfg:               cfg,
		backoff:           NewBackoff(cfg.Backoff),
		now:               func() time.Time { return time.Now().UTC() },
		triggerCh:         make(chan struct{}, 1),
		branchCh:          make(chan int64, 64),
		sweepCh:           make(chan struct{}, 1),
		state:             make(map[int64]*branchState),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// Trigger forces an immediate notification pass over all active branches
// (best-effort, non-blocking).
func (s *Scheduler) Trigger() {
	s.lastTriggerUnixNano.Store(s.now().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// TriggerBranch ставит в очередь один филиал; при переполненной очереди
// филиал подхватит ближайший плановый проход.
func (s *Scheduler) TriggerBranch(branchID int64) {
	select {
	case s.branchCh <- branchID:
	default:
		slog.Warn("scheduler: branch queue full, dropping trigger", "branch_id", branchID)
	}
}

func (s *Scheduler) TriggerSweep() {
	select {
	case s.sweepCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	LastSweepAt   *time.Time `json:"lastSweepAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalRuns     int64      `json:"totalRuns"`
	TotalBranches int64      `json:"totalBranches"`
	UsersNotified int64      `json:"usersNotified"`
	ItemsNotified int64      `json:"itemsNotified"`
	ItemsSynced   int64      `json:"itemsSynced"`
	SyncFailed    int64      `json:"syncFailed"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	BackedOff     int        `json:"backedOffBranches"`
	LastError     string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalRuns:     s.totalRuns.Load(),
		TotalBranches: s.totalBranches.Load(),
		UsersNotified: s.totalUsers.Load(),
		ItemsNotified: s.totalItems.Load(),
		ItemsSynced:   s.totalSynced.Load(),
		SyncFailed:    s.totalSyncFailed.Load(),
		TotalErrors:   s.totalErrors.Load(),
		InFlight:      s.inFlight.Load(),
	}
	st.LastRunAt = unixPtr(s.lastRunUnixNano.Load())
	st.LastSweepAt = unixPtr(s.lastSweepUnixNano.Load())
	st.LastTriggerAt = unixPtr(s.lastTriggerUnixNano.Load())

	now := s.now()
	s.stateMu.Lock()
	for _, bs := range s.state {
		if now.Before(bs.retryAt) {
			st.BackedOff++
		}
	}
	s.stateMu.Unlock()

	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func unixPtr(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	t := time.Unix(0, n).UTC()
	return &t
}

// Run регистрирует cron-задачи и обрабатывает запуски до отмены ctx.
// Все проходы выполняются в этой горутине и не пересекаются.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.NotifySchedule, s.Trigger); err != nil {
		return errors.Wrapf(err, "notify schedule %q", s.cfg.NotifySchedule)
	}
	if _, err := c.AddFunc(s.cfg.SyncSchedule, s.TriggerSweep); err != nil {
		return errors.Wrapf(err, "sync schedule %q", s.cfg.SyncSchedule)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.triggerCh:
			s.RunOnce(ctx)
		case id := <-s.branchCh:
			s.runBranch(ctx, id)
		case <-s.sweepCh:
			s.Sweep(ctx)
		}
	}
}

// RunOnce обходит активные филиалы, не больше Concurrency одновременно.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.lastRunUnixNano.Store(s.now().UnixNano())
	s.totalRuns.Add(1)

	branches, err := s.branches.ListActiveBranches(ctx)
	if err != nil {
		s.fail(errors.Wrap(err, "list active branches"))
		return
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, b := range branches {
		sem <- struct{}{}
		wg.Add(1)
		id := b.ID
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			s.runBranch(ctx, id)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runBranch(ctx context.Context, branchID int64) {
	now := s.now()
	if !s.due(branchID, now) {
		slog.Debug("scheduler: branch in backoff", "branch_id", branchID)
		return
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	res, err := s.notifier.NotifyBranchArrivals(ctx, branchID)
	s.totalBranches.Add(1)
	if err != nil {
		delay := s.markFailed(branchID, now)
		s.fail(errors.Wrapf(err, "branch %d", branchID))
		slog.Error("scheduler: notify branch", "branch_id", branchID, "retry_in", delay, "error", err.Error())
		return
	}
	s.markOK(branchID)
	s.totalUsers.Add(int64(res.UsersNotified))
	s.totalItems.Add(int64(res.ItemsNotified))
}

func (s *Scheduler) Sweep(ctx context.Context) {
	s.lastSweepUnixNano.Store(s.now().UnixNano())
	res, err := s.sweeper.SyncAll(ctx)
	s.totalSynced.Add(int64(res.ItemsUpdated))
	s.totalSyncFailed.Add(int64(res.Failed))
	if res.Failed > 0 {
		slog.Warn("scheduler: manifest sweep partial", "items_synced", res.ItemsUpdated, "failed", res.Failed)
	}
	if err != nil {
		s.fail(errors.Wrap(err, "manifest sweep"))
		slog.Error("scheduler: manifest sweep", "error", err.Error())
	}
}

func (s *Scheduler) due(branchID int64, now time.Time) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	bs, ok := s.state[branchID]
	return !ok || !now.Before(bs.retryAt)
}

func (s *Scheduler) markFailed(branchID int64, now time.Time) time.Duration {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	bs, ok := s.state[branchID]
	if !ok {
		bs = &branchState{}
		s.state[branchID] = bs
	}
	bs.fails++
	d := s.backoff.Delay(bs.fails)
	bs.retryAt = now.Add(d)
	return d
}

func (s *Scheduler) markOK(branchID int64) {
	s.stateMu.Lock()
	delete(s.state, branchID)
	s.stateMu.Unlock()
}

func (s *Scheduler) fail(err error) {
	s.totalErrors.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
