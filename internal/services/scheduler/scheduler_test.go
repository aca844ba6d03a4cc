package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/notifier"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu     sync.Mutex
	calls  map[int64]int
	failOn map[int64]bool
	delay  time.Duration

	cur atomic.Int64
	max atomic.Int64
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{calls: map[int64]int{}, failOn: map[int64]bool{}}
}

func (f *fakeNotifier) NotifyBranchArrivals(ctx context.Context, branchID int64) (notifier.Result, error) {
	n := f.cur.Add(1)
	defer f.cur.Add(-1)
	for {
		m := f.max.Load()
		if n <= m || f.max.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[branchID]++
	if f.failOn[branchID] {
		return notifier.Result{}, errors.New("db down")
	}
	return notifier.Result{UsersNotified: 1, ItemsNotified: 2}, nil
}

func (f *fakeNotifier) count(branchID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[branchID]
}

type fakeBranches struct {
	list []*models.Branch
	err  error
}

func (f fakeBranches) ListActiveBranches(ctx context.Context) ([]*models.Branch, error) {
	return f.list, f.err
}

type fakeSweeper struct {
	calls atomic.Int64
}

func (f *fakeSweeper) SyncAll(ctx context.Context) (models.SyncResult, error) {
	f.calls.Add(1)
	return models.SyncResult{ItemsUpdated: 3, Failed: 1}, nil
}

func branches(ids ...int64) fakeBranches {
	var out []*models.Branch
	for _, id := range ids {
		out = append(out, &models.Branch{ID: id, IsActive: true})
	}
	return fakeBranches{list: out}
}

func TestRunOnce_AllBranchesAndStats(t *testing.T) {
	n := newFakeNotifier()
	s := New(n, branches(1, 2, 3), &fakeSweeper{}, Config{Concurrency: 2})

	s.RunOnce(context.Background())

	for _, id := range []int64{1, 2, 3} {
		require.Equal(t, 1, n.count(id))
	}
	st := s.Stats()
	require.Equal(t, int64(1), st.TotalRuns)
	require.Equal(t, int64(3), st.TotalBranches)
	require.Equal(t, int64(3), st.UsersNotified)
	require.Equal(t, int64(6), st.ItemsNotified)
	require.NotNil(t, st.LastRunAt)
	require.Zero(t, st.TotalErrors)
}

func TestRunOnce_ConcurrencyBound(t *testing.T) {
	n := newFakeNotifier()
	n.delay = 20 * time.Millisecond
	s := New(n, branches(1, 2, 3, 4, 5, 6), &fakeSweeper{}, Config{Concurrency: 2})

	s.RunOnce(context.Background())
	require.LessOrEqual(t, n.max.Load(), int64(2))
}

func TestRunOnce_FailedBranchBacksOff(t *testing.T) {
	n := newFakeNotifier()
	n.failOn[2] = true
	s := New(n, branches(1, 2), &fakeSweeper{}, Config{})
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.RunOnce(context.Background())
	require.Equal(t, 1, n.count(2))
	st := s.Stats()
	require.Equal(t, int64(1), st.TotalErrors)
	require.Equal(t, 1, st.BackedOff)
	require.Contains(t, st.LastError, "branch 2")

	// внутри окна 5 минут филиал пропускается
	now = now.Add(4 * time.Minute)
	s.RunOnce(context.Background())
	require.Equal(t, 1, n.count(2))
	require.Equal(t, 2, n.count(1))

	// вторая неудача даёт 15 минут
	now = now.Add(2 * time.Minute)
	s.RunOnce(context.Background())
	require.Equal(t, 2, n.count(2))
	now = now.Add(10 * time.Minute)
	s.RunOnce(context.Background())
	require.Equal(t, 2, n.count(2))

	n.mu.Lock()
	n.failOn[2] = false
	n.mu.Unlock()
	now = now.Add(6 * time.Minute)
	s.RunOnce(context.Background())
	require.Equal(t, 3, n.count(2))
	require.Zero(t, s.Stats().BackedOff)
}

func TestRunOnce_ListError(t *testing.T) {
	n := newFakeNotifier()
	s := New(n, fakeBranches{err: errors.New("no db")}, &fakeSweeper{}, Config{})
	s.RunOnce(context.Background())
	require.Equal(t, int64(1), s.Stats().TotalErrors)
}

func TestSweep(t *testing.T) {
	sw := &fakeSweeper{}
	s := New(newFakeNotifier(), branches(), sw, Config{})
	s.Sweep(context.Background())
	require.Equal(t, int64(1), sw.calls.Load())
	require.Equal(t, int64(3), s.Stats().ItemsSynced)
	require.Equal(t, int64(1), s.Stats().SyncFailed)
	require.NotNil(t, s.Stats().LastSweepAt)
}

func TestHandleStatusChanged(t *testing.T) {
	s := New(newFakeNotifier(), branches(), &fakeSweeper{}, Config{})
	b := int64(7)

	ctx := context.Background()

	arrived := messages.NewStatusChanged(1, "A-1", &b, nil, string(models.StatusArrivedBranch), "MANUAL", 1, time.Now())
	require.NoError(t, s.HandleStatusChanged(ctx, arrived))

	other := messages.NewStatusChanged(2, "A-2", &b, nil, string(models.StatusPickedUp), "MANUAL", 1, time.Now())
	require.NoError(t, s.HandleStatusChanged(ctx, other))

	noBranch := messages.NewStatusChanged(3, "A-3", nil, nil, string(models.StatusArrivedBranch), "MANUAL", 1, time.Now())
	require.NoError(t, s.HandleStatusChanged(ctx, noBranch))

	require.Len(t, s.branchCh, 1)
	require.Equal(t, int64(7), <-s.branchCh)
}

func TestRun_TriggerAndStop(t *testing.T) {
	n := newFakeNotifier()
	sw := &fakeSweeper{}
	s := New(n, branches(1), sw, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Trigger()
	s.TriggerBranch(5)
	s.TriggerSweep()

	require.Eventually(t, func() bool {
		return n.count(1) == 1 && n.count(5) == 1 && sw.calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, s.Stats().LastTriggerAt)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRun_BadSchedule(t *testing.T) {
	s := New(newFakeNotifier(), branches(), &fakeSweeper{}, Config{NotifySchedule: "every now and then"})
	require.Error(t, s.Run(context.Background()))
}
