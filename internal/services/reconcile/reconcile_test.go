package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/trackings"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/BearBump/CargoTrack/internal/storage/memcargo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	branchA = int64(1)

	user  = models.Actor{ID: 10, Role: models.RoleUser, BranchID: &branchA}
	staff = models.Actor{ID: 20, Role: models.RoleAdmin, BranchID: &branchA}
	super = models.Actor{ID: 30, Role: models.RoleSuperAdmin}
)

// faultyStore ломает обработку отдельных кодов.
type faultyStore struct {
	storage.Store
	panicCode string
	errCode   string
	fillErrID int64
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return f.Store.InTx(ctx, func(tx storage.Store) error {
		return fn(&faultyStore{Store: tx, panicCode: f.panicCode, errCode: f.errCode, fillErrID: f.fillErrID})
	})
}

func (f *faultyStore) LockItemsByCode(ctx context.Context, code string) ([]*models.TrackingItem, error) {
	if code == f.panicCode {
		panic("boom")
	}
	if code == f.errCode {
		return nil, errors.New("db down")
	}
	return f.Store.LockItemsByCode(ctx, code)
}

func (f *faultyStore) FillItemMilestones(ctx context.Context, id int64, dates models.MilestoneDates) (bool, error) {
	if id == f.fillErrID {
		return false, errors.New("db down")
	}
	return f.Store.FillItemMilestones(ctx, id, dates)
}

type fixture struct {
	store *memcargo.Storage
	items *trackings.Service
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memcargo.New()
	return &fixture{
		store: st,
		items: trackings.New(st, nil, nil, 0),
		svc:   New(st, nil),
	}
}

func (f *fixture) register(t *testing.T, code string) *models.TrackingItem {
	t.Helper()
	it, err := f.items.Register(context.Background(), trackings.RegisterInput{TrackingCode: code}, user)
	require.NoError(t, err)
	return it
}

func rows(codes ...string) [][]string {
	out := make([][]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, []string{c})
	}
	return out
}

func TestExtractCodes(t *testing.T) {
	got := ExtractCodes([][]string{
		{"Tracking Code", "weight"},
		{"  KH-1 "},
		{},
		{""},
		{"KH-1"},
		{"kh-1"},
		{"ТРЕК"},
		{"номер"},
		{"TrackingCode"},
		{"KH-2", "x"},
	})
	require.Equal(t, []string{"KH-1", "kh-1", "KH-2"}, got)
}

func TestImport_EndToEnd_KH0001(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	it := f.register(t, "KH-0001")
	require.Equal(t, models.StatusRegistered, it.CurrentStatus)

	res, err := f.svc.Import(ctx, ImportInput{
		FileName: "batch-1.xlsx",
		Rows:     rows("трек", "KH-0001", "KH-0001"),
		Target:   models.StatusArrivedOriginWarehouse,
	}, super)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalRows)
	require.Equal(t, 1, res.SuccessCount)
	require.Equal(t, []string{"KH-0001"}, res.Success)

	got, err := f.store.GetItem(ctx, it.ID, nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusArrivedOriginWarehouse, got.CurrentStatus)

	entry, err := f.store.GetManifestEntry(ctx, "KH-0001")
	require.NoError(t, err)
	require.NotNil(t, entry.OriginArrivalAt)
	require.True(t, got.OriginArrivalAt.Equal(*entry.OriginArrivalAt))

	hist, _ := f.store.ListHistory(ctx, it.ID)
	require.Len(t, hist, 2)
	require.Equal(t, models.SourceExcelImport, hist[1].Source)
	require.Equal(t, models.StatusRegistered, *hist[1].PreviousStatus)

	res, err = f.svc.Import(ctx, ImportInput{FileName: "batch-2.xlsx", Rows: rows("KH-0001"), Target: models.StatusRegistered}, super)
	require.NoError(t, err)
	require.Equal(t, 0, res.SuccessCount)
	require.Equal(t, 1, res.SkippedCount)
	require.Contains(t, res.Skipped[0].Reason, "ARRIVED_ORIGIN_WAREHOUSE")

	hist, _ = f.store.ListHistory(ctx, it.ID)
	require.Len(t, hist, 2)

	logs, meta, err := f.svc.ImportLogs(ctx, models.Page{}, super)
	require.NoError(t, err)
	require.Equal(t, 2, meta.Total)
	require.Equal(t, "batch-2.xlsx", logs[0].FileName)
	require.Equal(t, res.Skipped, logs[0].Skipped)
}

func TestRegister_EndToEnd_KH0002(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateMasterStatus(ctx, "KH-0002", models.StatusPickedUp, staff)
	require.NoError(t, err)

	it := f.register(t, "KH-0002")
	require.Equal(t, models.StatusPickedUp, it.CurrentStatus)
	require.NotNil(t, it.DeliveredAt)

	hist, _ := f.store.ListHistory(ctx, it.ID)
	require.Len(t, hist, 1)
	require.Nil(t, hist[0].PreviousStatus)
	require.Equal(t, models.StatusPickedUp, hist[0].NewStatus)
}

func TestImport_UnknownCodeStillSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Import(ctx, ImportInput{Rows: rows("GHOST-1"), Target: models.StatusArrivedBranch}, super)
	require.NoError(t, err)
	require.Equal(t, 1, res.SuccessCount)

	entry, err := f.store.GetManifestEntry(ctx, "GHOST-1")
	require.NoError(t, err)
	require.NotNil(t, entry.BranchArrivalAt)
}

func TestImport_TargetWithoutMilestoneCreatesEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.register(t, "NM-1")

	res, err := f.svc.Import(ctx, ImportInput{Rows: rows("NM-1"), Target: models.StatusSentToDestinationCountry}, super)
	require.NoError(t, err)
	require.Equal(t, 1, res.SuccessCount)

	entry, err := f.store.GetManifestEntry(ctx, "NM-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Nil(t, entry.OriginArrivalAt)

	got, _ := f.store.GetItem(ctx, it.ID, nil)
	require.Equal(t, models.StatusSentToDestinationCountry, got.CurrentStatus)
}

func TestImport_ManifestAlwaysOverwritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	f.svc.now = func() time.Time { return first }
	_, err := f.svc.Import(ctx, ImportInput{Rows: rows("OW-1"), Target: models.StatusArrivedBranch}, super)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return second }
	_, err = f.svc.Import(ctx, ImportInput{Rows: rows("OW-1"), Target: models.StatusArrivedBranch}, super)
	require.NoError(t, err)

	entry, _ := f.store.GetManifestEntry(ctx, "OW-1")
	require.True(t, entry.BranchArrivalAt.Equal(second))
}

func TestImport_PerCodeFailuresDoNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "OK-1")
	bad := f.register(t, "ERR-1")

	svc := New(&faultyStore{Store: f.store, panicCode: "PANIC-1", errCode: "ERR-1"}, nil)
	res, err := svc.Import(ctx, ImportInput{Rows: rows("OK-1", "PANIC-1", "ERR-1"), Target: models.StatusArrivedBranch}, super)
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalRows)
	require.Equal(t, []string{"OK-1"}, res.Success)
	require.ElementsMatch(t, []models.ImportIssue{
		{Code: "PANIC-1", Reason: ReasonInternalError},
		{Code: "ERR-1", Reason: ReasonInternalError},
	}, res.Errors)

	// транзакция упавшего кода откатилась целиком
	entry, _ := f.store.GetManifestEntry(ctx, "ERR-1")
	require.Nil(t, entry)
	got, _ := f.store.GetItem(ctx, bad.ID, nil)
	require.Equal(t, models.StatusRegistered, got.CurrentStatus)
}

func TestImport_ClassificationIndependentOfOrder(t *testing.T) {
	run := func(codes ...string) *ImportResult {
		f := newFixture(t)
		ctx := context.Background()
		f.register(t, "A")
		b := f.register(t, "B")
		_, err := f.items.UpdateStatus(ctx, b.ID, trackings.UpdateStatusInput{Status: models.StatusPickedUp}, super)
		require.NoError(t, err)

		res, err := f.svc.Import(ctx, ImportInput{Rows: rows(codes...), Target: models.StatusArrivedBranch}, super)
		require.NoError(t, err)
		return res
	}

	r1 := run("A", "B", "C")
	r2 := run("C", "B", "A")
	require.ElementsMatch(t, r1.Success, r2.Success)
	require.ElementsMatch(t, r1.Skipped, r2.Skipped)
}

func TestImport_InputErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Import(ctx, ImportInput{Rows: rows("X"), Target: models.StatusArrivedBranch}, staff)
	require.True(t, errors.Is(err, models.ErrForbidden))

	_, err = f.svc.Import(ctx, ImportInput{Rows: rows("X"), Target: models.StatusCancelled}, super)
	require.True(t, errors.Is(err, models.ErrInvalidArgument))

	_, err = f.svc.ImportFile(ctx, "batch.xlsx", strings.NewReader("garbage"), models.StatusArrivedBranch, super)
	require.True(t, errors.Is(err, models.ErrInvalidArgument))
}

func TestImportFile_XLSX(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "X-1")

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetCellValue(sheet, "A1", "Номер"))
	require.NoError(t, book.SetCellValue(sheet, "A2", "X-1"))
	require.NoError(t, book.SetCellValue(sheet, "A3", "X-2"))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	res, err := f.svc.ImportFile(ctx, "arrivals.xlsx", buf, models.StatusArrivedBranch, super)
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalRows)
	require.Equal(t, 2, res.SuccessCount)

	log, err := f.svc.ImportLog(ctx, res.ImportLogID, super)
	require.NoError(t, err)
	require.Equal(t, "arrivals.xlsx", log.FileName)
}

func TestUpdateMasterStatus_SyncsItemsBehindTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.register(t, "MS-1")

	res, err := f.svc.UpdateMasterStatus(ctx, "MS-1", models.StatusArrivedBranch, staff)
	require.NoError(t, err)
	require.NotNil(t, res.Entry.BranchArrivalAt)
	require.Len(t, res.Updated, 1)
	require.True(t, res.Updated[0].BranchArrivalAt.Equal(*res.Entry.BranchArrivalAt))

	hist, _ := f.store.ListHistory(ctx, it.ID)
	require.Len(t, hist, 2)
	require.Equal(t, models.SourceManual, hist[1].Source)

	// повтор не пишет историю и не откатывает статус
	res, err = f.svc.UpdateMasterStatus(ctx, "MS-1", models.StatusArrivedOriginWarehouse, staff)
	require.NoError(t, err)
	require.Empty(t, res.Updated)
	got, _ := f.store.GetItem(ctx, it.ID, nil)
	require.Equal(t, models.StatusArrivedBranch, got.CurrentStatus)
	require.NotNil(t, got.BranchArrivalAt)

	_, err = f.svc.UpdateMasterStatus(ctx, "MS-1", models.StatusPickedUp, user)
	require.True(t, errors.Is(err, models.ErrForbidden))
}

func TestSyncAll_FillsOnlyMissingDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.sweepPageSize = 1

	own := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	manifestAt := own.Add(72 * time.Hour)

	a := f.register(t, "SW-1")
	_, err := f.store.UpdateItem(ctx, a.ID, models.StatusRegistered, models.ItemPatch{
		Status:   models.StatusRegistered,
		SetDates: models.MilestoneDates{BranchArrivalAt: &own},
	})
	require.NoError(t, err)
	f.register(t, "SW-2")

	for _, code := range []string{"SW-1", "SW-2", "SW-3"} {
		_, err := f.store.UpsertManifest(ctx, code, models.MilestoneBranch, manifestAt)
		require.NoError(t, err)
		_, err = f.store.UpsertManifest(ctx, code, models.MilestoneOriginWarehouse, manifestAt)
		require.NoError(t, err)
	}

	res, err := f.svc.SyncAll(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SyncResult{ItemsUpdated: 2}, res)

	got, _ := f.store.GetItem(ctx, a.ID, nil)
	require.True(t, got.BranchArrivalAt.Equal(own))
	require.True(t, got.OriginArrivalAt.Equal(manifestAt))
	require.Equal(t, models.StatusRegistered, got.CurrentStatus)

	hist, _ := f.store.ListHistory(ctx, a.ID)
	require.Len(t, hist, 1)

	res, err = f.svc.SyncAll(ctx)
	require.NoError(t, err)
	require.Zero(t, res.ItemsUpdated)

	_, err = f.svc.SyncAllAs(ctx, staff)
	require.True(t, errors.Is(err, models.ErrForbidden))
}

func TestSyncAll_ContinuesPastFailingItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	bad := f.register(t, "S-1")
	good := f.register(t, "S-2")
	f.register(t, "S-3")
	for _, code := range []string{"S-1", "S-2", "S-3"} {
		_, err := f.store.UpsertManifest(ctx, code, models.MilestoneOriginWarehouse, at)
		require.NoError(t, err)
	}

	svc := New(&faultyStore{Store: f.store, errCode: "S-3", fillErrID: bad.ID}, nil)
	svc.sweepPageSize = 1
	res, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	require.Equal(t, models.SyncResult{ItemsUpdated: 1, Failed: 2}, res)

	got, _ := f.store.GetItem(ctx, good.ID, nil)
	require.True(t, got.OriginArrivalAt.Equal(at))
	got, _ = f.store.GetItem(ctx, bad.ID, nil)
	require.Nil(t, got.OriginArrivalAt)
}

func TestMasterQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateMasterStatus(ctx, "Q-1", models.StatusArrivedOriginWarehouse, super)
	require.NoError(t, err)

	e, err := f.svc.MasterEntry(ctx, "Q-1", staff)
	require.NoError(t, err)
	require.NotNil(t, e)

	e, err = f.svc.MasterEntry(ctx, "Q-404", staff)
	require.NoError(t, err)
	require.Nil(t, e)

	entries, meta, err := f.svc.MasterEntries(ctx, models.Page{}, staff)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, meta.Total)

	_, _, err = f.svc.MasterEntries(ctx, models.Page{}, user)
	require.True(t, errors.Is(err, models.ErrForbidden))
}
