package memcargo

import (
	"context"
	"sort"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

func cloneManifest(e *models.ManifestEntry) *models.ManifestEntry {
	c := *e
	c.MilestoneDates = cloneDates(e.MilestoneDates)
	return &c
}

func (s *Storage) GetManifestEntry(ctx context.Context, code string) (*models.ManifestEntry, error) {
	var out *models.ManifestEntry
	_ = s.read(func(st *state) error {
		if e, ok := st.manifest[code]; ok {
			out = cloneManifest(e)
		}
		return nil
	})
	return out, nil
}

func (s *Storage) UpsertManifest(ctx context.Context, code string, milestone models.Milestone, at time.Time) (*models.ManifestEntry, error) {
	switch milestone {
	case "", models.MilestoneOriginWarehouse, models.MilestoneBranch, models.MilestoneDelivery:
	default:
		return nil, errors.Wrapf(models.ErrInvalidArgument, "milestone %q", milestone)
	}

	var out *models.ManifestEntry
	err := s.write(func(st *state) error {
		now := time.Now().UTC()
		e, ok := st.manifest[code]
		if !ok {
			st.manifestSeq++
			e = &models.ManifestEntry{ID: st.manifestSeq, TrackingCode: code, CreatedAt: now, UpdatedAt: now}
			st.manifest[code] = e
		}
		if milestone != "" {
			v := at
			e.Set(milestone, &v)
			e.UpdatedAt = now
		}
		out = cloneManifest(e)
		return nil
	})
	return out, err
}

func (s *Storage) ListManifestEntries(ctx context.Context, page models.Page) ([]*models.ManifestEntry, int, error) {
	var all []*models.ManifestEntry
	_ = s.read(func(st *state) error {
		for _, e := range st.manifest {
			all = append(all, cloneManifest(e))
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	page = page.Normalize()
	from := min(page.Offset(), total)
	to := min(from+page.Limit, total)
	return all[from:to], total, nil
}

func (s *Storage) AppendHistory(ctx context.Context, rec *models.StatusHistoryRecord) error {
	return s.write(func(st *state) error {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		st.historySeq++
		rec.ID = st.historySeq
		c := *rec
		st.history = append(st.history, &c)
		return nil
	})
}

func (s *Storage) ListHistory(ctx context.Context, itemID int64) ([]*models.StatusHistoryRecord, error) {
	out := make([]*models.StatusHistoryRecord, 0)
	_ = s.read(func(st *state) error {
		for _, r := range st.history {
			if r.TrackingItemID == itemID {
				c := *r
				out = append(out, &c)
			}
		}
		return nil
	})
	// history уже в порядке вставки; стабильная сортировка на случай явного CreatedAt
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) CreateImportLog(ctx context.Context, log *models.ImportLog) error {
	return s.write(func(st *state) error {
		if log.CreatedAt.IsZero() {
			log.CreatedAt = time.Now().UTC()
		}
		st.importSeq++
		log.ID = st.importSeq
		c := *log
		c.Errors = append([]models.ImportIssue(nil), log.Errors...)
		c.Skipped = append([]models.ImportIssue(nil), log.Skipped...)
		st.imports = append(st.imports, &c)
		return nil
	})
}

func (s *Storage) GetImportLog(ctx context.Context, id int64) (*models.ImportLog, error) {
	var out *models.ImportLog
	err := s.read(func(st *state) error {
		for _, l := range st.imports {
			if l.ID == id {
				c := *l
				out = &c
				return nil
			}
		}
		return errors.Wrapf(models.ErrNotFound, "import log %d", id)
	})
	return out, err
}

func (s *Storage) ListImportLogs(ctx context.Context, page models.Page) ([]*models.ImportLog, int, error) {
	var all []*models.ImportLog
	_ = s.read(func(st *state) error {
		for i := len(st.imports) - 1; i >= 0; i-- {
			c := *st.imports[i]
			all = append(all, &c)
		}
		return nil
	})

	total := len(all)
	page = page.Normalize()
	from := min(page.Offset(), total)
	to := min(from+page.Limit, total)
	return all[from:to], total, nil
}
