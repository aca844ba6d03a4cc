package memcargo

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDates(d models.MilestoneDates) models.MilestoneDates {
	return models.MilestoneDates{
		OriginArrivalAt: cloneTime(d.OriginArrivalAt),
		BranchArrivalAt: cloneTime(d.BranchArrivalAt),
		DeliveredAt:     cloneTime(d.DeliveredAt),
	}
}

func cloneItem(it *models.TrackingItem) *models.TrackingItem {
	c := *it
	if it.BranchID != nil {
		b := *it.BranchID
		c.BranchID = &b
	}
	if it.Weight != nil {
		w := *it.Weight
		c.Weight = &w
	}
	c.MilestoneDates = cloneDates(it.MilestoneDates)
	c.DeletedAt = cloneTime(it.DeletedAt)
	return &c
}

func sameBranch(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}

func (st *state) activeByCode(code string) []*models.TrackingItem {
	out := make([]*models.TrackingItem, 0, 1)
	for _, it := range st.items {
		if it.DeletedAt == nil && it.TrackingCode == code {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Storage) CreateItem(ctx context.Context, item *models.TrackingItem) error {
	return s.write(func(st *state) error {
		if len(st.activeByCode(item.TrackingCode)) > 0 {
			return errors.Wrapf(models.ErrConflict, "tracking code %q", item.TrackingCode)
		}
		now := time.Now().UTC()
		st.itemSeq++
		item.ID = st.itemSeq
		item.CreatedAt = now
		item.UpdatedAt = now
		st.items[item.ID] = cloneItem(item)
		return nil
	})
}

func (s *Storage) GetItem(ctx context.Context, id int64, branchScope *int64) (*models.TrackingItem, error) {
	var out *models.TrackingItem
	err := s.read(func(st *state) error {
		it, ok := st.items[id]
		if !ok || it.DeletedAt != nil || (branchScope != nil && !sameBranch(it.BranchID, branchScope)) {
			return errors.Wrapf(models.ErrNotFound, "tracking item %d", id)
		}
		out = cloneItem(it)
		return nil
	})
	return out, err
}

func (s *Storage) FindActiveByCode(ctx context.Context, code string) (*models.TrackingItem, error) {
	var out *models.TrackingItem
	err := s.read(func(st *state) error {
		found := st.activeByCode(code)
		if len(found) == 0 {
			return errors.Wrapf(models.ErrNotFound, "tracking code %q", code)
		}
		out = cloneItem(found[0])
		return nil
	})
	return out, err
}

// LockItemsByCode: блокировку строк заменяет txMu транзакции.
func (s *Storage) LockItemsByCode(ctx context.Context, code string) ([]*models.TrackingItem, error) {
	var out []*models.TrackingItem
	err := s.read(func(st *state) error {
		for _, it := range st.activeByCode(code) {
			out = append(out, cloneItem(it))
		}
		return nil
	})
	return out, err
}

func (s *Storage) ListItems(ctx context.Context, f models.ItemFilter) ([]*models.TrackingItem, int, error) {
	var matched []*models.TrackingItem
	_ = s.read(func(st *state) error {
		like := strings.ToLower(f.CodeLike)
		for _, it := range st.items {
			if it.DeletedAt != nil {
				continue
			}
			if like != "" && !strings.Contains(strings.ToLower(it.TrackingCode), like) {
				continue
			}
			if f.Status != "" && it.CurrentStatus != f.Status {
				continue
			}
			if f.BranchID != nil && !sameBranch(it.BranchID, f.BranchID) {
				continue
			}
			matched = append(matched, cloneItem(it))
		}
		return nil
	})

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	page := f.Page.Normalize()
	from := min(page.Offset(), total)
	to := min(from+page.Limit, total)
	return matched[from:to], total, nil
}

func (s *Storage) CountByStatus(ctx context.Context, branchScope *int64) ([]models.StatusCount, error) {
	counts := map[models.TrackingStatus]int{}
	_ = s.read(func(st *state) error {
		for _, it := range st.items {
			if it.DeletedAt != nil {
				continue
			}
			if branchScope != nil && !sameBranch(it.BranchID, branchScope) {
				continue
			}
			counts[it.CurrentStatus]++
		}
		return nil
	})

	out := make([]models.StatusCount, 0, len(counts))
	for st, n := range counts {
		out = append(out, models.StatusCount{Status: st, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status.Order() < out[j].Status.Order() })
	return out, nil
}

func (s *Storage) UpdateItem(ctx context.Context, id int64, expected models.TrackingStatus, p models.ItemPatch) (*models.TrackingItem, error) {
	var out *models.TrackingItem
	err := s.write(func(st *state) error {
		cur, ok := st.items[id]
		if !ok || cur.DeletedAt != nil || cur.CurrentStatus != expected {
			return errors.Wrapf(models.ErrStaleStatus, "tracking item %d", id)
		}
		next := cloneItem(cur)
		p.Apply(next)
		next.UpdatedAt = time.Now().UTC()
		st.items[id] = next
		out = cloneItem(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) FillItemMilestones(ctx context.Context, id int64, dates models.MilestoneDates) (bool, error) {
	changed := false
	err := s.write(func(st *state) error {
		it, ok := st.items[id]
		if !ok || it.DeletedAt != nil {
			return nil
		}
		if it.MilestoneDates.FillMissing(dates) {
			it.UpdatedAt = time.Now().UTC()
			changed = true
		}
		return nil
	})
	return changed, err
}

func (s *Storage) SoftDeleteItem(ctx context.Context, id, ownerID int64, at time.Time) error {
	return s.write(func(st *state) error {
		it, ok := st.items[id]
		if !ok || it.DeletedAt != nil || it.CreatedBy != ownerID {
			return errors.Wrapf(models.ErrNotFound, "tracking item %d", id)
		}
		it.DeletedAt = &at
		it.UpdatedAt = at
		return nil
	})
}

func (s *Storage) ListUnnotifiedArrivals(ctx context.Context, branchID int64) ([]*models.TrackingItem, error) {
	var out []*models.TrackingItem
	_ = s.read(func(st *state) error {
		for _, it := range st.items {
			if it.DeletedAt != nil || it.Notified || it.CurrentStatus != models.StatusArrivedBranch {
				continue
			}
			if it.BranchID == nil || *it.BranchID != branchID {
				continue
			}
			out = append(out, cloneItem(it))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedBy != out[j].CreatedBy {
			return out[i].CreatedBy < out[j].CreatedBy
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Storage) MarkNotified(ctx context.Context, ids []int64) (int, error) {
	n := 0
	err := s.write(func(st *state) error {
		now := time.Now().UTC()
		for _, id := range ids {
			if it, ok := st.items[id]; ok {
				it.Notified = true
				it.UpdatedAt = now
				n++
			}
		}
		return nil
	})
	return n, err
}
