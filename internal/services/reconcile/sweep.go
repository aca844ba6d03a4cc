package reconcile

import (
	"context"
	"log/slog"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

// SyncAll проходит весь мастер-лист и дописывает в посылки недостающие даты вех.
// Уже заполненные даты, статус и история не трогаются. Ошибка по отдельному
// коду или посылке логируется и учитывается в Failed, проход продолжается;
// прерывает его только ошибка чтения самого мастер-листа.
func (s *Service) SyncAll(ctx context.Context) (models.SyncResult, error) {
	var res models.SyncResult
	page := models.Page{Number: 1, Limit: s.sweepPageSize}.Normalize()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		entries, _, err := s.store.ListManifestEntries(ctx, page)
		if err != nil {
			return res, errors.Wrap(err, "list manifest")
		}

		for _, e := range entries {
			s.syncEntry(ctx, e, &res)
		}

		if len(entries) < page.Limit {
			break
		}
		page.Number++
	}

	slog.Info("manifest sweep complete", "items_touched", res.ItemsUpdated, "failed", res.Failed)
	return res, nil
}

func (s *Service) syncEntry(ctx context.Context, e *models.ManifestEntry, res *models.SyncResult) {
	items, err := s.store.LockItemsByCode(ctx, e.TrackingCode)
	if err != nil {
		slog.Error("manifest sweep: load items", "code", e.TrackingCode, "error", err.Error())
		res.Failed++
		return
	}
	for _, item := range items {
		changed, err := s.store.FillItemMilestones(ctx, item.ID, e.MilestoneDates)
		if err != nil {
			slog.Error("manifest sweep: fill dates", "code", e.TrackingCode, "item_id", item.ID, "error", err.Error())
			res.Failed++
			continue
		}
		if changed {
			res.ItemsUpdated++
		}
	}
}

// SyncAllAs: SyncAll с проверкой роли, для ручного запуска.
func (s *Service) SyncAllAs(ctx context.Context, actor models.Actor) (models.SyncResult, error) {
	if !actor.IsSuperAdmin() {
		return models.SyncResult{}, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	return s.SyncAll(ctx)
}
