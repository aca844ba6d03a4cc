// Package reconcile keeps the master manifest and per-user tracking items in
// step: bulk imports, manual master updates and the non-destructive sweep.
package reconcile

import (
	"context"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/events"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
)

const (
	ReasonInternalError = "INTERNAL_ERROR"

	defaultSweepPageSize = 500
)

type Service struct {
	store  storage.Store
	events *events.Emitter

	sweepPageSize int
	now           func() time.Time
}

func New(store storage.Store, ev *events.Emitter) *Service {
	return &Service{
		store:         store,
		events:        ev,
		sweepPageSize: defaultSweepPageSize,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// validTarget: импорт и мастер-обновление не умеют отменять посылки.
func validTarget(target models.TrackingStatus) error {
	if !target.Valid() || target == models.StatusCancelled {
		return errors.Wrapf(models.ErrInvalidArgument, "target status %q", target)
	}
	return nil
}

// advance: патч перехода в target; дата вехи берётся из мастер-листа и
// перезаписывает дату посылки.
func advance(target models.TrackingStatus, entry *models.ManifestEntry) models.ItemPatch {
	p := models.ItemPatch{Status: target}
	if m, ok := target.Milestone(); ok && entry != nil {
		p.SetDates.Set(m, entry.Get(m))
	}
	return p
}

func (s *Service) MasterEntries(ctx context.Context, page models.Page, actor models.Actor) ([]*models.ManifestEntry, models.PageMeta, error) {
	if !actor.IsStaff() {
		return nil, models.PageMeta{}, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	page = page.Normalize()
	entries, total, err := s.store.ListManifestEntries(ctx, page)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	return entries, models.NewPageMeta(page, total), nil
}

// MasterEntry возвращает nil, nil, если кода в мастер-листе нет.
func (s *Service) MasterEntry(ctx context.Context, code string, actor models.Actor) (*models.ManifestEntry, error) {
	if !actor.IsStaff() {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	return s.store.GetManifestEntry(ctx, code)
}

func (s *Service) ImportLogs(ctx context.Context, page models.Page, actor models.Actor) ([]*models.ImportLog, models.PageMeta, error) {
	if !actor.IsSuperAdmin() {
		return nil, models.PageMeta{}, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	page = page.Normalize()
	logs, total, err := s.store.ListImportLogs(ctx, page)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	return logs, models.NewPageMeta(page, total), nil
}

func (s *Service) ImportLog(ctx context.Context, id int64, actor models.Actor) (*models.ImportLog, error) {
	if !actor.IsSuperAdmin() {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	return s.store.GetImportLog(ctx, id)
}
