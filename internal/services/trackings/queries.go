package trackings

import (
	"context"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

// scopedItem: сотрудник видит только свой филиал, пользователь только свои посылки.
// Чужая посылка неотличима от отсутствующей.
func (s *Service) scopedItem(ctx context.Context, itemID int64, actor models.Actor) (*models.TrackingItem, error) {
	if actor.Role == models.RoleUser {
		item, err := s.store.GetItem(ctx, itemID, nil)
		if err != nil {
			return nil, err
		}
		if item.CreatedBy != actor.ID {
			return nil, errors.Wrapf(models.ErrNotFound, "tracking item %d", itemID)
		}
		return item, nil
	}

	scope, ok := scopeOf(actor)
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "tracking item %d", itemID)
	}
	return s.store.GetItem(ctx, itemID, scope)
}

func (s *Service) Get(ctx context.Context, itemID int64, actor models.Actor) (*ItemDetails, error) {
	item, err := s.scopedItem(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}
	hist, err := s.store.ListHistory(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return &ItemDetails{Item: item, History: hist}, nil
}

func (s *Service) History(ctx context.Context, itemID int64, actor models.Actor) ([]*models.StatusHistoryRecord, error) {
	item, err := s.scopedItem(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, item.ID)
}

// SearchByCode доступен любой роли: клиент проверяет свой трек-код.
func (s *Service) SearchByCode(ctx context.Context, code string) (*ItemDetails, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	item, err := s.store.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	hist, err := s.store.ListHistory(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return &ItemDetails{Item: item, History: hist}, nil
}

func (s *Service) List(ctx context.Context, f models.ItemFilter, actor models.Actor) ([]*models.TrackingItem, models.PageMeta, error) {
	if err := requireStaff(actor); err != nil {
		return nil, models.PageMeta{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, models.PageMeta{}, errors.Wrapf(models.ErrInvalidArgument, "status %q", f.Status)
	}
	scope, ok := scopeOf(actor)
	if !ok {
		return nil, models.PageMeta{}, errors.Wrap(models.ErrForbidden, "staff member has no branch")
	}
	if scope != nil {
		f.BranchID = scope
	}
	f.Page = f.Page.Normalize()

	items, total, err := s.store.ListItems(ctx, f)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	return items, models.NewPageMeta(f.Page, total), nil
}

// Dashboard: количество посылок по статусам, кэшируется на dashboardTTL.
func (s *Service) Dashboard(ctx context.Context, actor models.Actor) ([]models.StatusCount, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	scope, ok := scopeOf(actor)
	if !ok {
		return nil, errors.Wrap(models.ErrForbidden, "staff member has no branch")
	}

	key := dashboardKey(scope)
	if counts, ok := s.cachedDashboard(ctx, key); ok {
		return counts, nil
	}
	counts, err := s.store.CountByStatus(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.storeDashboard(ctx, key, counts)
	return counts, nil
}
