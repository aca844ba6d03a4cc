package trackings

import (
	"context"
	"log/slog"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/events"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
)

// Register создаёт посылку. Начальный статус и даты берутся из мастер-листа,
// если по коду уже есть запись.
func (s *Service) Register(ctx context.Context, in RegisterInput, actor models.Actor) (*models.TrackingItem, error) {
	code, err := NormalizeCode(in.TrackingCode)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Valid() {
		return nil, errors.Wrapf(models.ErrForbidden, "role %q", actor.Role)
	}

	var item *models.TrackingItem
	var rec *models.StatusHistoryRecord
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		_, err := tx.FindActiveByCode(ctx, code)
		if err == nil {
			return errors.Wrapf(models.ErrConflict, "tracking code %q already exists", code)
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		entry, err := tx.GetManifestEntry(ctx, code)
		if err != nil {
			return err
		}

		item = &models.TrackingItem{
			TrackingCode:  code,
			Description:   in.Description,
			BranchID:      actor.BranchID,
			CreatedBy:     actor.ID,
			CurrentStatus: models.StatusRegistered,
		}
		if entry != nil {
			item.FillMissing(entry.MilestoneDates)
			item.CurrentStatus = entry.MostAdvancedStatus()
		}
		if err := tx.CreateItem(ctx, item); err != nil {
			return err
		}

		rec = &models.StatusHistoryRecord{
			TrackingItemID: item.ID,
			NewStatus:      item.CurrentStatus,
			ChangedBy:      actor.ID,
			Source:         models.SourceManual,
			CreatedAt:      s.now(),
		}
		return tx.AppendHistory(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("tracking item registered", "item_id", item.ID, "code", code, "status", item.CurrentStatus, "actor_id", actor.ID)
	s.events.StatusChanged(ctx, events.Change{Item: item, Record: rec})
	return item, nil
}

// UpdateStatus: строгий ручной переход, только вперёд, с проверкой роли.
// Порядок проверок: NotFound, Forbidden, InvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, itemID int64, in UpdateStatusInput, actor models.Actor) (*models.TrackingItem, error) {
	if !in.Status.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "status %q", in.Status)
	}
	if err := validateWeight(in.Weight); err != nil {
		return nil, err
	}

	item, err := s.scopedItem(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}
	if !actor.CanSetStatus(in.Status) {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s cannot set %s", actor.Role, in.Status)
	}
	prev := item.CurrentStatus
	if !models.IsForward(prev, in.Status) {
		return nil, errors.Wrapf(models.ErrInvalidTransition, "cannot change status from %s to %s", prev, in.Status)
	}

	now := s.now()
	patch := models.ItemPatch{
		Status:    in.Status,
		Weight:    in.Weight,
		FillDates: milestoneFill(in.Status, now),
	}
	rec := &models.StatusHistoryRecord{
		TrackingItemID: item.ID,
		PreviousStatus: &prev,
		NewStatus:      in.Status,
		ChangedBy:      actor.ID,
		Source:         models.SourceManual,
		Note:           in.Note,
		CreatedAt:      now,
	}
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		updated, err := tx.UpdateItem(ctx, item.ID, prev, patch)
		if err != nil {
			return err
		}
		item = updated
		return tx.AppendHistory(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("tracking status updated", "item_id", item.ID, "from", prev, "to", in.Status, "actor_id", actor.ID)
	s.events.StatusChanged(ctx, events.Change{Item: item, Record: rec})
	return item, nil
}

// QuickUpdateByCode: обновление по скану штрихкода. Не-прямой переход
// молча игнорируется, вес и филиал при этом всё равно применяются.
func (s *Service) QuickUpdateByCode(ctx context.Context, in QuickUpdateInput, actor models.Actor) (*models.TrackingItem, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	code, err := NormalizeCode(in.TrackingCode)
	if err != nil {
		return nil, err
	}
	target := models.StatusArrivedBranch
	if in.Status != nil {
		target = *in.Status
	}
	if !target.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "status %q", target)
	}
	if err := validateWeight(in.Weight); err != nil {
		return nil, err
	}

	item, err := s.store.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	prev := item.CurrentStatus
	patch := models.ItemPatch{Status: prev, Weight: in.Weight}
	dirty := in.Weight != nil

	statusChanged := models.IsForward(prev, target)
	if statusChanged {
		patch.Status = target
		patch.FillDates = milestoneFill(target, now)
		dirty = true
	}
	if item.BranchID == nil && actor.BranchID != nil {
		patch.BranchIfUnset = actor.BranchID
		dirty = true
	}
	if !dirty {
		return item, nil
	}

	var rec *models.StatusHistoryRecord
	if statusChanged {
		note := quickUpdateNote
		rec = &models.StatusHistoryRecord{
			TrackingItemID: item.ID,
			PreviousStatus: &prev,
			NewStatus:      target,
			ChangedBy:      actor.ID,
			Source:         models.SourceManual,
			Note:           &note,
			CreatedAt:      now,
		}
	}

	err = s.store.InTx(ctx, func(tx storage.Store) error {
		updated, err := tx.UpdateItem(ctx, item.ID, prev, patch)
		if err != nil {
			return err
		}
		item = updated
		if rec == nil {
			return nil
		}
		return tx.AppendHistory(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	if rec != nil {
		slog.Info("tracking quick update", "item_id", item.ID, "from", prev, "to", target, "actor_id", actor.ID)
		s.events.StatusChanged(ctx, events.Change{Item: item, Record: rec})
	}
	return item, nil
}

// Cancel: явная отмена из любого статуса, кроме уже отменённого.
func (s *Service) Cancel(ctx context.Context, itemID int64, note *string, actor models.Actor) (*models.TrackingItem, error) {
	item, err := s.scopedItem(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	prev := item.CurrentStatus
	if prev == models.StatusCancelled {
		return nil, errors.Wrapf(models.ErrInvalidTransition, "tracking item %d is already cancelled", itemID)
	}

	rec := &models.StatusHistoryRecord{
		TrackingItemID: item.ID,
		PreviousStatus: &prev,
		NewStatus:      models.StatusCancelled,
		ChangedBy:      actor.ID,
		Source:         models.SourceManual,
		Note:           note,
		CreatedAt:      s.now(),
	}
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		updated, err := tx.UpdateItem(ctx, item.ID, prev, models.ItemPatch{Status: models.StatusCancelled})
		if err != nil {
			return err
		}
		item = updated
		return tx.AppendHistory(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("tracking item cancelled", "item_id", item.ID, "from", prev, "actor_id", actor.ID)
	s.events.StatusChanged(ctx, events.Change{Item: item, Record: rec})
	return item, nil
}

// Delete: мягкое удаление; удалить может только создатель.
func (s *Service) Delete(ctx context.Context, itemID int64, actor models.Actor) error {
	if err := s.store.SoftDeleteItem(ctx, itemID, actor.ID, s.now()); err != nil {
		return err
	}
	slog.Info("tracking item deleted", "item_id", itemID, "actor_id", actor.ID)
	return nil
}
