package reconcile

import (
	"context"
	"log/slog"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/events"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
)

type MasterUpdateResult struct {
	Entry   *models.ManifestEntry  `json:"entry"`
	Updated []*models.TrackingItem `json:"updated"`
}

// UpdateMasterStatus ставит дату вехи в мастер-листе и продвигает все активные
// посылки с этим кодом, которые ещё не дошли до target.
func (s *Service) UpdateMasterStatus(ctx context.Context, code string, target models.TrackingStatus, actor models.Actor) (*MasterUpdateResult, error) {
	if !actor.IsStaff() {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	if err := validTarget(target); err != nil {
		return nil, err
	}

	now := s.now()
	res := &MasterUpdateResult{Updated: make([]*models.TrackingItem, 0)}
	var changes []events.Change

	err = s.store.InTx(ctx, func(tx storage.Store) error {
		res.Updated = res.Updated[:0]
		changes = changes[:0]

		milestone, _ := target.Milestone()
		entry, err := tx.UpsertManifest(ctx, code, milestone, now)
		if err != nil {
			return err
		}
		res.Entry = entry

		items, err := tx.LockItemsByCode(ctx, code)
		if err != nil {
			return err
		}
		for _, item := range items {
			if !models.IsForward(item.CurrentStatus, target) {
				continue
			}
			ch, err := s.advanceItem(ctx, tx, item, target, entry, models.SourceManual, actor, now)
			if err != nil {
				return err
			}
			res.Updated = append(res.Updated, ch.Item)
			changes = append(changes, ch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("master status updated", "code", code, "target", target, "items_synced", len(res.Updated), "actor_id", actor.ID)
	s.events.StatusChanged(ctx, changes...)
	return res, nil
}
