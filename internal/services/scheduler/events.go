package scheduler

import (
	"context"
	"log/slog"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/models"
)

// HandleStatusChanged: обработчик для kafka.Consumer. Прибытие в филиал
// ставит филиал в очередь рассылки.
func (s *Scheduler) HandleStatusChanged(ctx context.Context, ev messages.StatusChanged) error {
	if models.TrackingStatus(ev.NewStatus) != models.StatusArrivedBranch || ev.BranchID == nil {
		return nil
	}
	slog.Debug("scheduler: branch arrival event", "branch_id", *ev.BranchID, "item_id", ev.TrackingItemID)
	s.TriggerBranch(*ev.BranchID)
	return nil
}
