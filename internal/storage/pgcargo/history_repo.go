package pgcargo

import (
	"context"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

// AppendHistory: только вставка, записи истории не меняются.
func (s *Storage) AppendHistory(ctx context.Context, rec *models.StatusHistoryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	err := s.q.QueryRow(ctx, `
INSERT INTO status_history (
  tracking_item_id, previous_status, new_status, changed_by, source, note, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`, rec.TrackingItemID, rec.PreviousStatus, rec.NewStatus, rec.ChangedBy, rec.Source, rec.Note, rec.CreatedAt).Scan(&rec.ID)
	return errors.Wrap(err, "insert status history")
}

func (s *Storage) ListHistory(ctx context.Context, itemID int64) ([]*models.StatusHistoryRecord, error) {
	rows, err := s.q.Query(ctx, `
SELECT id, tracking_item_id, previous_status, new_status, changed_by, source, note, created_at
FROM status_history
WHERE tracking_item_id = $1
ORDER BY created_at, id
`, itemID)
	if err != nil {
		return nil, errors.Wrap(err, "select status history")
	}
	defer rows.Close()

	out := make([]*models.StatusHistoryRecord, 0)
	for rows.Next() {
		var r models.StatusHistoryRecord
		if err := rows.Scan(
			&r.ID, &r.TrackingItemID, &r.PreviousStatus, &r.NewStatus,
			&r.ChangedBy, &r.Source, &r.Note, &r.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan status history")
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
