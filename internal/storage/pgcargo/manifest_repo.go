package pgcargo

import (
	"context"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const manifestColumns = `
  id, tracking_code, origin_arrival_at, branch_arrival_at, delivered_at, created_at, updated_at`

func scanManifest(row pgx.Row) (*models.ManifestEntry, error) {
	var e models.ManifestEntry
	if err := row.Scan(
		&e.ID, &e.TrackingCode,
		&e.OriginArrivalAt, &e.BranchArrivalAt, &e.DeliveredAt,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func milestoneColumn(m models.Milestone) (string, bool) {
	switch m {
	case models.MilestoneOriginWarehouse:
		return "origin_arrival_at", true
	case models.MilestoneBranch:
		return "branch_arrival_at", true
	case models.MilestoneDelivery:
		return "delivered_at", true
	}
	return "", false
}

func (s *Storage) GetManifestEntry(ctx context.Context, code string) (*models.ManifestEntry, error) {
	e, err := scanManifest(s.q.QueryRow(ctx, `
SELECT`+manifestColumns+`
FROM manifest_entries
WHERE tracking_code = $1
`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select manifest entry")
	}
	return e, nil
}

// UpsertManifest перезаписывает дату вехи всегда, без merge-if-absent.
func (s *Storage) UpsertManifest(ctx context.Context, code string, milestone models.Milestone, at time.Time) (*models.ManifestEntry, error) {
	now := time.Now().UTC()

	if milestone == "" {
		e, err := scanManifest(s.q.QueryRow(ctx, `
INSERT INTO manifest_entries (tracking_code, created_at, updated_at)
VALUES ($1,$2,$2)
ON CONFLICT (tracking_code) DO UPDATE SET updated_at = manifest_entries.updated_at
RETURNING`+manifestColumns, code, now))
		return e, errors.Wrap(err, "upsert manifest entry")
	}

	col, ok := milestoneColumn(milestone)
	if !ok {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "milestone %q", milestone)
	}

	e, err := scanManifest(s.q.QueryRow(ctx, `
INSERT INTO manifest_entries (tracking_code, `+col+`, created_at, updated_at)
VALUES ($1,$2,$3,$3)
ON CONFLICT (tracking_code) DO UPDATE SET
  `+col+` = EXCLUDED.`+col+`,
  updated_at = EXCLUDED.updated_at
RETURNING`+manifestColumns, code, at, now))
	if err != nil {
		return nil, errors.Wrap(err, "upsert manifest entry")
	}
	return e, nil
}

func (s *Storage) ListManifestEntries(ctx context.Context, page models.Page) ([]*models.ManifestEntry, int, error) {
	var total int
	if err := s.q.QueryRow(ctx, `SELECT count(*) FROM manifest_entries`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count manifest entries")
	}

	page = page.Normalize()
	rows, err := s.q.Query(ctx, `
SELECT`+manifestColumns+`
FROM manifest_entries
ORDER BY id
LIMIT $1 OFFSET $2
`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "select manifest entries")
	}
	defer rows.Close()

	out := make([]*models.ManifestEntry, 0, page.Limit)
	for rows.Next() {
		e, err := scanManifest(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan manifest entry")
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, 0, errors.Wrap(rows.Err(), "rows")
	}
	return out, total, nil
}
