package pgcargo

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const itemColumns = `
  id, tracking_code, description, branch_id, created_by,
  current_status, weight,
  origin_arrival_at, branch_arrival_at, delivered_at,
  notified, created_at, updated_at, deleted_at`

func scanItem(row pgx.Row) (*models.TrackingItem, error) {
	var it models.TrackingItem
	var weight decimal.NullDecimal
	if err := row.Scan(
		&it.ID, &it.TrackingCode, &it.Description, &it.BranchID, &it.CreatedBy,
		&it.CurrentStatus, &weight,
		&it.OriginArrivalAt, &it.BranchArrivalAt, &it.DeliveredAt,
		&it.Notified, &it.CreatedAt, &it.UpdatedAt, &it.DeletedAt,
	); err != nil {
		return nil, err
	}
	if weight.Valid {
		w := weight.Decimal
		it.Weight = &w
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]*models.TrackingItem, error) {
	defer rows.Close()

	out := make([]*models.TrackingItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracking item")
		}
		out = append(out, it)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func nullWeight(w *decimal.Decimal) decimal.NullDecimal {
	if w == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *w, Valid: true}
}

func (s *Storage) CreateItem(ctx context.Context, item *models.TrackingItem) error {
	now := time.Now().UTC()
	err := s.q.QueryRow(ctx, `
INSERT INTO tracking_items (
  tracking_code, description, branch_id, created_by,
  current_status, weight,
  origin_arrival_at, branch_arrival_at, delivered_at,
  notified, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING id, created_at, updated_at
`, item.TrackingCode, item.Description, item.BranchID, item.CreatedBy,
		item.CurrentStatus, nullWeight(item.Weight),
		item.OriginArrivalAt, item.BranchArrivalAt, item.DeliveredAt,
		item.Notified, now,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if isUniqueViolation(err) {
		return errors.Wrapf(models.ErrConflict, "tracking code %q", item.TrackingCode)
	}
	return errors.Wrap(err, "insert tracking item")
}

func (s *Storage) GetItem(ctx context.Context, id int64, branchScope *int64) (*models.TrackingItem, error) {
	it, err := scanItem(s.q.QueryRow(ctx, `
SELECT`+itemColumns+`
FROM tracking_items
WHERE id = $1 AND deleted_at IS NULL
  AND ($2::BIGINT IS NULL OR branch_id = $2)
`, id, branchScope))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "tracking item %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking item")
	}
	return it, nil
}

func (s *Storage) FindActiveByCode(ctx context.Context, code string) (*models.TrackingItem, error) {
	it, err := scanItem(s.q.QueryRow(ctx, `
SELECT`+itemColumns+`
FROM tracking_items
WHERE tracking_code = $1 AND deleted_at IS NULL
`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "tracking code %q", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking item by code")
	}
	return it, nil
}

func (s *Storage) LockItemsByCode(ctx context.Context, code string) ([]*models.TrackingItem, error) {
	q := `
SELECT` + itemColumns + `
FROM tracking_items
WHERE tracking_code = $1 AND deleted_at IS NULL
ORDER BY id`
	if s.inTx {
		q += `
FOR UPDATE`
	}

	rows, err := s.q.Query(ctx, q, code)
	if err != nil {
		return nil, errors.Wrap(err, "lock tracking items")
	}
	return collectItems(rows)
}

func (s *Storage) ListItems(ctx context.Context, f models.ItemFilter) ([]*models.TrackingItem, int, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.CodeLike != "" {
		where = append(where, "tracking_code ILIKE "+arg("%"+f.CodeLike+"%"))
	}
	if f.Status != "" {
		where = append(where, "current_status = "+arg(f.Status))
	}
	if f.BranchID != nil {
		where = append(where, "branch_id = "+arg(*f.BranchID))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.q.QueryRow(ctx, `SELECT count(*) FROM tracking_items WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count tracking items")
	}

	page := f.Page.Normalize()
	limit := arg(page.Limit)
	offset := arg(page.Offset())
	rows, err := s.q.Query(ctx, `
SELECT`+itemColumns+`
FROM tracking_items
WHERE `+cond+`
ORDER BY created_at DESC, id DESC
LIMIT `+limit+` OFFSET `+offset, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select tracking items")
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Storage) CountByStatus(ctx context.Context, branchScope *int64) ([]models.StatusCount, error) {
	rows, err := s.q.Query(ctx, `
SELECT current_status, count(*)
FROM tracking_items
WHERE deleted_at IS NULL
  AND ($1::BIGINT IS NULL OR branch_id = $1)
GROUP BY current_status
`, branchScope)
	if err != nil {
		return nil, errors.Wrap(err, "count by status")
	}
	defer rows.Close()

	out := make([]models.StatusCount, 0)
	for rows.Next() {
		var c models.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, errors.Wrap(err, "scan status count")
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpdateItem: compare-and-set по current_status. Пишутся только поля патча,
// notified не трогается; даты из FillDates ложатся только в пустые колонки.
func (s *Storage) UpdateItem(ctx context.Context, id int64, expected models.TrackingStatus, p models.ItemPatch) (*models.TrackingItem, error) {
	it, err := scanItem(s.q.QueryRow(ctx, `
UPDATE tracking_items
SET current_status = $3,
    weight = COALESCE($4, weight),
    branch_id = COALESCE(branch_id, $5),
    origin_arrival_at = COALESCE($6, origin_arrival_at, $9),
    branch_arrival_at = COALESCE($7, branch_arrival_at, $10),
    delivered_at = COALESCE($8, delivered_at, $11),
    updated_at = now()
WHERE id = $1 AND current_status = $2 AND deleted_at IS NULL
RETURNING `+itemColumns,
		id, expected,
		p.Status, nullWeight(p.Weight), p.BranchIfUnset,
		p.SetDates.OriginArrivalAt, p.SetDates.BranchArrivalAt, p.SetDates.DeliveredAt,
		p.FillDates.OriginArrivalAt, p.FillDates.BranchArrivalAt, p.FillDates.DeliveredAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrStaleStatus, "tracking item %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update tracking item")
	}
	return it, nil
}

func (s *Storage) FillItemMilestones(ctx context.Context, id int64, dates models.MilestoneDates) (bool, error) {
	tag, err := s.q.Exec(ctx, `
UPDATE tracking_items
SET origin_arrival_at = COALESCE(origin_arrival_at, $2),
    branch_arrival_at = COALESCE(branch_arrival_at, $3),
    delivered_at = COALESCE(delivered_at, $4),
    updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
  AND (
    (origin_arrival_at IS NULL AND $2::TIMESTAMPTZ IS NOT NULL) OR
    (branch_arrival_at IS NULL AND $3::TIMESTAMPTZ IS NOT NULL) OR
    (delivered_at IS NULL AND $4::TIMESTAMPTZ IS NOT NULL)
  )
`, id, dates.OriginArrivalAt, dates.BranchArrivalAt, dates.DeliveredAt)
	if err != nil {
		return false, errors.Wrap(err, "fill item milestones")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) SoftDeleteItem(ctx context.Context, id, ownerID int64, at time.Time) error {
	tag, err := s.q.Exec(ctx, `
UPDATE tracking_items
SET deleted_at = $3, updated_at = $3
WHERE id = $1 AND created_by = $2 AND deleted_at IS NULL
`, id, ownerID, at)
	if err != nil {
		return errors.Wrap(err, "soft delete tracking item")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "tracking item %d", id)
	}
	return nil
}

func (s *Storage) ListUnnotifiedArrivals(ctx context.Context, branchID int64) ([]*models.TrackingItem, error) {
	rows, err := s.q.Query(ctx, `
SELECT`+itemColumns+`
FROM tracking_items
WHERE branch_id = $1 AND current_status = $2 AND notified = FALSE AND deleted_at IS NULL
ORDER BY created_by, id
`, branchID, models.StatusArrivedBranch)
	if err != nil {
		return nil, errors.Wrap(err, "select unnotified arrivals")
	}
	return collectItems(rows)
}

func (s *Storage) MarkNotified(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.q.Exec(ctx, `
UPDATE tracking_items SET notified = TRUE, updated_at = now()
WHERE id = ANY($1)
`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "mark notified")
	}
	return int(tag.RowsAffected()), nil
}
