package pgcargo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// importDetails: содержимое error_details (JSONB).
type importDetails struct {
	Errors  []models.ImportIssue `json:"errors"`
	Skipped []models.ImportIssue `json:"skipped"`
}

const importColumns = `
  id, file_name, uploaded_by, target_status,
  total_rows, success_count, error_count, skipped_count,
  error_details, created_at`

func scanImportLog(row pgx.Row) (*models.ImportLog, error) {
	var l models.ImportLog
	var raw []byte
	if err := row.Scan(
		&l.ID, &l.FileName, &l.UploadedBy, &l.TargetStatus,
		&l.TotalRows, &l.SuccessCount, &l.ErrorCount, &l.SkippedCount,
		&raw, &l.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		var d importDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, errors.Wrap(err, "decode import details")
		}
		l.Errors = d.Errors
		l.Skipped = d.Skipped
	}
	return &l, nil
}

func (s *Storage) CreateImportLog(ctx context.Context, log *models.ImportLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(importDetails{Errors: log.Errors, Skipped: log.Skipped})
	if err != nil {
		return errors.Wrap(err, "encode import details")
	}

	err = s.q.QueryRow(ctx, `
INSERT INTO import_logs (
  file_name, uploaded_by, target_status,
  total_rows, success_count, error_count, skipped_count,
  error_details, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id
`, log.FileName, log.UploadedBy, log.TargetStatus,
		log.TotalRows, log.SuccessCount, log.ErrorCount, log.SkippedCount,
		raw, log.CreatedAt,
	).Scan(&log.ID)
	return errors.Wrap(err, "insert import log")
}

func (s *Storage) GetImportLog(ctx context.Context, id int64) (*models.ImportLog, error) {
	l, err := scanImportLog(s.q.QueryRow(ctx, `SELECT`+importColumns+` FROM import_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "import log %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select import log")
	}
	return l, nil
}

func (s *Storage) ListImportLogs(ctx context.Context, page models.Page) ([]*models.ImportLog, int, error) {
	var total int
	if err := s.q.QueryRow(ctx, `SELECT count(*) FROM import_logs`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count import logs")
	}

	page = page.Normalize()
	rows, err := s.q.Query(ctx, `
SELECT`+importColumns+`
FROM import_logs
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "select import logs")
	}
	defer rows.Close()

	out := make([]*models.ImportLog, 0, page.Limit)
	for rows.Next() {
		l, err := scanImportLog(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan import log")
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, 0, errors.Wrap(rows.Err(), "rows")
	}
	return out, total, nil
}
