package pgcargo

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking_items (
  id BIGSERIAL PRIMARY KEY,
  tracking_code VARCHAR(100) NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  branch_id BIGINT NULL,
  created_by BIGINT NOT NULL,
  current_status TEXT NOT NULL,
  weight NUMERIC(10,2) NULL,
  origin_arrival_at TIMESTAMPTZ NULL,
  branch_arrival_at TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  notified BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  deleted_at TIMESTAMPTZ NULL
)`,
		// Код уникален только среди неудалённых посылок.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tracking_items_code_active ON tracking_items(tracking_code) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_items_branch_status ON tracking_items(branch_id, current_status) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_items_created_at ON tracking_items(created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS manifest_entries (
  id BIGSERIAL PRIMARY KEY,
  tracking_code VARCHAR(100) NOT NULL UNIQUE,
  origin_arrival_at TIMESTAMPTZ NULL,
  branch_arrival_at TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS status_history (
  id BIGSERIAL PRIMARY KEY,
  tracking_item_id BIGINT NOT NULL REFERENCES tracking_items(id),
  previous_status TEXT NULL,
  new_status TEXT NOT NULL,
  changed_by BIGINT NOT NULL,
  source TEXT NOT NULL,
  note TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_item ON status_history(tracking_item_id, created_at, id)`,
		`
CREATE TABLE IF NOT EXISTS import_logs (
  id BIGSERIAL PRIMARY KEY,
  file_name VARCHAR(255) NOT NULL,
  uploaded_by BIGINT NOT NULL,
  target_status TEXT NOT NULL,
  total_rows INT NOT NULL,
  success_count INT NOT NULL,
  error_count INT NOT NULL,
  skipped_count INT NOT NULL,
  error_details JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.q.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
