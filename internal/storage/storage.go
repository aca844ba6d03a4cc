// Package storage declares the ledger repositories the services work against.
// pgcargo implements them on Postgres, memcargo in memory.
package storage

import (
	"context"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
)

type Items interface {
	// CreateItem inserts a new item and fills ID and timestamps.
	// Returns models.ErrConflict if an active item already holds the code.
	CreateItem(ctx context.Context, item *models.TrackingItem) error
	// GetItem returns an active item; branchScope != nil restricts to that branch.
	GetItem(ctx context.Context, id int64, branchScope *int64) (*models.TrackingItem, error)
	FindActiveByCode(ctx context.Context, code string) (*models.TrackingItem, error)
	// LockItemsByCode returns all active items with the code, row-locked when in a transaction.
	LockItemsByCode(ctx context.Context, code string) ([]*models.TrackingItem, error)
	ListItems(ctx context.Context, f models.ItemFilter) ([]*models.TrackingItem, int, error)
	CountByStatus(ctx context.Context, branchScope *int64) ([]models.StatusCount, error)
	// UpdateItem applies the patch, but only if the stored status still equals
	// expected; otherwise models.ErrStaleStatus. Columns outside the patch,
	// notified included, are left as stored. Returns the updated row.
	UpdateItem(ctx context.Context, id int64, expected models.TrackingStatus, p models.ItemPatch) (*models.TrackingItem, error)
	// FillItemMilestones sets only the dates that are still NULL on the item.
	FillItemMilestones(ctx context.Context, id int64, dates models.MilestoneDates) (bool, error)
	SoftDeleteItem(ctx context.Context, id, ownerID int64, at time.Time) error
	ListUnnotifiedArrivals(ctx context.Context, branchID int64) ([]*models.TrackingItem, error)
	MarkNotified(ctx context.Context, ids []int64) (int, error)
}

type Manifest interface {
	// GetManifestEntry returns nil, nil when there is no entry for the code.
	GetManifestEntry(ctx context.Context, code string) (*models.ManifestEntry, error)
	// UpsertManifest creates the entry if absent and, if milestone is set,
	// overwrites that milestone date with at.
	UpsertManifest(ctx context.Context, code string, milestone models.Milestone, at time.Time) (*models.ManifestEntry, error)
	ListManifestEntries(ctx context.Context, page models.Page) ([]*models.ManifestEntry, int, error)
}

type History interface {
	AppendHistory(ctx context.Context, rec *models.StatusHistoryRecord) error
	// ListHistory returns the records of an item, oldest first.
	ListHistory(ctx context.Context, itemID int64) ([]*models.StatusHistoryRecord, error)
}

type Imports interface {
	CreateImportLog(ctx context.Context, log *models.ImportLog) error
	GetImportLog(ctx context.Context, id int64) (*models.ImportLog, error)
	ListImportLogs(ctx context.Context, page models.Page) ([]*models.ImportLog, int, error)
}

type Store interface {
	Items
	Manifest
	History
	Imports
	// InTx runs fn inside one transaction; fn's store must be used for all writes.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// Directory: справочник пользователей, филиалов и настроек. Ядро его только читает,
// кроме настроек.
type Directory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetBranch(ctx context.Context, id int64) (*models.Branch, error)
	ListActiveBranches(ctx context.Context) ([]*models.Branch, error)
	// GetSetting returns ok=false when the key is not set.
	GetSetting(ctx context.Context, key string) (string, bool, error)
	ListSettings(ctx context.Context) ([]models.Setting, error)
	UpsertSetting(ctx context.Context, s models.Setting) error
}
