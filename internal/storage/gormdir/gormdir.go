// Package gormdir is the Postgres-backed account directory (users, branches,
// settings), accessed through gorm.
package gormdir

import (
	"context"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID               int64  `gorm:"primaryKey"`
	Name             string `gorm:"size:255"`
	UserCode         string `gorm:"size:64;index"`
	TelegramUsername string `gorm:"size:64"`
	Role             string `gorm:"size:16;not null;default:USER"`
	BranchID         *int64 `gorm:"index"`
}

func (userRow) TableName() string { return "users" }

type branchRow struct {
	ID               int64  `gorm:"primaryKey"`
	Name             string `gorm:"size:255;not null"`
	IsActive         bool   `gorm:"not null"`
	TelegramThreadID *int64
}

func (branchRow) TableName() string { return "branches" }

type settingRow struct {
	Key         string `gorm:"primaryKey;size:64"`
	Value       string `gorm:"not null"`
	Description string
}

func (settingRow) TableName() string { return "settings" }

type Repository struct {
	db *gorm.DB
}

var _ storage.Directory = (*Repository)(nil)

func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open directory db")
	}
	r := New(db)
	if err := r.Migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Migrate() error {
	return errors.Wrap(r.db.AutoMigrate(&userRow{}, &branchRow{}, &settingRow{}), "migrate directory")
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(models.ErrNotFound, "user %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &models.User{
		ID:               row.ID,
		Name:             row.Name,
		UserCode:         row.UserCode,
		TelegramUsername: row.TelegramUsername,
		Role:             models.Role(row.Role),
		BranchID:         row.BranchID,
	}, nil
}

func toBranch(row branchRow) *models.Branch {
	return &models.Branch{
		ID:               row.ID,
		Name:             row.Name,
		IsActive:         row.IsActive,
		TelegramThreadID: row.TelegramThreadID,
	}
}

func (r *Repository) GetBranch(ctx context.Context, id int64) (*models.Branch, error) {
	var row branchRow
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(models.ErrNotFound, "branch %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select branch")
	}
	return toBranch(row), nil
}

func (r *Repository) ListActiveBranches(ctx context.Context) ([]*models.Branch, error) {
	var rows []branchRow
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "select branches")
	}
	out := make([]*models.Branch, 0, len(rows))
	for _, row := range rows {
		out = append(out, toBranch(row))
	}
	return out, nil
}

func (r *Repository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var row settingRow
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select setting")
	}
	return row.Value, true, nil
}

func (r *Repository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	var rows []settingRow
	if err := r.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "select settings")
	}
	out := make([]models.Setting, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Setting{Key: row.Key, Value: row.Value, Description: row.Description})
	}
	return out, nil
}

func (r *Repository) UpsertSetting(ctx context.Context, s models.Setting) error {
	row := settingRow{Key: s.Key, Value: s.Value, Description: s.Description}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description"}),
	}).Create(&row).Error
	return errors.Wrap(err, "upsert setting")
}

// SaveUser и SaveBranch заполняют справочник; в обычной работе его ведёт внешняя система.
func (r *Repository) SaveUser(ctx context.Context, u *models.User) error {
	row := userRow{
		ID:               u.ID,
		Name:             u.Name,
		UserCode:         u.UserCode,
		TelegramUsername: u.TelegramUsername,
		Role:             string(u.Role),
		BranchID:         u.BranchID,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return errors.Wrap(err, "save user")
	}
	u.ID = row.ID
	return nil
}

func (r *Repository) SaveBranch(ctx context.Context, b *models.Branch) error {
	row := branchRow{ID: b.ID, Name: b.Name, IsActive: b.IsActive, TelegramThreadID: b.TelegramThreadID}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return errors.Wrap(err, "save branch")
	}
	b.ID = row.ID
	return nil
}
