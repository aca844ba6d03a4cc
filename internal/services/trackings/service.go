package trackings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/cache"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/events"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	maxCodeLen = 100

	quickUpdateNote = "scan quick update"
)

type Service struct {
	store  storage.Store
	events *events.Emitter

	cache        cache.BytesCache
	dashboardTTL time.Duration

	now func() time.Time
}

func New(store storage.Store, ev *events.Emitter, c cache.BytesCache, dashboardTTL time.Duration) *Service {
	return &Service{
		store:        store,
		events:       ev,
		cache:        c,
		dashboardTTL: dashboardTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	TrackingCode string
	Description  string
}

type UpdateStatusInput struct {
	Status models.TrackingStatus
	Weight *decimal.Decimal
	Note   *string
}

type QuickUpdateInput struct {
	TrackingCode string
	Status       *models.TrackingStatus
	Weight       *decimal.Decimal
}

// ItemDetails: посылка вместе с историей (старые записи первыми).
type ItemDetails struct {
	Item    *models.TrackingItem          `json:"item"`
	History []*models.StatusHistoryRecord `json:"history"`
}

func NormalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.Wrap(models.ErrInvalidArgument, "trackingCode is required")
	}
	if len(code) > maxCodeLen {
		return "", errors.Wrapf(models.ErrInvalidArgument, "trackingCode is longer than %d", maxCodeLen)
	}
	return code, nil
}

func validateWeight(w *decimal.Decimal) error {
	if w != nil && w.IsNegative() {
		return errors.Wrap(models.ErrInvalidArgument, "weight must not be negative")
	}
	return nil
}

// scopeOf: для сотрудника без филиала возвращает ok=false, ему не видно ничего.
func scopeOf(actor models.Actor) (scope *int64, ok bool) {
	if actor.IsSuperAdmin() {
		return nil, true
	}
	if actor.BranchID == nil {
		return nil, false
	}
	return actor.BranchID, true
}

func requireStaff(actor models.Actor) error {
	if !actor.IsStaff() {
		return errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	return nil
}

// milestoneFill: дата вехи статуса для ItemPatch.FillDates. Хранилище ставит
// её, только если дата ещё пустая.
func milestoneFill(status models.TrackingStatus, at time.Time) models.MilestoneDates {
	var d models.MilestoneDates
	if m, ok := status.Milestone(); ok {
		d.Set(m, &at)
	}
	return d
}

func dashboardKey(scope *int64) string {
	if scope == nil {
		return "dashboard:all"
	}
	return fmt.Sprintf("dashboard:branch:%d", *scope)
}

func (s *Service) cachedDashboard(ctx context.Context, key string) ([]models.StatusCount, bool) {
	if s.cache == nil || s.dashboardTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var out []models.StatusCount
	if json.Unmarshal(b, &out) != nil {
		return nil, false
	}
	return out, true
}

func (s *Service) storeDashboard(ctx context.Context, key string, counts []models.StatusCount) {
	if s.cache == nil || s.dashboardTTL <= 0 {
		return
	}
	b, _ := json.Marshal(counts)
	_ = s.cache.Set(ctx, key, b, s.dashboardTTL)
}
