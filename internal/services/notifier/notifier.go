// Package notifier sends one branch-arrival invoice per customer and marks
// the items notified only after the message is confirmed delivered.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/CargoTrack/internal/integrations/telegram"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Tariffs interface {
	PricePerKg(ctx context.Context) decimal.Decimal
	ExchangeRate(ctx context.Context) decimal.Decimal
}

// Limiter считает сообщения в один чат за окно; retryAfter: до конца окна.
type Limiter interface {
	AllowChat(ctx context.Context, chatID string, limit int64, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

type Config struct {
	ChatID string
	// RateLimit сообщений за RateWindow в один чат; 0: без ограничения.
	RateLimit  int64
	RateWindow time.Duration
}

type Result struct {
	UsersNotified int `json:"usersNotified"`
	ItemsNotified int `json:"itemsNotified"`
	// DeferredUsers: группы, отложенные до следующего запуска из-за лимита.
	DeferredUsers int `json:"deferredUsers"`
}

type Service struct {
	items   storage.Items
	dir     storage.Directory
	tariffs Tariffs
	sender  telegram.Sender
	limiter Limiter
	cfg     Config
}

func New(items storage.Items, dir storage.Directory, tariffs Tariffs, sender telegram.Sender, limiter Limiter, cfg Config) *Service {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &Service{
		items:   items,
		dir:     dir,
		tariffs: tariffs,
		sender:  sender,
		limiter: limiter,
		cfg:     cfg,
	}
}

// NotifyActorBranch: ручной запуск сотрудником для своего филиала.
func (s *Service) NotifyActorBranch(ctx context.Context, actor models.Actor) (Result, error) {
	if !actor.IsStaff() {
		return Result{}, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	if actor.BranchID == nil {
		return Result{}, errors.Wrap(models.ErrInvalidArgument, "actor has no branch")
	}
	return s.NotifyBranchArrivals(ctx, *actor.BranchID)
}

func (s *Service) NotifyBranchArrivals(ctx context.Context, branchID int64) (Result, error) {
	var res Result

	branch, err := s.dir.GetBranch(ctx, branchID)
	if errors.Is(err, models.ErrNotFound) {
		slog.Warn("notify: branch not found", "branch_id", branchID)
		return res, nil
	}
	if err != nil {
		return res, errors.Wrapf(err, "get branch %d", branchID)
	}

	items, err := s.items.ListUnnotifiedArrivals(ctx, branchID)
	if err != nil {
		return res, errors.Wrap(err, "list unnotified arrivals")
	}
	if len(items) == 0 {
		return res, nil
	}

	groups := groupByOwner(items)
	price := s.tariffs.PricePerKg(ctx)
	rate := s.tariffs.ExchangeRate(ctx)

	for i, g := range groups {
		user, err := s.dir.GetUser(ctx, g.userID)
		if errors.Is(err, models.ErrNotFound) {
			slog.Warn("notify: owner not found, group skipped", "user_id", g.userID, "items", len(g.items))
			continue
		}
		if err != nil {
			return res, errors.Wrapf(err, "get user %d", g.userID)
		}

		if ok, wait := s.allow(ctx); !ok {
			res.DeferredUsers = 1 + s.resolvableOwners(ctx, groups[i+1:])
			slog.Info("notify: rate limit reached", "branch_id", branchID, "deferred", res.DeferredUsers, "retry_after", wait)
			break
		}

		text := buildInvoice(user, g.items, branch, price, rate)
		if !s.sender.Send(ctx, s.cfg.ChatID, text, branch.TelegramThreadID) {
			continue
		}

		ids := make([]int64, 0, len(g.items))
		for _, it := range g.items {
			ids = append(ids, it.ID)
		}
		if _, err := s.items.MarkNotified(ctx, ids); err != nil {
			// сообщение ушло, но отметка нет: при следующем запуске будет повтор
			slog.Error("notify: mark notified failed", "user_id", g.userID, "err", err)
			continue
		}
		res.UsersNotified++
		res.ItemsNotified += len(g.items)
	}

	slog.Info("notify: branch done", "branch_id", branchID,
		"users", res.UsersNotified, "items", res.ItemsNotified, "deferred", res.DeferredUsers)
	return res, nil
}

// allow: недоступный Redis не блокирует рассылку.
func (s *Service) allow(ctx context.Context) (bool, time.Duration) {
	if s.limiter == nil || s.cfg.RateLimit <= 0 {
		return true, 0
	}
	ok, wait, err := s.limiter.AllowChat(ctx, s.cfg.ChatID, s.cfg.RateLimit, s.cfg.RateWindow)
	if err != nil {
		slog.Warn("notify: rate limiter unavailable", "err", err)
		return true, 0
	}
	return ok, wait
}

// resolvableOwners: сколько из оставшихся групп реально получили бы сообщение.
// Группы без владельца в справочнике не откладываются, их просто пропускают.
func (s *Service) resolvableOwners(ctx context.Context, groups []ownerGroup) int {
	n := 0
	for _, g := range groups {
		if _, err := s.dir.GetUser(ctx, g.userID); errors.Is(err, models.ErrNotFound) {
			continue
		}
		n++
	}
	return n
}

type ownerGroup struct {
	userID int64
	items  []*models.TrackingItem
}

// groupByOwner сохраняет порядок первого появления владельца.
func groupByOwner(items []*models.TrackingItem) []ownerGroup {
	idx := make(map[int64]int)
	var out []ownerGroup
	for _, it := range items {
		i, ok := idx[it.CreatedBy]
		if !ok {
			i = len(out)
			idx[it.CreatedBy] = i
			out = append(out, ownerGroup{userID: it.CreatedBy})
		}
		out[i].items = append(out[i].items, it)
	}
	return out
}
