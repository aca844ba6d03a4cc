// Package settings reads tariff settings (price per kg, exchange rate) with
// a Redis read-through cache.
package settings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/cache"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	keyPrefix = "settings:"

	maxKeyLen   = 50
	maxValueLen = 255
)

var (
	DefaultPricePerKg   = decimal.NewFromInt(4)
	DefaultExchangeRate = decimal.NewFromInt(500)
)

// missing кладётся в кэш для отсутствующего ключа, чтобы не ходить в базу каждый раз.
const missing = "\x00"

type Service struct {
	dir   storage.Directory
	cache cache.BytesCache
	ttl   time.Duration
}

func New(dir storage.Directory, c cache.BytesCache, ttl time.Duration) *Service {
	return &Service{dir: dir, cache: c, ttl: ttl}
}

func (s *Service) PricePerKg(ctx context.Context) decimal.Decimal {
	return s.decimal(ctx, models.SettingPricePerKg, DefaultPricePerKg)
}

func (s *Service) ExchangeRate(ctx context.Context) decimal.Decimal {
	return s.decimal(ctx, models.SettingExchangeRate, DefaultExchangeRate)
}

// decimal никогда не падает: ошибка хранилища или мусор в значении дают def.
func (s *Service) decimal(ctx context.Context, key string, def decimal.Decimal) decimal.Decimal {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		slog.Warn("settings read failed, using default", "key", key, "err", err)
		return def
	}
	if !ok {
		return def
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || v.IsNegative() {
		slog.Warn("settings value is not a number, using default", "key", key, "value", raw)
		return def
	}
	return v
}

// Get returns ok=false when the key is not set.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	if v, hit := s.cached(ctx, key); hit {
		if v == missing {
			return "", false, nil
		}
		return v, true, nil
	}

	v, ok, err := s.dir.GetSetting(ctx, key)
	if err != nil {
		return "", false, errors.Wrapf(err, "get setting %s", key)
	}
	if ok {
		s.remember(ctx, key, v)
	} else {
		s.remember(ctx, key, missing)
	}
	return v, ok, nil
}

func (s *Service) All(ctx context.Context, actor models.Actor) ([]models.Setting, error) {
	if !actor.IsStaff() {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	out, err := s.dir.ListSettings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list settings")
	}
	return out, nil
}

func (s *Service) Set(ctx context.Context, key, value string, actor models.Actor) (models.Setting, error) {
	if !actor.IsSuperAdmin() {
		return models.Setting{}, errors.Wrapf(models.ErrForbidden, "role %s", actor.Role)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || len(key) > maxKeyLen {
		return models.Setting{}, errors.Wrapf(models.ErrInvalidArgument, "key must be 1..%d chars", maxKeyLen)
	}
	if len(value) > maxValueLen {
		return models.Setting{}, errors.Wrapf(models.ErrInvalidArgument, "value is longer than %d", maxValueLen)
	}
	if key == models.SettingPricePerKg || key == models.SettingExchangeRate {
		if _, err := decimal.NewFromString(value); err != nil {
			return models.Setting{}, errors.Wrapf(models.ErrInvalidArgument, "%s must be a number", key)
		}
	}

	st := models.Setting{Key: key, Value: value}
	if err := s.dir.UpsertSetting(ctx, st); err != nil {
		return models.Setting{}, errors.Wrapf(err, "upsert setting %s", key)
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, keyPrefix+key); err != nil {
			slog.Warn("settings cache invalidate failed", "key", key, "err", err)
		}
	}
	return st, nil
}

func (s *Service) cached(ctx context.Context, key string) (string, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return "", false
	}
	b, ok, err := s.cache.Get(ctx, keyPrefix+key)
	if err != nil || !ok {
		return "", false
	}
	return string(b), true
}

func (s *Service) remember(ctx context.Context, key, v string) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	_ = s.cache.Set(ctx, keyPrefix+key, []byte(v), s.ttl)
}
