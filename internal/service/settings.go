package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/pricing"
	"github.com/minato/storefront-api/internal/repository"
)

const (
	settingFreeShippingThreshold = "free_shipping_threshold"
	settingShippingFee           = "shipping_fee"
	settingPointAwardRate        = "point_award_rate"

	settingCacheTTL = 60 * time.Second
)

// SettingsService reads site-wide configuration with a Redis read-through
// cache. Pricing rules degrade to the defaults when the store is unreachable
// so a settings outage never blocks checkout.
type SettingsService struct {
	repo        repository.SettingsRepository
	redisClient *redis.Client
	log         *slog.Logger
}

func NewSettingsService(repo repository.SettingsRepository, redisClient *redis.Client, log *slog.Logger) *SettingsService {
	return &SettingsService{repo: repo, redisClient: redisClient, log: log}
}

func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	cacheKey := "setting:" + key
	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			return cached, nil
		}
	}

	value, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}

	if s.redisClient != nil && value != "" {
		s.redisClient.Set(ctx, cacheKey, value, settingCacheTTL)
	}
	return value, nil
}

func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "setting:"+key)
	}
	return nil
}

func (s *SettingsService) All(ctx context.Context) ([]model.SiteSetting, error) {
	return s.repo.All(ctx)
}

func (s *SettingsService) int64Setting(ctx context.Context, key string, fallback int64) int64 {
	value, err := s.Get(ctx, key)
	if err != nil {
		s.log.Warn("read setting failed, using default", "key", key, "error", err)
		return fallback
	}
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		s.log.Warn("setting is not a number, using default", "key", key, "value", value)
		return fallback
	}
	return n
}

// Rules returns the one canonical set of pricing parameters. Every flow that
// computes shipping, discounts, or points goes through this.
func (s *SettingsService) Rules(ctx context.Context) pricing.Rules {
	defaults := pricing.DefaultRules()
	return pricing.Rules{
		FreeShippingThreshold: s.int64Setting(ctx, settingFreeShippingThreshold, defaults.FreeShippingThreshold),
		ShippingFee:           s.int64Setting(ctx, settingShippingFee, defaults.ShippingFee),
		PointAwardRate:        s.int64Setting(ctx, settingPointAwardRate, defaults.PointAwardRate),
	}
}
