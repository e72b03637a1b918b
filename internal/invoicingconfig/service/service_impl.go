package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/metron/internal/clock"
	"github.com/railzwaylabs/metron/internal/config"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	"github.com/railzwaylabs/metron/internal/invoicingconfig/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.Config
	clock clock.Clock
	repo  invoicedomain.Repository
	cache *redis.Client
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	Repo  invoicedomain.Repository
	Cache *redis.Client
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoicingconfig.service"),
		cfg:   p.Cfg,
		clock: p.Clock,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) Get(ctx context.Context, orgID snowflake.ID) (invoicedomain.InvoicingConfig, error) {
	if cached, ok := s.fromCache(ctx, orgID); ok {
		return cached, nil
	}

	stored, err := s.repo.FindConfig(ctx, s.db, orgID)
	if err != nil {
		return invoicedomain.InvoicingConfig{}, err
	}

	resolved := s.defaults(orgID)
	if stored != nil {
		resolved = *stored
	}
	s.toCache(ctx, resolved)
	return resolved, nil
}

func (s *Service) Put(ctx context.Context, orgID snowflake.ID, gracePeriodHours int, provider string) (invoicedomain.InvoicingConfig, error) {
	if gracePeriodHours < 0 {
		return invoicedomain.InvoicingConfig{}, domain.ErrInvalidGracePeriod
	}
	if provider == "" {
		provider = s.cfg.Invoicing.DefaultProvider
	}

	item := invoicedomain.InvoicingConfig{
		OrgID:            orgID,
		GracePeriodHours: gracePeriodHours,
		Provider:         provider,
		UpdatedAt:        s.clock.Now(ctx),
	}
	if err := s.repo.UpsertConfig(ctx, s.db, &item); err != nil {
		return invoicedomain.InvoicingConfig{}, err
	}

	// Drop the stale entry rather than writing through, so a failed DEL only
	// costs one extra DB read on the next Get.
	if err := s.cache.Del(ctx, s.cacheKey(orgID)).Err(); err != nil {
		s.log.Warn("invalidate config cache", zap.String("org_id", orgID.String()), zap.Error(err))
	}
	return item, nil
}

func (s *Service) defaults(orgID snowflake.ID) invoicedomain.InvoicingConfig {
	return invoicedomain.InvoicingConfig{
		OrgID:            orgID,
		GracePeriodHours: s.cfg.Invoicing.DefaultGracePeriodHours,
		Provider:         s.cfg.Invoicing.DefaultProvider,
	}
}

func (s *Service) fromCache(ctx context.Context, orgID snowflake.ID) (invoicedomain.InvoicingConfig, bool) {
	raw, err := s.cache.Get(ctx, s.cacheKey(orgID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("read config cache", zap.String("org_id", orgID.String()), zap.Error(err))
		}
		return invoicedomain.InvoicingConfig{}, false
	}

	var item invoicedomain.InvoicingConfig
	if err := json.Unmarshal(raw, &item); err != nil {
		return invoicedomain.InvoicingConfig{}, false
	}
	return item, true
}

func (s *Service) toCache(ctx context.Context, item invoicedomain.InvoicingConfig) {
	raw, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(item.OrgID), raw, s.cfg.Invoicing.ConfigCacheTTL).Err(); err != nil {
		s.log.Warn("write config cache", zap.String("org_id", item.OrgID.String()), zap.Error(err))
	}
}

func (s *Service) cacheKey(orgID snowflake.ID) string {
	return fmt.Sprintf("invoicingconfig:%s", orgID)
}
