package service

/*
TenantService — ручной kill switch из консоли. Три шага на каждый
переключатель: строка конфига в Postgres (авторитет), Redis set
(прогрев для новых инстансов), pub/sub сигнал (мгновенная доставка
работающим планировщикам).
*/

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/infra"
	"github.com/xela07ax/tenant-agent-core/internal/killswitch"
)

type TenantToggler interface {
	SetTenantEnabled(ctx context.Context, tenantID string, enabled bool) error
}

type TenantService struct {
	repo   TenantToggler
	rdb    *redis.Client
	logger *zap.Logger
}

func NewTenantService(repo TenantToggler, rdb *redis.Client, logger *zap.Logger) *TenantService {
	return &TenantService{
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("tenant-service"),
	}
}

func (s *TenantService) Disable(ctx context.Context, tenantID string) error {
	return s.toggle(ctx, tenantID, false)
}

func (s *TenantService) Enable(ctx context.Context, tenantID string) error {
	return s.toggle(ctx, tenantID, true)
}

func (s *TenantService) toggle(ctx context.Context, tenantID string, enabled bool) error {
	if err := s.repo.SetTenantEnabled(ctx, tenantID, enabled); err != nil {
		return fmt.Errorf("console: toggle tenant %s: %w", tenantID, err)
	}

	// Redis best effort: авторитет уже обновлен, сигналы — ускорение.
	if enabled {
		if err := s.rdb.SRem(ctx, infra.RedisKeyDisabledTenants, tenantID).Err(); err != nil {
			s.logger.Warn("failed to update Redis disabled set", zap.Error(err))
		}
	} else {
		if err := s.rdb.SAdd(ctx, infra.RedisKeyDisabledTenants, tenantID).Err(); err != nil {
			s.logger.Warn("failed to update Redis disabled set", zap.Error(err))
		}
	}

	sig := killswitch.Signal{TenantID: tenantID, Disabled: !enabled}
	if err := s.rdb.Publish(ctx, infra.RedisChanKillSwitch, sig.String()).Err(); err != nil {
		s.logger.Warn("failed to publish kill switch signal", zap.Error(err))
	}

	s.logger.Info("tenant toggled",
		zap.String("tenant_id", tenantID),
		zap.Bool("enabled", enabled),
	)
	return nil
}
