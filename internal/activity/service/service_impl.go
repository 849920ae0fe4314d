package service

import (
	"context"
	"strings"

	"github.com/brightpane/brightpane/internal/activity/domain"
	"github.com/brightpane/brightpane/internal/activity/repository"
	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry domain.Entry) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	if entry.SubscriptionID == 0 || entry.Type == "" {
		return domain.ErrInvalidActivity
	}

	actor := strings.TrimSpace(entry.Actor)
	if actor == "" {
		actor = "system"
	}

	if tx == nil {
		tx = s.db
	}

	return s.repo.Insert(ctx, tx, &domain.Activity{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		SubscriptionID: entry.SubscriptionID,
		Type:           entry.Type,
		Description:    entry.Description,
		Actor:          actor,
		Metadata:       entry.Metadata,
		CreatedAt:      s.clock.Now(),
	})
}

func (s *Service) List(ctx context.Context, subscriptionID snowflake.ID, limit int) (domain.ListActivityResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListActivityResponse{}, domain.ErrInvalidTenant
	}

	if limit <= 0 || limit > domain.DefaultListLimit {
		limit = domain.DefaultListLimit
	}

	activities, err := s.repo.ListBySubscription(ctx, s.db, tenantID, subscriptionID, limit)
	if err != nil {
		return domain.ListActivityResponse{}, err
	}
	return domain.ListActivityResponse{Activities: activities}, nil
}
