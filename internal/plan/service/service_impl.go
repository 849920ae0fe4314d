package service

import (
	"context"
	"strings"

	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/plan/domain"
	"github.com/brightpane/brightpane/internal/plan/repository"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/brightpane/brightpane/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
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
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePlanRequest) (domain.Plan, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Plan{}, domain.ErrInvalidTenant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Plan{}, domain.ErrInvalidPlan
	}

	model, err := parsePricingModel(req.PricingModel)
	if err != nil {
		return domain.Plan{}, err
	}

	if req.MonthlyAmount < 0 || req.YearlyAmount < 0 {
		return domain.Plan{}, domain.ErrInvalidAmount
	}
	if req.PerSeatAmount != nil && *req.PerSeatAmount < 0 {
		return domain.Plan{}, domain.ErrInvalidAmount
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := s.clock.Now()
	plan := domain.Plan{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		Name:          name,
		Code:          code,
		PricingModel:  model,
		MonthlyAmount: req.MonthlyAmount,
		YearlyAmount:  req.YearlyAmount,
		PerSeatAmount: req.PerSeatAmount,
		Currency:      currency,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Plan{}, domain.ErrPlanExists
		}
		return domain.Plan{}, err
	}

	return plan, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Plan, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Plan{}, domain.ErrInvalidTenant
	}

	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.Plan{}, domain.ErrNotFound
	}

	item, err := s.repo.FindByID(ctx, s.db, tenantID, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	if item == nil {
		return domain.Plan{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context) (domain.ListPlanResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListPlanResponse{}, domain.ErrInvalidTenant
	}

	plans, err := s.repo.List(ctx, s.db, tenantID)
	if err != nil {
		return domain.ListPlanResponse{}, err
	}

	return domain.ListPlanResponse{Plans: plans}, nil
}

func parsePricingModel(value string) (domain.PricingModel, error) {
	model := domain.PricingModel(strings.TrimSpace(value))
	switch model {
	case domain.PricingModelFlat, domain.PricingModelPerSeat, domain.PricingModelUsageMetered:
		return model, nil
	default:
		return "", domain.ErrInvalidPricingModel
	}
}
