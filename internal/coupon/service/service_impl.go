package service

import (
	"context"
	"strings"

	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/coupon/domain"
	"github.com/brightpane/brightpane/internal/coupon/repository"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/brightpane/brightpane/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("coupon.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCouponRequest) (domain.Coupon, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Coupon{}, domain.ErrInvalidTenant
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return domain.Coupon{}, domain.ErrInvalidCoupon
	}

	kind, err := parseCouponKind(req.Kind)
	if err != nil {
		return domain.Coupon{}, err
	}
	if req.Value <= 0 {
		return domain.Coupon{}, domain.ErrInvalidValue
	}
	if kind == domain.CouponKindPercentage && req.Value > 100 {
		return domain.Coupon{}, domain.ErrInvalidValue
	}
	if req.MaxRedemptions != nil && *req.MaxRedemptions < 1 {
		return domain.Coupon{}, domain.ErrInvalidValue
	}

	planIDs := make(datatypes.JSONSlice[int64], 0, len(req.ApplicablePlanIDs))
	for _, raw := range req.ApplicablePlanIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			return domain.Coupon{}, domain.ErrInvalidCoupon
		}
		planIDs = append(planIDs, int64(id))
	}

	now := s.clock.Now()
	coupon := domain.Coupon{
		ID:                s.genID.Generate(),
		TenantID:          tenantID,
		Code:              code,
		Kind:              kind,
		Value:             req.Value,
		ApplicablePlanIDs: planIDs,
		MaxRedemptions:    req.MaxRedemptions,
		Status:            domain.CouponStatusActive,
		ExpiresAt:         req.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Insert(ctx, s.db, &coupon); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Coupon{}, domain.ErrCouponExists
		}
		return domain.Coupon{}, err
	}

	return coupon, nil
}

func (s *Service) List(ctx context.Context) (domain.ListCouponResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListCouponResponse{}, domain.ErrInvalidTenant
	}

	coupons, err := s.repo.List(ctx, s.db, tenantID)
	if err != nil {
		return domain.ListCouponResponse{}, err
	}

	return domain.ListCouponResponse{Coupons: coupons}, nil
}

func (s *Service) Disable(ctx context.Context, id string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}

	couponID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrCouponNotFound
	}

	existing, err := s.repo.FindByID(ctx, s.db, tenantID, couponID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrCouponNotFound
	}

	return s.repo.UpdateStatus(ctx, s.db, tenantID, couponID, domain.CouponStatusDisabled, s.clock.Now())
}

// Validate checks the rejection conditions in a fixed order: missing, not
// active, expired, exhausted, not applicable to the plan.
func (s *Service) Validate(ctx context.Context, code string, planID snowflake.ID) (domain.ValidationResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ValidationResult{}, domain.ErrInvalidTenant
	}

	coupon, err := s.repo.FindByCode(ctx, s.db, tenantID, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if coupon == nil {
		return domain.ValidationResult{Valid: false, Reason: domain.ReasonNotFound}, nil
	}

	if coupon.Status != domain.CouponStatusActive {
		return domain.ValidationResult{Valid: false, Reason: domain.ReasonNotActive}, nil
	}

	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(s.clock.Now()) {
		return domain.ValidationResult{Valid: false, Reason: domain.ReasonExpired}, nil
	}

	if coupon.MaxRedemptions != nil && coupon.RedemptionCount >= *coupon.MaxRedemptions {
		return domain.ValidationResult{Valid: false, Reason: domain.ReasonExhausted}, nil
	}

	if !coupon.AppliesToPlan(planID) {
		return domain.ValidationResult{Valid: false, Reason: domain.ReasonNotApplicable}, nil
	}

	return domain.ValidationResult{Valid: true, Coupon: coupon}, nil
}

func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, couponID snowflake.ID) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}

	applied, err := s.repo.IncrementRedemption(ctx, tx, tenantID, couponID, s.clock.Now())
	if err != nil {
		return err
	}
	if !applied {
		return domain.ErrCouponExhausted
	}
	return nil
}

func parseCouponKind(value string) (domain.CouponKind, error) {
	kind := domain.CouponKind(strings.TrimSpace(value))
	switch kind {
	case domain.CouponKindPercentage,
		domain.CouponKindFixedAmount,
		domain.CouponKindFreeMonths,
		domain.CouponKindTrialExtension:
		return kind, nil
	default:
		return "", domain.ErrInvalidCouponKind
	}
}
