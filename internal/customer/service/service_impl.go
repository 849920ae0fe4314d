package service

import (
	"context"
	"strings"

	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/customer/domain"
	"github.com/brightpane/brightpane/internal/customer/repository"
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
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Customer{}, domain.ErrInvalidTenant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidCustomer
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Customer{}, domain.ErrInvalidTenant
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	item, err := s.repo.FindByID(ctx, s.db, tenantID, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context) (domain.ListCustomerResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListCustomerResponse{}, domain.ErrInvalidTenant
	}

	customers, err := s.repo.List(ctx, s.db, tenantID)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	return domain.ListCustomerResponse{Customers: customers}, nil
}

func (s *Service) SetDiscount(ctx context.Context, req domain.SetDiscountRequest) (domain.AccountDiscount, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.AccountDiscount{}, domain.ErrInvalidTenant
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return domain.AccountDiscount{}, domain.ErrNotFound
	}

	kind, err := parseDiscountKind(req.Kind)
	if err != nil {
		return domain.AccountDiscount{}, err
	}
	if req.Value <= 0 {
		return domain.AccountDiscount{}, domain.ErrInvalidDiscount
	}
	if kind == domain.DiscountKindPercentage && req.Value > 100 {
		return domain.AccountDiscount{}, domain.ErrInvalidDiscount
	}

	customer, err := s.repo.FindByID(ctx, s.db, tenantID, customerID)
	if err != nil {
		return domain.AccountDiscount{}, err
	}
	if customer == nil {
		return domain.AccountDiscount{}, domain.ErrNotFound
	}

	now := s.clock.Now()
	discount := domain.AccountDiscount{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Kind:       kind,
		Value:      req.Value,
		Recurring:  req.Recurring,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.UpsertDiscount(ctx, s.db, &discount); err != nil {
		return domain.AccountDiscount{}, err
	}

	return discount, nil
}

func (s *Service) RemoveDiscount(ctx context.Context, customerID string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(customerID))
	if err != nil {
		return domain.ErrNotFound
	}

	return s.repo.DeleteDiscount(ctx, s.db, tenantID, id)
}

func (s *Service) GetDiscount(ctx context.Context, customerID string) (*domain.AccountDiscount, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(customerID))
	if err != nil {
		return nil, domain.ErrNotFound
	}

	return s.repo.FindDiscount(ctx, s.db, tenantID, id)
}

func parseDiscountKind(value string) (domain.DiscountKind, error) {
	kind := domain.DiscountKind(strings.TrimSpace(value))
	switch kind {
	case domain.DiscountKindPercentage, domain.DiscountKindFixedAmount:
		return kind, nil
	default:
		return "", domain.ErrInvalidDiscountKind
	}
}
