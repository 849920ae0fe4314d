package repository

import (
	"context"

	"github.com/brightpane/brightpane/internal/plan/domain"
	"github.com/brightpane/brightpane/pkg/db/option"
	pkgrepo "github.com/brightpane/brightpane/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Plan, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Plan, error)
	Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error
}

// Plans have no bespoke queries, so the generic store covers the whole
// surface. db is passed per call so lookups join the caller's transaction.
type repository struct{}

func Provide() Repository {
	return &repository{}
}

func (r *repository) store(db *gorm.DB) pkgrepo.Repository[domain.Plan] {
	return pkgrepo.ProvideStore[domain.Plan](db)
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Plan, error) {
	return r.store(db).FindOne(ctx, &domain.Plan{TenantID: tenantID, ID: id})
}

func (r *repository) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Plan, error) {
	items, err := r.store(db).Find(ctx, &domain.Plan{TenantID: tenantID},
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", nil)))
	if err != nil {
		return nil, err
	}

	plans := make([]domain.Plan, 0, len(items))
	for _, item := range items {
		plans = append(plans, *item)
	}
	return plans, nil
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return r.store(db).Create(ctx, plan)
}
