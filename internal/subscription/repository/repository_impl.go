package repository

import (
	"context"

	"github.com/brightpane/brightpane/internal/subscription/domain"
	"github.com/brightpane/brightpane/pkg/db/option"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Subscription, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Subscription, error)
	// FindActiveByCustomerForUpdate locks the customer's active subscription
	// row, if any, for the conflict pre-check during creation.
	FindActiveByCustomerForUpdate(ctx context.Context, tx *gorm.DB, tenantID, customerID snowflake.ID) (*domain.Subscription, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, req domain.ListSubscriptionRequest) ([]domain.Subscription, error)
	Insert(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error
	Update(ctx context.Context, tx *gorm.DB, subscription *domain.Subscription) error
}

type repository struct{}

func Provide() Repository {
	return &repository{}
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Subscription, error) {
	return scanOne(ctx, db, `SELECT * FROM subscriptions WHERE tenant_id = ? AND id = ?`, tenantID, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE tenant_id = ? AND id = ?`
	if tx.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return scanOne(ctx, tx, query, tenantID, id)
}

func (r *repository) FindActiveByCustomerForUpdate(ctx context.Context, tx *gorm.DB, tenantID, customerID snowflake.ID) (*domain.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE tenant_id = ? AND customer_id = ? AND status = 'active'`
	if tx.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return scanOne(ctx, tx, query, tenantID, customerID)
}

func scanOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.WithContext(ctx).Raw(query, args...).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, req domain.ListSubscriptionRequest) ([]domain.Subscription, error) {
	opts := []option.QueryOption{
		option.ApplyOperator(option.Condition{Field: "tenant_id", Operator: option.EQ, Value: tenantID}),
	}
	if req.Status != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: *req.Status}))
	}
	if req.CustomerID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "customer_id", Operator: option.EQ, Value: *req.CustomerID}))
	}
	opts = append(opts,
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", nil)),
		option.ApplyPagination(req.Pagination),
	)

	stmt := db.WithContext(ctx).Model(&domain.Subscription{})
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var subscriptions []domain.Subscription
	err := stmt.Find(&subscriptions).Error
	return subscriptions, err
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) Update(ctx context.Context, tx *gorm.DB, subscription *domain.Subscription) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, plan_id = ?, seats = ?, amount = ?, notes = ?, trial_ends_at = ?, canceled_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		subscription.Status,
		subscription.PlanID,
		subscription.Seats,
		subscription.Amount,
		subscription.Notes,
		subscription.TrialEndsAt,
		subscription.CanceledAt,
		subscription.UpdatedAt,
		subscription.TenantID,
		subscription.ID,
	).Error
}
