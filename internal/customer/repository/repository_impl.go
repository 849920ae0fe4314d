package repository

import (
	"context"
	"errors"

	"github.com/brightpane/brightpane/internal/customer/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Customer, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Customer, error)
	Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error
	UpdateBillingSnapshot(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, planLabel, status string) error
	FindDiscount(ctx context.Context, db *gorm.DB, tenantID, customerID snowflake.ID) (*domain.AccountDiscount, error)
	UpsertDiscount(ctx context.Context, db *gorm.DB, discount *domain.AccountDiscount) error
	DeleteDiscount(ctx context.Context, db *gorm.DB, tenantID, customerID snowflake.ID) error
}

type repository struct{}

func Provide() Repository {
	return &repository{}
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&customers).Error
	return customers, err
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repository) UpdateBillingSnapshot(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, planLabel, status string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET plan_label = ?, subscription_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = ? AND id = ?`,
		planLabel,
		status,
		tenantID,
		id,
	).Error
}

func (r *repository) FindDiscount(ctx context.Context, db *gorm.DB, tenantID, customerID snowflake.ID) (*domain.AccountDiscount, error) {
	var discount domain.AccountDiscount
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&discount).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &discount, nil
}

func (r *repository) UpsertDiscount(ctx context.Context, db *gorm.DB, discount *domain.AccountDiscount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO account_discounts (id, tenant_id, customer_id, kind, value, recurring, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (customer_id)
		 DO UPDATE SET kind = ?, value = ?, recurring = ?, notes = ?, updated_at = ?`,
		discount.ID,
		discount.TenantID,
		discount.CustomerID,
		discount.Kind,
		discount.Value,
		discount.Recurring,
		discount.Notes,
		discount.CreatedAt,
		discount.UpdatedAt,
		discount.Kind,
		discount.Value,
		discount.Recurring,
		discount.Notes,
		discount.UpdatedAt,
	).Error
}

func (r *repository) DeleteDiscount(ctx context.Context, db *gorm.DB, tenantID, customerID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM account_discounts WHERE tenant_id = ? AND customer_id = ?`,
		tenantID,
		customerID,
	).Error
}
