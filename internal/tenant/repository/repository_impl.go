package repository

import (
	"context"

	"github.com/brightpane/brightpane/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, code, created_at, updated_at
		 FROM tenants
		 WHERE id = ?`,
		id,
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Create(tenant).Error
}

// NextSequence upserts the counter row and increments it in a single
// statement, so concurrent callers can never observe the same value.
func (r *repository) NextSequence(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, name string) (int64, error) {
	var value int64
	err := tx.WithContext(ctx).Raw(
		`INSERT INTO tenant_counters (tenant_id, name, value)
		 VALUES (?, ?, 1)
		 ON CONFLICT (tenant_id, name)
		 DO UPDATE SET value = tenant_counters.value + 1
		 RETURNING value`,
		tenantID,
		name,
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
