package repository

import (
	"context"

	"github.com/brightpane/brightpane/internal/activity/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *domain.Activity) error
	ListBySubscription(ctx context.Context, db *gorm.DB, tenantID, subscriptionID snowflake.ID, limit int) ([]domain.Activity, error)
}

type repository struct{}

func Provide() Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, entry *domain.Activity) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO activities (
			id, tenant_id, subscription_id, type, description, actor, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TenantID,
		entry.SubscriptionID,
		entry.Type,
		entry.Description,
		entry.Actor,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repository) ListBySubscription(ctx context.Context, db *gorm.DB, tenantID, subscriptionID snowflake.ID, limit int) ([]domain.Activity, error) {
	var activities []domain.Activity
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND subscription_id = ?", tenantID, subscriptionID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
