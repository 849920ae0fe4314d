package repository

import (
	"context"
	"errors"
	"time"

	"github.com/brightpane/brightpane/internal/coupon/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, code string) (*domain.Coupon, error)
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Coupon, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Coupon, error)
	Insert(ctx context.Context, db *gorm.DB, coupon *domain.Coupon) error
	UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status domain.CouponStatus, now time.Time) error
	// IncrementRedemption performs the conditional atomic increment. It
	// returns false when the coupon was inactive or already at its limit.
	IncrementRedemption(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, now time.Time) (bool, error)
}

type repository struct{}

func Provide() Repository {
	return &repository{}
}

func (r *repository) FindByCode(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, code string) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Coupon, error) {
	var coupons []domain.Coupon
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&coupons).Error
	return coupons, err
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, coupon *domain.Coupon) error {
	return db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status domain.CouponStatus, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET status = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		status,
		now,
		tenantID,
		id,
	).Error
}

func (r *repository) IncrementRedemption(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET redemption_count = redemption_count + 1, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = ?
		   AND (max_redemptions IS NULL OR redemption_count < max_redemptions)`,
		now,
		tenantID,
		id,
		domain.CouponStatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
