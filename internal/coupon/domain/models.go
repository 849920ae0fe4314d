// Package domain contains persistence models for coupons.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CouponKind represents the discount semantics of a coupon.
type CouponKind string

const (
	CouponKindPercentage     CouponKind = "percentage"
	CouponKindFixedAmount    CouponKind = "fixed_amount"
	CouponKindFreeMonths     CouponKind = "free_months"
	CouponKindTrialExtension CouponKind = "trial_extension"
)

// CouponStatus represents whether a coupon can currently be redeemed.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusDisabled CouponStatus = "disabled"
)

// Coupon is a redeemable discount code, unique per tenant.
type Coupon struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_coupons_tenant_code"`
	Code     string       `gorm:"type:text;not null;uniqueIndex:ux_coupons_tenant_code"`
	Kind     CouponKind   `gorm:"type:text;not null"`
	// Value is a percentage for percentage kinds, minor units for
	// fixed_amount, months for free_months, and days for trial_extension.
	Value             int64                        `gorm:"not null"`
	ApplicablePlanIDs datatypes.JSONSlice[int64]   `gorm:"type:jsonb"`
	MaxRedemptions    *int64                       `gorm:""`
	RedemptionCount   int64                        `gorm:"not null;default:0"`
	Status            CouponStatus                 `gorm:"type:text;not null;default:'active'"`
	ExpiresAt         *time.Time                   `gorm:""`
	CreatedAt         time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Coupon) TableName() string { return "coupons" }

// AppliesToPlan reports whether the coupon may be used with the given plan.
// An empty allow-list means the coupon applies to every plan.
func (c *Coupon) AppliesToPlan(planID snowflake.ID) bool {
	if len(c.ApplicablePlanIDs) == 0 {
		return true
	}
	for _, id := range c.ApplicablePlanIDs {
		if snowflake.ID(id) == planID {
			return true
		}
	}
	return false
}
