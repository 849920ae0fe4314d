package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// RejectionReason explains why a coupon failed validation. Rejections are
// business outcomes, not errors: standalone validation returns them inline.
type RejectionReason string

const (
	ReasonNotFound      RejectionReason = "coupon_not_found"
	ReasonNotActive     RejectionReason = "coupon_not_active"
	ReasonExpired       RejectionReason = "coupon_expired"
	ReasonExhausted     RejectionReason = "coupon_exhausted"
	ReasonNotApplicable RejectionReason = "coupon_not_applicable"
)

// ValidationResult is the outcome of a coupon eligibility check.
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Reason RejectionReason `json:"error,omitempty"`
	Coupon *Coupon         `json:"coupon,omitempty"`
}

type CreateCouponRequest struct {
	Code              string     `json:"code"`
	Kind              string     `json:"kind"`
	Value             int64      `json:"value"`
	ApplicablePlanIDs []string   `json:"applicable_plan_ids"`
	MaxRedemptions    *int64     `json:"max_redemptions"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

type ListCouponResponse struct {
	Coupons []Coupon `json:"coupons"`
}

type Service interface {
	Create(ctx context.Context, req CreateCouponRequest) (Coupon, error)
	List(ctx context.Context) (ListCouponResponse, error)
	Disable(ctx context.Context, id string) error
	// Validate checks eligibility without consuming a redemption. planID may
	// be zero when the caller has not chosen a plan yet; coupons restricted
	// to specific plans are rejected in that case.
	Validate(ctx context.Context, code string, planID snowflake.ID) (ValidationResult, error)
	// Redeem consumes one redemption inside the caller's transaction. The
	// increment is conditional, so concurrent redemptions can never push the
	// counter past the maximum.
	Redeem(ctx context.Context, tx *gorm.DB, couponID snowflake.ID) error
}

var (
	ErrInvalidCoupon     = errors.New("invalid_coupon")
	ErrInvalidCouponKind = errors.New("invalid_coupon_kind")
	ErrInvalidValue      = errors.New("invalid_coupon_value")
	ErrCouponExists      = errors.New("coupon_exists")
	ErrCouponNotFound    = errors.New("coupon_not_found")
	ErrCouponExhausted   = errors.New("coupon_exhausted")
	ErrInvalidTenant     = errors.New("invalid_tenant")
)
