package domain

import (
	"context"
	"errors"
	"fmt"

	coupondomain "github.com/brightpane/brightpane/internal/coupon/domain"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	"github.com/brightpane/brightpane/pkg/db/pagination"
)

type CreateSubscriptionRequest struct {
	CustomerID   string `json:"customer_id"`
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	Seats        int    `json:"seats"`
	CouponCode   string `json:"coupon_code"`
	DealRef      string `json:"deal_ref"`
	Tax          int64  `json:"tax"`
	Notes        string `json:"notes"`
}

type CreateSubscriptionResponse struct {
	Subscription Subscription          `json:"subscription"`
	Invoice      invoicedomain.Invoice `json:"invoice"`
}

// CreateLegacyRequest creates a subscription directly in active or trial,
// without a first invoice.
type CreateLegacyRequest struct {
	CustomerID   string `json:"customer_id"`
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
	Seats        int    `json:"seats"`
	Status       string `json:"status"`
	TrialDays    int    `json:"trial_days"`
	Notes        string `json:"notes"`
}

type UpdateSubscriptionRequest struct {
	Status *string `json:"status"`
	Seats  *int    `json:"seats"`
	PlanID *string `json:"plan_id"`
	Notes  *string `json:"notes"`
	// Recompute re-derives the recurring amount from the (possibly updated)
	// plan and seats. Seat and plan changes alone never touch the amount.
	Recompute bool `json:"recompute"`
}

type UpdateSubscriptionResponse struct {
	Subscription Subscription `json:"subscription"`
	Changes      []string     `json:"changes"`
}

type ListSubscriptionRequest struct {
	Status     *SubscriptionStatus
	CustomerID *string
	Pagination pagination.Pagination
}

type ListSubscriptionResponse struct {
	Subscriptions []Subscription       `json:"subscriptions"`
	PageInfo      *pagination.PageInfo `json:"page_info,omitempty"`
}

type Service interface {
	// Create persists a draft subscription and its first invoice in one
	// transaction, then attempts document rendering best-effort.
	Create(ctx context.Context, req CreateSubscriptionRequest) (CreateSubscriptionResponse, error)
	CreateLegacy(ctx context.Context, req CreateLegacyRequest) (Subscription, error)
	List(ctx context.Context, req ListSubscriptionRequest) (ListSubscriptionResponse, error)
	GetByID(ctx context.Context, id string) (Subscription, error)
	Update(ctx context.Context, id string, req UpdateSubscriptionRequest) (UpdateSubscriptionResponse, error)
	Cancel(ctx context.Context, id string) (Subscription, error)
}

// ConflictError reports an existing active subscription for the customer,
// carrying its display number for the caller.
type ConflictError struct {
	ExistingNumber string
}

func (e *ConflictError) Error() string {
	if e.ExistingNumber == "" {
		return "customer already has an active subscription"
	}
	return fmt.Sprintf("customer already has an active subscription %s", e.ExistingNumber)
}

// CouponRejectedError promotes a coupon validation outcome to a hard failure
// during subscription creation.
type CouponRejectedError struct {
	Reason coupondomain.RejectionReason
}

func (e *CouponRejectedError) Error() string {
	return string(e.Reason)
}

// NotFound reports whether the rejection maps to a missing coupon rather
// than an ineligible one.
func (e *CouponRejectedError) NotFound() bool {
	return e.Reason == coupondomain.ReasonNotFound
}

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidSubscription  = errors.New("invalid_subscription")
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidTargetStatus  = errors.New("invalid_target_status")
	ErrInvalidTransition    = errors.New("invalid_status_transition")
	ErrCustomerNotFound     = errors.New("customer_not_found")
	ErrPlanNotFound         = errors.New("plan_not_found")
)
