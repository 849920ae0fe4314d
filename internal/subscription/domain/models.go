// Package domain contains the subscription lifecycle model. Status changes
// are only legal through the transition table below.
package domain

import (
	"time"

	"github.com/brightpane/brightpane/internal/pricing"
	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents subscription lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionStatusDraft    SubscriptionStatus = "draft"
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is a customer's recurring plan commitment. Amount is the
// monthly-equivalent net recurring amount in minor units and is not
// recomputed on seat or plan changes.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey"`
	TenantID           snowflake.ID       `gorm:"not null;index;uniqueIndex:ux_subscriptions_tenant_number"`
	CustomerID         snowflake.ID       `gorm:"not null;index"`
	PlanID             snowflake.ID       `gorm:"not null;index"`
	Number             string             `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_tenant_number"`
	Status             SubscriptionStatus `gorm:"type:text;not null;default:'draft'"`
	BillingCycle       pricing.Cycle      `gorm:"type:text;not null"`
	Seats              int                `gorm:"not null;default:1"`
	Amount             int64              `gorm:"not null;default:0"`
	Currency           string             `gorm:"type:text;not null;default:'USD'"`
	CouponID           *snowflake.ID      `gorm:"index"`
	DealRef            string             `gorm:"type:text"`
	Notes              string             `gorm:"type:text"`
	CurrentPeriodStart time.Time          `gorm:"not null"`
	CurrentPeriodEnd   time.Time          `gorm:"not null"`
	TrialEndsAt        *time.Time         `gorm:""`
	CanceledAt         *time.Time         `gorm:""`
	CreatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

func isValidStatus(status SubscriptionStatus) bool {
	switch status {
	case SubscriptionStatusDraft,
		SubscriptionStatusTrial,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusPaused,
		SubscriptionStatusCanceled:
		return true
	default:
		return false
	}
}

// ParseStatus validates a status token.
func ParseStatus(value string) (SubscriptionStatus, error) {
	status := SubscriptionStatus(value)
	if !isValidStatus(status) {
		return "", ErrInvalidTargetStatus
	}
	return status, nil
}

// isTransitionAllowed is the single source of truth for subscription status
// changes. past_due and canceled have no outgoing edges.
func isTransitionAllowed(current, target SubscriptionStatus) bool {
	switch current {
	case SubscriptionStatusDraft:
		return target == SubscriptionStatusActive
	case SubscriptionStatusActive:
		return target == SubscriptionStatusPastDue ||
			target == SubscriptionStatusPaused ||
			target == SubscriptionStatusCanceled
	case SubscriptionStatusPaused:
		return target == SubscriptionStatusActive
	case SubscriptionStatusTrial:
		return target == SubscriptionStatusActive ||
			target == SubscriptionStatusPastDue ||
			target == SubscriptionStatusCanceled
	default:
		return false
	}
}

// CanTransition reports whether the status change is a legal edge.
func CanTransition(current, target SubscriptionStatus) bool {
	return isTransitionAllowed(current, target)
}
