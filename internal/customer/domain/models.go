// Package domain contains persistence models for customers and their
// account-level discounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is a billable account in a tenant.
type Customer struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	Name     string       `gorm:"type:text;not null"`
	Email    string       `gorm:"type:text"`
	// PlanLabel and SubscriptionStatus are denormalized for console lists and
	// cascaded on plan change and cancellation.
	PlanLabel          string    `gorm:"type:text"`
	SubscriptionStatus string    `gorm:"type:text"`
	Notes              string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// DiscountKind represents how an account discount is expressed.
type DiscountKind string

const (
	DiscountKindPercentage  DiscountKind = "percentage"
	DiscountKindFixedAmount DiscountKind = "fixed_amount"
)

// AccountDiscount is a customer-level discount. The unique index enforces at
// most one per customer.
type AccountDiscount struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TenantID   snowflake.ID `gorm:"not null;index"`
	CustomerID snowflake.ID `gorm:"not null;uniqueIndex:ux_account_discounts_customer"`
	Kind       DiscountKind `gorm:"type:text;not null"`
	Value      int64        `gorm:"not null"`
	Recurring  bool         `gorm:"not null;default:false"`
	Notes      string       `gorm:"type:text"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AccountDiscount) TableName() string { return "account_discounts" }
