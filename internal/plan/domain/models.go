// Package domain contains persistence models for plans.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PricingModel represents how a plan charges.
type PricingModel string

const (
	PricingModelFlat         PricingModel = "flat"
	PricingModelPerSeat      PricingModel = "per_seat"
	PricingModelUsageMetered PricingModel = "usage_metered"
)

// Plan is a sellable plan with one base price per billing interval.
type Plan struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TenantID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_plans_tenant_code"`
	Name          string       `gorm:"type:text;not null"`
	Code          string       `gorm:"type:text;not null;uniqueIndex:ux_plans_tenant_code"`
	PricingModel  PricingModel `gorm:"type:text;not null"`
	MonthlyAmount int64        `gorm:"not null;default:0"`
	YearlyAmount  int64        `gorm:"not null;default:0"`
	PerSeatAmount *int64       `gorm:""`
	Currency      string       `gorm:"type:text;not null;default:'USD'"`
	Active        bool         `gorm:"not null;default:true"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }
