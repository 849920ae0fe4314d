// Package domain contains persistence models for subscription activities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Type tags the kind of event an activity records.
type Type string

const (
	TypeCreated          Type = "created"
	TypeActivated        Type = "activated"
	TypeCouponApplied    Type = "coupon_applied"
	TypeSeatAdded        Type = "seat_added"
	TypeSeatRemoved      Type = "seat_removed"
	TypePlanChanged      Type = "plan_changed"
	TypeStatusChanged    Type = "status_changed"
	TypeNotesUpdated     Type = "notes_updated"
	TypeAmountRecomputed Type = "amount_recomputed"
	TypeCanceled         Type = "canceled"
)

// Activity is one immutable timeline entry for a subscription. Rows are
// append-only, never updated or deleted.
type Activity struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	TenantID       snowflake.ID      `gorm:"not null;index"`
	SubscriptionID snowflake.ID      `gorm:"not null;index:ix_activities_subscription"`
	Type           Type              `gorm:"type:text;not null"`
	Description    string            `gorm:"type:text;not null"`
	Actor          string            `gorm:"type:text;not null;default:'system'"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index:ix_activities_subscription"`
}

// TableName sets the database table name.
func (Activity) TableName() string { return "activities" }
