// Package domain contains persistence models for tenants.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tenant is one vendor workspace. Its code prefixes invoice numbers.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Code      string       `gorm:"type:text;not null;uniqueIndex"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// Counter is a named per-tenant sequence for display numbers.
type Counter struct {
	TenantID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Name     string       `gorm:"primaryKey;type:text"`
	Value    int64        `gorm:"not null;default:0"`
}

// TableName sets the database table name.
func (Counter) TableName() string { return "tenant_counters" }

// Sequence names.
const (
	SequenceSubscription = "subscription"
	SequenceInvoice      = "invoice"
)

var (
	ErrTenantNotFound = errors.New("tenant_not_found")
	ErrInvalidTenant  = errors.New("invalid_tenant")
)
