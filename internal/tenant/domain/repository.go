package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	// NextSequence atomically increments and returns the named per-tenant
	// counter. Safe under concurrent callers.
	NextSequence(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, name string) (int64, error)
}
