// Package seed bootstraps the default tenant on startup.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	tenantdomain "github.com/brightpane/brightpane/internal/tenant/domain"
)

const (
	defaultTenantName = "Main"
)

// EnsureDefaultTenant creates the tenant the console starts with. When id is
// zero a snowflake ID is generated; an existing tenant is left untouched.
func EnsureDefaultTenant(db *gorm.DB, id int64, name string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultTenantName
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if id != 0 {
			var existing tenantdomain.Tenant
			err := tx.First(&existing, "id = ?", id).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		} else {
			var count int64
			if err := tx.Model(&tenantdomain.Tenant{}).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
			node, err := snowflake.NewNode(1)
			if err != nil {
				return err
			}
			id = node.Generate().Int64()
		}

		tenant := tenantdomain.Tenant{
			ID:   snowflake.ID(id),
			Name: name,
			Code: slug.Make(name),
		}
		return tx.Create(&tenant).Error
	})
}
