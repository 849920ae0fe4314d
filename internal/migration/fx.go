package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	appconfig "github.com/brightpane/brightpane/internal/config"
	"github.com/brightpane/brightpane/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg appconfig.Config) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		return seed.EnsureDefaultTenant(conn, cfg.DefaultTenantID, cfg.DefaultTenantName)
	}),
)
