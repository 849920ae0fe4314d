// Package migration applies the database schema on startup so the console is
// usable out of the box for local and self-hosted environments.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	activitydomain "github.com/brightpane/brightpane/internal/activity/domain"
	coupondomain "github.com/brightpane/brightpane/internal/coupon/domain"
	customerdomain "github.com/brightpane/brightpane/internal/customer/domain"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	plandomain "github.com/brightpane/brightpane/internal/plan/domain"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
	tenantdomain "github.com/brightpane/brightpane/internal/tenant/domain"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the embedded SQL migrations against Postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the models. Used for the non-Postgres
// dialects, where the SQL migrations do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.Counter{},
		&plandomain.Plan{},
		&customerdomain.Customer{},
		&customerdomain.AccountDiscount{},
		&coupondomain.Coupon{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&activitydomain.Activity{},
	)
}
