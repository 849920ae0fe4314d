package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	activityrepo "github.com/brightpane/brightpane/internal/activity/repository"
	activityservice "github.com/brightpane/brightpane/internal/activity/service"
	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/config"
	customerdomain "github.com/brightpane/brightpane/internal/customer/domain"
	customerrepo "github.com/brightpane/brightpane/internal/customer/repository"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	invoicerepo "github.com/brightpane/brightpane/internal/invoice/repository"
	"github.com/brightpane/brightpane/internal/pricing"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
	tenantdomain "github.com/brightpane/brightpane/internal/tenant/domain"
	tenantrepo "github.com/brightpane/brightpane/internal/tenant/repository"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type invoiceFixture struct {
	svc        invoicedomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	tenantID   snowflake.ID
	customerID snowflake.ID
}

func setupInvoiceService(t *testing.T) *invoiceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	prepareInvoiceSchema(t, db)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	tenantID := node.Generate()
	if err := db.Create(&tenantdomain.Tenant{
		ID:   tenantID,
		Name: "Acme Workspaces",
		Code: "ACME",
	}).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	customerID := node.Generate()
	if err := db.Create(&customerdomain.Customer{
		ID:       customerID,
		TenantID: tenantID,
		Name:     "Globex",
	}).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	activitySvc := activityservice.NewService(activityservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  activityrepo.Provide(),
	})

	svc := NewService(ServiceParam{
		Config:       config.Config{RenderTimeoutSeconds: 1},
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		Repo:         invoicerepo.Provide(),
		TenantRepo:   tenantrepo.Provide(),
		CustomerRepo: customerrepo.Provide(),
		ActivitySvc:  activitySvc,
	})

	return &invoiceFixture{
		svc:        svc,
		db:         db,
		node:       node,
		clock:      fake,
		tenantID:   tenantID,
		customerID: customerID,
	}
}

func prepareInvoiceSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.Counter{},
		&customerdomain.Customer{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(`CREATE TABLE activities (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		subscription_id BIGINT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT 'system',
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create activities: %v", err)
	}
	if err := db.Exec(`CREATE TABLE subscriptions (
		id BIGINT PRIMARY KEY,
		tenant_id BIGINT NOT NULL,
		customer_id BIGINT NOT NULL,
		number TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create subscriptions: %v", err)
	}
}

func (f *invoiceFixture) ctx() context.Context {
	return tenantctx.WithTenantID(context.Background(), f.tenantID)
}

func (f *invoiceFixture) seedSubscription(t *testing.T, status string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	err := f.db.Exec(
		`INSERT INTO subscriptions (id, tenant_id, customer_id, number, status, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, f.tenantID, f.customerID, fmt.Sprintf("SUB-%d", id%1000), status, f.clock.Now(),
	).Error
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return id
}

func TestGenerateForSubscriptionLines(t *testing.T) {
	f := setupInvoiceService(t)
	subscriptionID := f.seedSubscription(t, "draft")

	invoice, err := f.svc.GenerateForSubscription(f.ctx(), f.db, invoicedomain.GenerateInput{
		SubscriptionID:        subscriptionID,
		CustomerID:            f.customerID,
		PlanName:              "Growth",
		Cycle:                 pricing.CycleMonthly,
		Seats:                 3,
		BaseAmount:            9900 + 3*500,
		SeatUnitAmount:        500,
		AccountDiscountAmount: 1140,
		CouponDiscountAmount:  2280,
		CouponCode:            "SPRING20",
		Currency:              "usd",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if invoice.Number != "INV-ACME-1" {
		t.Fatalf("expected INV-ACME-1, got %s", invoice.Number)
	}
	if invoice.Status != invoicedomain.InvoiceStatusDraft {
		t.Fatalf("expected draft invoice, got %s", invoice.Status)
	}
	if invoice.Currency != "USD" {
		t.Fatalf("expected USD, got %s", invoice.Currency)
	}

	detail, err := f.svc.GetByID(f.ctx(), invoice.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(detail.Lines))
	}

	var sum int64
	for _, line := range detail.Lines {
		sum += line.Amount
	}
	if sum != invoice.Subtotal {
		t.Fatalf("line total %d does not match subtotal %d", sum, invoice.Subtotal)
	}
	if invoice.Total != invoice.Subtotal+invoice.Tax {
		t.Fatalf("total %d != subtotal %d + tax %d", invoice.Total, invoice.Subtotal, invoice.Tax)
	}

	// base 11400, extra seats 2x500 split out of the plan line
	if detail.Lines[0].Amount != 10400 {
		t.Fatalf("expected plan line 10400, got %d", detail.Lines[0].Amount)
	}
	if detail.Lines[1].Quantity != 2 || detail.Lines[1].Amount != 1000 {
		t.Fatalf("expected 2 extra seats at 500, got qty=%d amount=%d", detail.Lines[1].Quantity, detail.Lines[1].Amount)
	}
	if detail.Lines[2].Amount != -1140 || detail.Lines[3].Amount != -2280 {
		t.Fatalf("expected negative discount lines, got %d and %d", detail.Lines[2].Amount, detail.Lines[3].Amount)
	}

	if invoice.DueAt.Sub(invoice.IssuedAt) != 30*24*time.Hour {
		t.Fatalf("expected due 30 days after issue, got %s", invoice.DueAt.Sub(invoice.IssuedAt))
	}
}

func TestGenerateScalesYearly(t *testing.T) {
	f := setupInvoiceService(t)
	subscriptionID := f.seedSubscription(t, "draft")

	invoice, err := f.svc.GenerateForSubscription(f.ctx(), f.db, invoicedomain.GenerateInput{
		SubscriptionID:        subscriptionID,
		CustomerID:            f.customerID,
		PlanName:              "Growth",
		Cycle:                 pricing.CycleYearly,
		Seats:                 1,
		BaseAmount:            9900,
		AccountDiscountAmount: 990,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if invoice.Subtotal != (9900-990)*12 {
		t.Fatalf("expected yearly subtotal %d, got %d", (9900-990)*12, invoice.Subtotal)
	}
}

func TestFinalizeTransitions(t *testing.T) {
	f := setupInvoiceService(t)
	subscriptionID := f.seedSubscription(t, "draft")

	invoice, err := f.svc.GenerateForSubscription(f.ctx(), f.db, invoicedomain.GenerateInput{
		SubscriptionID: subscriptionID,
		CustomerID:     f.customerID,
		PlanName:       "Starter",
		Cycle:          pricing.CycleMonthly,
		Seats:          1,
		BaseAmount:     4900,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	finalized, err := f.svc.Finalize(f.ctx(), invoice.ID.String())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Status != invoicedomain.InvoiceStatusFinal {
		t.Fatalf("expected final, got %s", finalized.Status)
	}

	if _, err := f.svc.Finalize(f.ctx(), invoice.ID.String()); err != invoicedomain.ErrAlreadyFinalized {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}

	if _, err := f.svc.MarkPaid(f.ctx(), invoice.ID.String()); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := f.svc.Finalize(f.ctx(), invoice.ID.String()); err != invoicedomain.ErrNotDraft {
		t.Fatalf("expected ErrNotDraft for paid invoice, got %v", err)
	}
}

func TestMarkPaidActivatesDraftSubscription(t *testing.T) {
	f := setupInvoiceService(t)
	subscriptionID := f.seedSubscription(t, "draft")

	invoice, err := f.svc.GenerateForSubscription(f.ctx(), f.db, invoicedomain.GenerateInput{
		SubscriptionID: subscriptionID,
		CustomerID:     f.customerID,
		PlanName:       "Starter",
		Cycle:          pricing.CycleMonthly,
		Seats:          1,
		BaseAmount:     4900,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	paid, err := f.svc.MarkPaid(f.ctx(), invoice.ID.String())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != invoicedomain.InvoiceStatusPaid || paid.PaidAt == nil {
		t.Fatalf("expected paid invoice with paid_at, got %s", paid.Status)
	}

	var status string
	if err := f.db.Raw(`SELECT status FROM subscriptions WHERE id = ?`, subscriptionID).Scan(&status).Error; err != nil {
		t.Fatalf("read subscription: %v", err)
	}
	if status != "active" {
		t.Fatalf("expected subscription active after payment, got %s", status)
	}

	var customerStatus string
	if err := f.db.Raw(`SELECT subscription_status FROM customers WHERE id = ?`, f.customerID).Scan(&customerStatus).Error; err != nil {
		t.Fatalf("read customer: %v", err)
	}
	if customerStatus != "active" {
		t.Fatalf("expected customer snapshot active, got %s", customerStatus)
	}

	var activityCount int64
	if err := f.db.Raw(`SELECT count(*) FROM activities WHERE subscription_id = ? AND type = 'activated'`, subscriptionID).Scan(&activityCount).Error; err != nil {
		t.Fatalf("count activities: %v", err)
	}
	if activityCount != 1 {
		t.Fatalf("expected 1 activated activity, got %d", activityCount)
	}

	if _, err := f.svc.MarkPaid(f.ctx(), invoice.ID.String()); err != invoicedomain.ErrNotPayable {
		t.Fatalf("expected ErrNotPayable on second payment, got %v", err)
	}
}

func TestMarkPaidConflictsWhenCustomerAlreadyActive(t *testing.T) {
	f := setupInvoiceService(t)
	draftID := f.seedSubscription(t, "draft")

	invoice, err := f.svc.GenerateForSubscription(f.ctx(), f.db, invoicedomain.GenerateInput{
		SubscriptionID: draftID,
		CustomerID:     f.customerID,
		PlanName:       "Starter",
		Cycle:          pricing.CycleMonthly,
		Seats:          1,
		BaseAmount:     4900,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// The customer gains an active subscription elsewhere before the draft's
	// invoice is paid. Paying the stale invoice must not produce a second
	// active row.
	f.seedSubscription(t, "active")

	_, err = f.svc.MarkPaid(f.ctx(), invoice.ID.String())
	var conflict *subscriptiondomain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	var status string
	if err := f.db.Raw(`SELECT status FROM subscriptions WHERE id = ?`, draftID).Scan(&status).Error; err != nil {
		t.Fatalf("read subscription: %v", err)
	}
	if status != "draft" {
		t.Fatalf("expected subscription to stay draft, got %s", status)
	}

	var activeCount int64
	if err := f.db.Raw(
		`SELECT count(*) FROM subscriptions WHERE customer_id = ? AND status = 'active'`, f.customerID,
	).Scan(&activeCount).Error; err != nil {
		t.Fatalf("count active: %v", err)
	}
	if activeCount != 1 {
		t.Fatalf("expected 1 active subscription, got %d", activeCount)
	}

	var invoiceStatus string
	if err := f.db.Raw(`SELECT status FROM invoices WHERE id = ?`, invoice.ID).Scan(&invoiceStatus).Error; err != nil {
		t.Fatalf("read invoice: %v", err)
	}
	if invoiceStatus != "draft" {
		t.Fatalf("expected payment to roll back, invoice is %s", invoiceStatus)
	}
}

func TestCreateStandalone(t *testing.T) {
	f := setupInvoiceService(t)

	invoice, err := f.svc.CreateStandalone(f.ctx(), invoicedomain.CreateStandaloneRequest{
		CustomerID: f.customerID.String(),
		Currency:   "EUR",
		Tax:        200,
		Lines: []invoicedomain.StandaloneLine{
			{Description: "Onboarding", Quantity: 1, UnitAmount: 50000, Amount: 50000},
			{Description: "Goodwill credit", Quantity: 1, UnitAmount: -5000, Amount: -5000},
		},
	})
	if err != nil {
		t.Fatalf("create standalone: %v", err)
	}

	if invoice.SubscriptionID != nil {
		t.Fatalf("expected no subscription reference")
	}
	if invoice.Subtotal != 45000 || invoice.Total != 45200 {
		t.Fatalf("expected subtotal 45000 total 45200, got %d/%d", invoice.Subtotal, invoice.Total)
	}

	if _, err := f.svc.CreateStandalone(f.ctx(), invoicedomain.CreateStandaloneRequest{
		CustomerID: f.node.Generate().String(),
		Lines:      []invoicedomain.StandaloneLine{{Description: "x", Quantity: 1}},
	}); err != invoicedomain.ErrCustomerNotFound {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	if _, err := f.svc.CreateStandalone(f.ctx(), invoicedomain.CreateStandaloneRequest{
		CustomerID: f.customerID.String(),
	}); err != invoicedomain.ErrInvalidInvoice {
		t.Fatalf("expected ErrInvalidInvoice for empty lines, got %v", err)
	}
}

func TestInvoiceNumbersSequential(t *testing.T) {
	f := setupInvoiceService(t)

	for i := 1; i <= 3; i++ {
		invoice, err := f.svc.CreateStandalone(f.ctx(), invoicedomain.CreateStandaloneRequest{
			CustomerID: f.customerID.String(),
			Lines:      []invoicedomain.StandaloneLine{{Description: "Service", Quantity: 1, UnitAmount: 100, Amount: 100}},
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		expected := fmt.Sprintf("INV-ACME-%d", i)
		if invoice.Number != expected {
			t.Fatalf("expected %s, got %s", expected, invoice.Number)
		}
	}
}
