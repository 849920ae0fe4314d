package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	activitydomain "github.com/brightpane/brightpane/internal/activity/domain"
	activityrepo "github.com/brightpane/brightpane/internal/activity/repository"
	activityservice "github.com/brightpane/brightpane/internal/activity/service"
	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/config"
	coupondomain "github.com/brightpane/brightpane/internal/coupon/domain"
	couponrepo "github.com/brightpane/brightpane/internal/coupon/repository"
	couponservice "github.com/brightpane/brightpane/internal/coupon/service"
	customerdomain "github.com/brightpane/brightpane/internal/customer/domain"
	customerrepo "github.com/brightpane/brightpane/internal/customer/repository"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	invoicerepo "github.com/brightpane/brightpane/internal/invoice/repository"
	invoiceservice "github.com/brightpane/brightpane/internal/invoice/service"
	plandomain "github.com/brightpane/brightpane/internal/plan/domain"
	planrepo "github.com/brightpane/brightpane/internal/plan/repository"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
	subscriptionrepo "github.com/brightpane/brightpane/internal/subscription/repository"
	tenantdomain "github.com/brightpane/brightpane/internal/tenant/domain"
	tenantrepo "github.com/brightpane/brightpane/internal/tenant/repository"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type subscriptionFixture struct {
	svc        subscriptiondomain.Service
	couponSvc  coupondomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	tenantID   snowflake.ID
	customerID snowflake.ID
	planID     snowflake.ID
}

func setupSubscriptionService(t *testing.T) *subscriptionFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	if err := db.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.Counter{},
		&customerdomain.Customer{},
		&customerdomain.AccountDiscount{},
		&plandomain.Plan{},
		&coupondomain.Coupon{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&activitydomain.Activity{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	tenantID := node.Generate()
	if err := db.Create(&tenantdomain.Tenant{ID: tenantID, Name: "Acme Workspaces", Code: "ACME"}).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	customerID := node.Generate()
	if err := db.Create(&customerdomain.Customer{ID: customerID, TenantID: tenantID, Name: "Globex"}).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	planID := node.Generate()
	if err := db.Create(&plandomain.Plan{
		ID:            planID,
		TenantID:      tenantID,
		Name:          "Growth",
		Code:          "growth",
		PricingModel:  plandomain.PricingModelFlat,
		MonthlyAmount: 9900,
		Currency:      "USD",
		Active:        true,
	}).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	activitySvc := activityservice.NewService(activityservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: activityrepo.Provide(),
	})
	couponSvc := couponservice.NewService(couponservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: couponrepo.Provide(),
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		Config:       config.Config{RenderTimeoutSeconds: 1},
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        fake,
		Repo:         invoicerepo.Provide(),
		TenantRepo:   tenantrepo.Provide(),
		CustomerRepo: customerrepo.Provide(),
		ActivitySvc:  activitySvc,
	})
	svc := NewService(ServiceParam{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        fake,
		Repo:         subscriptionrepo.Provide(),
		PlanRepo:     planrepo.Provide(),
		CustomerRepo: customerrepo.Provide(),
		TenantRepo:   tenantrepo.Provide(),
		CouponSvc:    couponSvc,
		InvoiceSvc:   invoiceSvc,
		ActivitySvc:  activitySvc,
	})

	return &subscriptionFixture{
		svc:        svc,
		couponSvc:  couponSvc,
		db:         db,
		node:       node,
		clock:      fake,
		tenantID:   tenantID,
		customerID: customerID,
		planID:     planID,
	}
}

func (f *subscriptionFixture) ctx() context.Context {
	return tenantctx.WithTenantID(context.Background(), f.tenantID)
}

func (f *subscriptionFixture) seedAccountDiscount(t *testing.T, kind customerdomain.DiscountKind, value int64) {
	t.Helper()
	if err := f.db.Create(&customerdomain.AccountDiscount{
		ID:         f.node.Generate(),
		TenantID:   f.tenantID,
		CustomerID: f.customerID,
		Kind:       kind,
		Value:      value,
	}).Error; err != nil {
		t.Fatalf("seed discount: %v", err)
	}
}

func (f *subscriptionFixture) seedCoupon(t *testing.T, code string, kind string, value int64) coupondomain.Coupon {
	t.Helper()
	coupon, err := f.couponSvc.Create(f.ctx(), coupondomain.CreateCouponRequest{
		Code: code, Kind: kind, Value: value,
	})
	if err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

func TestCreateDraftWithInvoiceAndDiscounts(t *testing.T) {
	f := setupSubscriptionService(t)
	f.seedAccountDiscount(t, customerdomain.DiscountKindPercentage, 10)
	f.seedCoupon(t, "SPRING20", "percentage", 20)

	res, err := f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
		CouponCode:   "spring20",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if res.Subscription.Number != "SUB-1" {
		t.Fatalf("expected SUB-1, got %s", res.Subscription.Number)
	}
	if res.Subscription.Status != subscriptiondomain.SubscriptionStatusDraft {
		t.Fatalf("expected draft, got %s", res.Subscription.Status)
	}
	// 9900 - 990 (account 10%) - 1980 (coupon 20%) stacked against base
	if res.Subscription.Amount != 6930 {
		t.Fatalf("expected net 6930, got %d", res.Subscription.Amount)
	}
	if res.Invoice.Number != "INV-ACME-1" {
		t.Fatalf("expected INV-ACME-1, got %s", res.Invoice.Number)
	}
	if res.Invoice.Subtotal != 6930 {
		t.Fatalf("expected invoice subtotal 6930, got %d", res.Invoice.Subtotal)
	}

	var couponCount int64
	if err := f.db.Raw(`SELECT redemption_count FROM coupons WHERE code = 'SPRING20'`).Scan(&couponCount).Error; err != nil {
		t.Fatalf("read coupon: %v", err)
	}
	if couponCount != 1 {
		t.Fatalf("expected redemption_count 1, got %d", couponCount)
	}

	var types []string
	if err := f.db.Raw(`SELECT type FROM activities WHERE subscription_id = ? ORDER BY id`, res.Subscription.ID).Scan(&types).Error; err != nil {
		t.Fatalf("read activities: %v", err)
	}
	if len(types) != 2 || types[0] != "created" || types[1] != "coupon_applied" {
		t.Fatalf("expected created+coupon_applied activities, got %v", types)
	}

	var snapshot struct {
		PlanLabel          string
		SubscriptionStatus string
	}
	if err := f.db.Raw(`SELECT plan_label, subscription_status FROM customers WHERE id = ?`, f.customerID).Scan(&snapshot).Error; err != nil {
		t.Fatalf("read customer: %v", err)
	}
	if snapshot.PlanLabel != "Growth" || snapshot.SubscriptionStatus != "draft" {
		t.Fatalf("expected snapshot Growth/draft, got %s/%s", snapshot.PlanLabel, snapshot.SubscriptionStatus)
	}
}

func TestCreateConflictOnActiveSubscription(t *testing.T) {
	f := setupSubscriptionService(t)

	existing, err := f.svc.CreateLegacy(f.ctx(), subscriptiondomain.CreateLegacyRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
		Status:       "active",
	})
	if err != nil {
		t.Fatalf("create legacy: %v", err)
	}

	_, err = f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
	})
	var conflict *subscriptiondomain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ExistingNumber != existing.Number {
		t.Fatalf("expected conflict number %s, got %s", existing.Number, conflict.ExistingNumber)
	}
}

func TestUpdateToActiveConflictsWithExistingActive(t *testing.T) {
	f := setupSubscriptionService(t)

	draft, err := f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	existing, err := f.svc.CreateLegacy(f.ctx(), subscriptiondomain.CreateLegacyRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
		Status:       "active",
	})
	if err != nil {
		t.Fatalf("create legacy: %v", err)
	}

	status := "active"
	_, err = f.svc.Update(f.ctx(), draft.Subscription.ID.String(), subscriptiondomain.UpdateSubscriptionRequest{
		Status: &status,
	})
	var conflict *subscriptiondomain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ExistingNumber != existing.Number {
		t.Fatalf("expected conflict number %s, got %s", existing.Number, conflict.ExistingNumber)
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
}

func TestCreateRejectsIneligibleCoupon(t *testing.T) {
	f := setupSubscriptionService(t)

	_, err := f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
		CouponCode:   "MISSING",
	})
	var rejected *subscriptiondomain.CouponRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected CouponRejectedError, got %v", err)
	}
	if !rejected.NotFound() {
		t.Fatalf("expected not-found rejection, got %s", rejected.Reason)
	}

	var count int64
	if err := f.db.Raw(`SELECT count(*) FROM subscriptions`).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no subscription rows after rejection, got %d", count)
	}
}

func TestCreateFreeMonthsExtendsPeriod(t *testing.T) {
	f := setupSubscriptionService(t)
	f.seedCoupon(t, "TWOFREE", "free_months", 2)

	res, err := f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
		CouponCode:   "TWOFREE",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// non-monetary coupon: no money off, 2 extra months on the first period
	if res.Subscription.Amount != 9900 {
		t.Fatalf("expected full amount 9900, got %d", res.Subscription.Amount)
	}
	expectedEnd := f.clock.Now().AddDate(0, 3, 0)
	if !res.Subscription.CurrentPeriodEnd.Equal(expectedEnd) {
		t.Fatalf("expected period end %s, got %s", expectedEnd, res.Subscription.CurrentPeriodEnd)
	}
}

func TestUpdateSeatsDoesNotRecomputeAmount(t *testing.T) {
	f := setupSubscriptionService(t)

	res, err := f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	seats := 5
	updated, err := f.svc.Update(f.ctx(), res.Subscription.ID.String(), subscriptiondomain.UpdateSubscriptionRequest{
		Seats: &seats,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Changes) != 1 || updated.Changes[0] != "seats" {
		t.Fatalf("expected [seats], got %v", updated.Changes)
	}
	if updated.Subscription.Seats != 5 {
		t.Fatalf("expected 5 seats, got %d", updated.Subscription.Seats)
	}
	if updated.Subscription.Amount != res.Subscription.Amount {
		t.Fatalf("amount must not be recomputed: %d vs %d", updated.Subscription.Amount, res.Subscription.Amount)
	}

	var activityType string
	if err := f.db.Raw(
		`SELECT type FROM activities WHERE subscription_id = ? ORDER BY id DESC LIMIT 1`,
		res.Subscription.ID,
	).Scan(&activityType).Error; err != nil {
		t.Fatalf("read activity: %v", err)
	}
	if activityType != "seat_added" {
		t.Fatalf("expected seat_added activity, got %s", activityType)
	}
}

func TestUpdateRecomputeFlagRederivesAmount(t *testing.T) {
	f := setupSubscriptionService(t)

	perSeat := int64(500)
	seatPlanID := f.node.Generate()
	if err := f.db.Create(&plandomain.Plan{
		ID:            seatPlanID,
		TenantID:      f.tenantID,
		Name:          "Team",
		Code:          "team",
		PricingModel:  plandomain.PricingModelPerSeat,
		MonthlyAmount: 9900,
		PerSeatAmount: &perSeat,
		Currency:      "USD",
		Active:        true,
	}).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	res, err := f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       seatPlanID.String(),
		BillingCycle: "monthly",
		Seats:        2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Subscription.Amount != 10900 {
		t.Fatalf("expected amount 10900, got %d", res.Subscription.Amount)
	}

	seats := 5
	updated, err := f.svc.Update(f.ctx(), res.Subscription.ID.String(), subscriptiondomain.UpdateSubscriptionRequest{
		Seats:     &seats,
		Recompute: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Changes) != 2 || updated.Changes[0] != "seats" || updated.Changes[1] != "amount" {
		t.Fatalf("expected [seats amount], got %v", updated.Changes)
	}
	if updated.Subscription.Amount != 12400 {
		t.Fatalf("expected recomputed amount 12400, got %d", updated.Subscription.Amount)
	}

	var stored int64
	if err := f.db.Raw(
		`SELECT amount FROM subscriptions WHERE id = ?`, res.Subscription.ID,
	).Scan(&stored).Error; err != nil {
		t.Fatalf("read subscription: %v", err)
	}
	if stored != 12400 {
		t.Fatalf("expected persisted amount 12400, got %d", stored)
	}

	var activityType string
	if err := f.db.Raw(
		`SELECT type FROM activities WHERE subscription_id = ? ORDER BY id DESC LIMIT 1`,
		res.Subscription.ID,
	).Scan(&activityType).Error; err != nil {
		t.Fatalf("read activity: %v", err)
	}
	if activityType != "amount_recomputed" {
		t.Fatalf("expected amount_recomputed activity, got %s", activityType)
	}
}

func TestUpdateRejectsIllegalTransition(t *testing.T) {
	f := setupSubscriptionService(t)

	res, err := f.svc.Create(f.ctx(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	status := "paused"
	_, err = f.svc.Update(f.ctx(), res.Subscription.ID.String(), subscriptiondomain.UpdateSubscriptionRequest{
		Status: &status,
	})
	if err != subscriptiondomain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition for draft->paused, got %v", err)
	}

	status = "active"
	updated, err := f.svc.Update(f.ctx(), res.Subscription.ID.String(), subscriptiondomain.UpdateSubscriptionRequest{
		Status: &status,
	})
	if err != nil {
		t.Fatalf("update draft->active: %v", err)
	}
	if updated.Subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", updated.Subscription.Status)
	}
}

func TestCancelCascadesCustomerStatus(t *testing.T) {
	f := setupSubscriptionService(t)

	created, err := f.svc.CreateLegacy(f.ctx(), subscriptiondomain.CreateLegacyRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
		Status:       "active",
	})
	if err != nil {
		t.Fatalf("create legacy: %v", err)
	}

	canceled, err := f.svc.Cancel(f.ctx(), created.ID.String())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != subscriptiondomain.SubscriptionStatusCanceled || canceled.CanceledAt == nil {
		t.Fatalf("expected canceled with timestamp, got %s", canceled.Status)
	}

	var customerStatus string
	if err := f.db.Raw(`SELECT subscription_status FROM customers WHERE id = ?`, f.customerID).Scan(&customerStatus).Error; err != nil {
		t.Fatalf("read customer: %v", err)
	}
	if customerStatus != "canceled" {
		t.Fatalf("expected canceled snapshot, got %s", customerStatus)
	}

	if _, err := f.svc.Cancel(f.ctx(), created.ID.String()); err != subscriptiondomain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on second cancel, got %v", err)
	}
}

func TestCreateLegacyTrial(t *testing.T) {
	f := setupSubscriptionService(t)

	created, err := f.svc.CreateLegacy(f.ctx(), subscriptiondomain.CreateLegacyRequest{
		CustomerID:   f.customerID.String(),
		PlanID:       f.planID.String(),
		BillingCycle: "monthly",
		Seats:        1,
		Status:       "trial",
		TrialDays:    30,
	})
	if err != nil {
		t.Fatalf("create legacy trial: %v", err)
	}
	if created.Status != subscriptiondomain.SubscriptionStatusTrial {
		t.Fatalf("expected trial, got %s", created.Status)
	}
	if created.TrialEndsAt == nil || !created.TrialEndsAt.Equal(f.clock.Now().AddDate(0, 0, 30)) {
		t.Fatalf("expected trial end 30 days out, got %v", created.TrialEndsAt)
	}
}
