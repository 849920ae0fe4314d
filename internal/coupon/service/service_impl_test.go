package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/coupon/domain"
	"github.com/brightpane/brightpane/internal/coupon/repository"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupCouponService(t *testing.T, now time.Time) (domain.Service, *gorm.DB, *clock.FakeClock) {
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
	if err := db.AutoMigrate(&domain.Coupon{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fake := clock.NewFakeClock(now)
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: mustNode(t),
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, db, fake
}

func TestValidateRejectionOrder(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc, _, fake := setupCouponService(t, now)
	node := mustNode(t)
	tenantID := node.Generate()
	planID := node.Generate()
	otherPlanID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	res, err := svc.Validate(ctx, "MISSING", planID)
	if err != nil {
		t.Fatalf("validate missing: %v", err)
	}
	if res.Valid || res.Reason != domain.ReasonNotFound {
		t.Fatalf("expected coupon_not_found, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	expiry := now.Add(24 * time.Hour)
	coupon, err := svc.Create(ctx, domain.CreateCouponRequest{
		Code:              "spring20",
		Kind:              "percentage",
		Value:             20,
		ApplicablePlanIDs: []string{planID.String()},
		ExpiresAt:         &expiry,
	})
	if err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	if coupon.Code != "SPRING20" {
		t.Fatalf("expected normalized code SPRING20, got %s", coupon.Code)
	}

	res, err = svc.Validate(ctx, "spring20", planID)
	if err != nil {
		t.Fatalf("validate active: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid coupon, got reason %s", res.Reason)
	}
	if res.Coupon == nil || res.Coupon.ID != coupon.ID {
		t.Fatalf("expected coupon payload on valid result")
	}

	res, err = svc.Validate(ctx, "SPRING20", otherPlanID)
	if err != nil {
		t.Fatalf("validate wrong plan: %v", err)
	}
	if res.Valid || res.Reason != domain.ReasonNotApplicable {
		t.Fatalf("expected coupon_not_applicable, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	fake.Advance(48 * time.Hour)
	res, err = svc.Validate(ctx, "SPRING20", planID)
	if err != nil {
		t.Fatalf("validate expired: %v", err)
	}
	if res.Valid || res.Reason != domain.ReasonExpired {
		t.Fatalf("expected coupon_expired, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	if err := svc.Disable(ctx, coupon.ID.String()); err != nil {
		t.Fatalf("disable: %v", err)
	}
	res, err = svc.Validate(ctx, "SPRING20", planID)
	if err != nil {
		t.Fatalf("validate disabled: %v", err)
	}
	if res.Valid || res.Reason != domain.ReasonNotActive {
		t.Fatalf("expected coupon_not_active, got valid=%v reason=%s", res.Valid, res.Reason)
	}
}

func TestValidateExhausted(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc, db, _ := setupCouponService(t, now)
	node := mustNode(t)
	tenantID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	max := int64(1)
	coupon, err := svc.Create(ctx, domain.CreateCouponRequest{
		Code:           "ONCE",
		Kind:           "fixed_amount",
		Value:          500,
		MaxRedemptions: &max,
	})
	if err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	if err := svc.Redeem(ctx, db, coupon.ID); err != nil {
		t.Fatalf("redeem first: %v", err)
	}

	res, err := svc.Validate(ctx, "ONCE", 0)
	if err != nil {
		t.Fatalf("validate exhausted: %v", err)
	}
	if res.Valid || res.Reason != domain.ReasonExhausted {
		t.Fatalf("expected coupon_exhausted, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	if err := svc.Redeem(ctx, db, coupon.ID); err != domain.ErrCouponExhausted {
		t.Fatalf("expected ErrCouponExhausted, got %v", err)
	}
}

func TestRedeemConcurrentSingleSlot(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc, db, _ := setupCouponService(t, now)
	node := mustNode(t)
	tenantID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	max := int64(1)
	coupon, err := svc.Create(ctx, domain.CreateCouponRequest{
		Code:           "LAST-SLOT",
		Kind:           "percentage",
		Value:          10,
		MaxRedemptions: &max,
	})
	if err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Redeem(ctx, db, coupon.ID)
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		switch err {
		case nil:
			successes++
		case domain.ErrCouponExhausted:
		default:
			t.Fatalf("redeem: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 successful redemption, got %d", successes)
	}

	var count int64
	if err := db.Raw("SELECT redemption_count FROM coupons WHERE id = ?", coupon.ID).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected redemption_count 1, got %d", count)
	}
}

func TestCreateValidation(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc, _, _ := setupCouponService(t, now)
	node := mustNode(t)
	tenantID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	if _, err := svc.Create(ctx, domain.CreateCouponRequest{Code: "BAD", Kind: "bogus", Value: 10}); err != domain.ErrInvalidCouponKind {
		t.Fatalf("expected ErrInvalidCouponKind, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateCouponRequest{Code: "BAD", Kind: "percentage", Value: 120}); err != domain.ErrInvalidValue {
		t.Fatalf("expected ErrInvalidValue for percentage over 100, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateCouponRequest{Code: "BAD", Kind: "fixed_amount", Value: 0}); err != domain.ErrInvalidValue {
		t.Fatalf("expected ErrInvalidValue for zero value, got %v", err)
	}

	if _, err := svc.Create(ctx, domain.CreateCouponRequest{Code: "DUP", Kind: "percentage", Value: 5}); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateCouponRequest{Code: "dup", Kind: "percentage", Value: 5}); err != domain.ErrCouponExists {
		t.Fatalf("expected ErrCouponExists, got %v", err)
	}
}
