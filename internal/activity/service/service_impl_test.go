package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brightpane/brightpane/internal/activity/domain"
	"github.com/brightpane/brightpane/internal/activity/repository"
	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupActivityService(t *testing.T) (domain.Service, *clock.FakeClock) {
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
	if err := db.AutoMigrate(&domain.Activity{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, fake
}

func TestListNewestFirstCapped(t *testing.T) {
	svc, fake := setupActivityService(t)
	node, _ := snowflake.NewNode(2)
	tenantID := node.Generate()
	subscriptionID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	for i := 0; i < 25; i++ {
		err := svc.Append(ctx, nil, domain.Entry{
			SubscriptionID: subscriptionID,
			Type:           domain.TypeSeatAdded,
			Description:    fmt.Sprintf("seat change %d", i),
			Metadata:       map[string]any{"index": i},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		fake.Advance(time.Minute)
	}

	res, err := svc.List(ctx, subscriptionID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Activities) != domain.DefaultListLimit {
		t.Fatalf("expected %d entries, got %d", domain.DefaultListLimit, len(res.Activities))
	}
	if res.Activities[0].Description != "seat change 24" {
		t.Fatalf("expected newest entry first, got %s", res.Activities[0].Description)
	}
	for i := 1; i < len(res.Activities); i++ {
		if res.Activities[i].CreatedAt.After(res.Activities[i-1].CreatedAt) {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}

func TestAppendDefaultsActor(t *testing.T) {
	svc, _ := setupActivityService(t)
	node, _ := snowflake.NewNode(3)
	tenantID := node.Generate()
	subscriptionID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	if err := svc.Append(ctx, nil, domain.Entry{
		SubscriptionID: subscriptionID,
		Type:           domain.TypeCreated,
		Description:    "subscription created",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	res, err := svc.List(ctx, subscriptionID, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res.Activities) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(res.Activities))
	}
	if res.Activities[0].Actor != "system" {
		t.Fatalf("expected system actor, got %s", res.Activities[0].Actor)
	}
}

func TestAppendRequiresSubscription(t *testing.T) {
	svc, _ := setupActivityService(t)
	node, _ := snowflake.NewNode(4)
	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())

	err := svc.Append(ctx, nil, domain.Entry{Type: domain.TypeCreated})
	if err != domain.ErrInvalidActivity {
		t.Fatalf("expected ErrInvalidActivity, got %v", err)
	}
}
