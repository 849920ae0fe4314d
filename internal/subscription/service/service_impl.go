package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	activitydomain "github.com/brightpane/brightpane/internal/activity/domain"
	"github.com/brightpane/brightpane/internal/clock"
	coupondomain "github.com/brightpane/brightpane/internal/coupon/domain"
	customerdomain "github.com/brightpane/brightpane/internal/customer/domain"
	customerrepo "github.com/brightpane/brightpane/internal/customer/repository"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	plandomain "github.com/brightpane/brightpane/internal/plan/domain"
	planrepo "github.com/brightpane/brightpane/internal/plan/repository"
	"github.com/brightpane/brightpane/internal/pricing"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
	subscriptionrepo "github.com/brightpane/brightpane/internal/subscription/repository"
	tenantdomain "github.com/brightpane/brightpane/internal/tenant/domain"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/brightpane/brightpane/pkg/db"
	"github.com/brightpane/brightpane/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         subscriptionrepo.Repository
	PlanRepo     planrepo.Repository
	CustomerRepo customerrepo.Repository
	TenantRepo   tenantdomain.Repository
	CouponSvc    coupondomain.Service
	InvoiceSvc   invoicedomain.Service
	ActivitySvc  activitydomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         subscriptionrepo.Repository
	planRepo     planrepo.Repository
	customerRepo customerrepo.Repository
	tenantRepo   tenantdomain.Repository
	couponSvc    coupondomain.Service
	invoiceSvc   invoicedomain.Service
	activitySvc  activitydomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("subscription.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		planRepo:     p.PlanRepo,
		customerRepo: p.CustomerRepo,
		tenantRepo:   p.TenantRepo,
		couponSvc:    p.CouponSvc,
		invoiceSvc:   p.InvoiceSvc,
		activitySvc:  p.ActivitySvc,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.CreateSubscriptionResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrInvalidTenant
	}

	customerID, err := s.parseID(req.CustomerID, subscriptiondomain.ErrCustomerNotFound)
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}
	planID, err := s.parseID(req.PlanID, subscriptiondomain.ErrPlanNotFound)
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}
	cycle, err := pricing.ParseCycle(strings.TrimSpace(req.BillingCycle))
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}
	if req.Seats < 1 {
		return subscriptiondomain.CreateSubscriptionResponse{}, pricing.ErrInvalidSeats
	}

	couponCode := strings.ToUpper(strings.TrimSpace(req.CouponCode))

	var (
		created subscriptiondomain.Subscription
		invoice invoicedomain.Invoice
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.FindByID(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return subscriptiondomain.ErrCustomerNotFound
		}

		plan, err := s.planRepo.FindByID(ctx, tx, tenantID, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return subscriptiondomain.ErrPlanNotFound
		}

		existing, err := s.repo.FindActiveByCustomerForUpdate(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &subscriptiondomain.ConflictError{ExistingNumber: existing.Number}
		}

		var coupon *coupondomain.Coupon
		if couponCode != "" {
			result, err := s.couponSvc.Validate(ctx, couponCode, planID)
			if err != nil {
				return err
			}
			if !result.Valid {
				return &subscriptiondomain.CouponRejectedError{Reason: result.Reason}
			}
			coupon = result.Coupon
		}

		base, err := pricing.ResolveBaseAmount(planPricing(plan), cycle, req.Seats)
		if err != nil {
			return err
		}

		accountDiscount, err := s.customerRepo.FindDiscount(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}

		breakdown := pricing.ApplyDiscounts(base, accountPricingDiscount(accountDiscount), couponPricingDiscount(coupon))

		if coupon != nil {
			if err := s.couponSvc.Redeem(ctx, tx, coupon.ID); err != nil {
				if err == coupondomain.ErrCouponExhausted {
					return &subscriptiondomain.CouponRejectedError{Reason: coupondomain.ReasonExhausted}
				}
				return err
			}
		}

		now := s.clock.Now()
		periodStart := now
		periodEnd := pricing.PeriodEnd(periodStart, cycle)
		var trialEndsAt *time.Time
		if coupon != nil {
			switch coupon.Kind {
			case coupondomain.CouponKindFreeMonths:
				periodEnd = periodEnd.AddDate(0, int(coupon.Value), 0)
			case coupondomain.CouponKindTrialExtension:
				extended := now.AddDate(0, 0, int(coupon.Value))
				trialEndsAt = &extended
			}
		}

		seq, err := s.tenantRepo.NextSequence(ctx, tx, tenantID, tenantdomain.SequenceSubscription)
		if err != nil {
			return err
		}

		subscription := subscriptiondomain.Subscription{
			ID:                 s.genID.Generate(),
			TenantID:           tenantID,
			CustomerID:         customerID,
			PlanID:             planID,
			Number:             fmt.Sprintf("SUB-%d", seq),
			Status:             subscriptiondomain.SubscriptionStatusDraft,
			BillingCycle:       cycle,
			Seats:              req.Seats,
			Amount:             breakdown.NetAmount,
			Currency:           plan.Currency,
			DealRef:            strings.TrimSpace(req.DealRef),
			Notes:              req.Notes,
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
			TrialEndsAt:        trialEndsAt,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if coupon != nil {
			couponID := coupon.ID
			subscription.CouponID = &couponID
		}

		if err := s.repo.Insert(ctx, tx, &subscription); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return &subscriptiondomain.ConflictError{ExistingNumber: subscription.Number}
			}
			return err
		}

		generated, err := s.invoiceSvc.GenerateForSubscription(ctx, tx, invoiceInput(&subscription, plan, coupon, breakdown, req.Tax))
		if err != nil {
			return err
		}

		if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
			SubscriptionID: subscription.ID,
			Type:           activitydomain.TypeCreated,
			Description:    fmt.Sprintf("Subscription %s created on plan %s", subscription.Number, plan.Name),
			Metadata: map[string]any{
				"plan":          plan.Name,
				"billing_cycle": string(cycle),
				"seats":         req.Seats,
				"amount":        breakdown.NetAmount,
			},
		}); err != nil {
			return err
		}
		if coupon != nil {
			if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
				SubscriptionID: subscription.ID,
				Type:           activitydomain.TypeCouponApplied,
				Description:    fmt.Sprintf("Coupon %s applied", coupon.Code),
				Metadata: map[string]any{
					"coupon":          coupon.Code,
					"kind":            string(coupon.Kind),
					"discount_amount": breakdown.CouponDiscountAmount,
				},
			}); err != nil {
				return err
			}
		}

		if err := s.customerRepo.UpdateBillingSnapshot(ctx, tx, tenantID, customerID, plan.Name, string(subscription.Status)); err != nil {
			return err
		}

		created = subscription
		invoice = generated
		return nil
	})
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}

	// Rendering never fails the creation; the document can be regenerated.
	if _, err := s.invoiceSvc.RenderDocument(ctx, invoice.ID.String()); err != nil {
		s.log.Warn("first invoice document render failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", created.ID.String()),
		zap.String("number", created.Number),
		zap.String("invoice_number", invoice.Number),
	)
	return subscriptiondomain.CreateSubscriptionResponse{Subscription: created, Invoice: invoice}, nil
}

func (s *Service) CreateLegacy(ctx context.Context, req subscriptiondomain.CreateLegacyRequest) (subscriptiondomain.Subscription, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTenant
	}

	status, err := subscriptiondomain.ParseStatus(strings.TrimSpace(req.Status))
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if status != subscriptiondomain.SubscriptionStatusActive && status != subscriptiondomain.SubscriptionStatusTrial {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTargetStatus
	}

	customerID, err := s.parseID(req.CustomerID, subscriptiondomain.ErrCustomerNotFound)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	planID, err := s.parseID(req.PlanID, subscriptiondomain.ErrPlanNotFound)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	cycle, err := pricing.ParseCycle(strings.TrimSpace(req.BillingCycle))
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if req.Seats < 1 {
		return subscriptiondomain.Subscription{}, pricing.ErrInvalidSeats
	}

	var created subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.FindByID(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return subscriptiondomain.ErrCustomerNotFound
		}

		plan, err := s.planRepo.FindByID(ctx, tx, tenantID, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return subscriptiondomain.ErrPlanNotFound
		}

		if status == subscriptiondomain.SubscriptionStatusActive {
			existing, err := s.repo.FindActiveByCustomerForUpdate(ctx, tx, tenantID, customerID)
			if err != nil {
				return err
			}
			if existing != nil {
				return &subscriptiondomain.ConflictError{ExistingNumber: existing.Number}
			}
		}

		accountDiscount, err := s.customerRepo.FindDiscount(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}

		base, err := pricing.ResolveBaseAmount(planPricing(plan), cycle, req.Seats)
		if err != nil {
			return err
		}
		breakdown := pricing.ApplyDiscounts(base, accountPricingDiscount(accountDiscount), nil)

		now := s.clock.Now()
		var trialEndsAt *time.Time
		if status == subscriptiondomain.SubscriptionStatusTrial {
			days := req.TrialDays
			if days <= 0 {
				days = 14
			}
			ends := now.AddDate(0, 0, days)
			trialEndsAt = &ends
		}

		seq, err := s.tenantRepo.NextSequence(ctx, tx, tenantID, tenantdomain.SequenceSubscription)
		if err != nil {
			return err
		}

		subscription := subscriptiondomain.Subscription{
			ID:                 s.genID.Generate(),
			TenantID:           tenantID,
			CustomerID:         customerID,
			PlanID:             planID,
			Number:             fmt.Sprintf("SUB-%d", seq),
			Status:             status,
			BillingCycle:       cycle,
			Seats:              req.Seats,
			Amount:             breakdown.NetAmount,
			Currency:           plan.Currency,
			Notes:              req.Notes,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   pricing.PeriodEnd(now, cycle),
			TrialEndsAt:        trialEndsAt,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if err := s.repo.Insert(ctx, tx, &subscription); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return &subscriptiondomain.ConflictError{ExistingNumber: subscription.Number}
			}
			return err
		}

		if err := s.activitySvc.Append(ctx, tx, activitydomain.Entry{
			SubscriptionID: subscription.ID,
			Type:           activitydomain.TypeCreated,
			Description:    fmt.Sprintf("Subscription %s created as %s on plan %s", subscription.Number, status, plan.Name),
			Metadata: map[string]any{
				"plan":   plan.Name,
				"status": string(status),
			},
		}); err != nil {
			return err
		}

		if err := s.customerRepo.UpdateBillingSnapshot(ctx, tx, tenantID, customerID, plan.Name, string(status)); err != nil {
			return err
		}

		created = subscription
		return nil
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, req subscriptiondomain.ListSubscriptionRequest) (subscriptiondomain.ListSubscriptionResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return subscriptiondomain.ListSubscriptionResponse{}, subscriptiondomain.ErrInvalidTenant
	}

	subscriptions, err := s.repo.List(ctx, s.db, tenantID, req)
	if err != nil {
		return subscriptiondomain.ListSubscriptionResponse{}, err
	}

	size := req.Pagination.PageSize
	if size <= 0 {
		size = 10
	}
	pageInfo := &pagination.PageInfo{}
	if len(subscriptions) > size {
		pageInfo.HasMore = true
		subscriptions = subscriptions[:size]
	}
	if len(subscriptions) > 0 {
		last := subscriptions[len(subscriptions)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.Format(time.RFC3339Nano),
		})
		if err == nil {
			pageInfo.NextPageToken = token
		}
	}

	return subscriptiondomain.ListSubscriptionResponse{Subscriptions: subscriptions, PageInfo: pageInfo}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (subscriptiondomain.Subscription, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTenant
	}

	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrSubscriptionNotFound)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, tenantID, subscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if subscription == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *subscription, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func planPricing(plan *plandomain.Plan) pricing.PlanPricing {
	return pricing.PlanPricing{
		Model:         pricing.Model(plan.PricingModel),
		MonthlyAmount: plan.MonthlyAmount,
		YearlyAmount:  plan.YearlyAmount,
		PerSeatAmount: plan.PerSeatAmount,
	}
}

func accountPricingDiscount(discount *customerdomain.AccountDiscount) *pricing.Discount {
	if discount == nil {
		return nil
	}
	return &pricing.Discount{
		Kind:  pricing.DiscountKind(discount.Kind),
		Value: discount.Value,
	}
}

func couponPricingDiscount(coupon *coupondomain.Coupon) *pricing.Discount {
	if coupon == nil {
		return nil
	}
	return &pricing.Discount{
		Kind:  pricing.DiscountKind(coupon.Kind),
		Value: coupon.Value,
	}
}

func invoiceInput(
	subscription *subscriptiondomain.Subscription,
	plan *plandomain.Plan,
	coupon *coupondomain.Coupon,
	breakdown pricing.Breakdown,
	tax int64,
) invoicedomain.GenerateInput {
	input := invoicedomain.GenerateInput{
		SubscriptionID:        subscription.ID,
		CustomerID:            subscription.CustomerID,
		PlanName:              plan.Name,
		Cycle:                 subscription.BillingCycle,
		Seats:                 subscription.Seats,
		BaseAmount:            breakdown.BaseAmount,
		AccountDiscountAmount: breakdown.AccountDiscountAmount,
		CouponDiscountAmount:  breakdown.CouponDiscountAmount,
		Currency:              plan.Currency,
		Tax:                   tax,
		Notes:                 subscription.Notes,
	}
	if plan.PerSeatAmount != nil {
		input.SeatUnitAmount = *plan.PerSeatAmount
	}
	if coupon != nil {
		input.CouponCode = coupon.Code
	}
	return input
}
