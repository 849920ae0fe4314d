package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	activitydomain "github.com/brightpane/brightpane/internal/activity/domain"
	"github.com/brightpane/brightpane/internal/clock"
	"github.com/brightpane/brightpane/internal/config"
	customerrepo "github.com/brightpane/brightpane/internal/customer/repository"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	invoicerepo "github.com/brightpane/brightpane/internal/invoice/repository"
	"github.com/brightpane/brightpane/internal/pricing"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
	tenantdomain "github.com/brightpane/brightpane/internal/tenant/domain"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/brightpane/brightpane/pkg/db"
	"github.com/brightpane/brightpane/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dueAfter = 30 * 24 * time.Hour

type ServiceParam struct {
	fx.In

	Config       config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         invoicerepo.Repository
	TenantRepo   tenantdomain.Repository
	CustomerRepo customerrepo.Repository
	ActivitySvc  activitydomain.Service
	Renderer     invoicedomain.DocumentRenderer `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         invoicerepo.Repository
	tenantRepo   tenantdomain.Repository
	customerRepo customerrepo.Repository
	activitySvc  activitydomain.Service
	renderer     invoicedomain.DocumentRenderer
	renderWait   time.Duration
}

func NewService(p ServiceParam) invoicedomain.Service {
	wait := time.Duration(p.Config.RenderTimeoutSeconds) * time.Second
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("invoice.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		tenantRepo:   p.TenantRepo,
		customerRepo: p.CustomerRepo,
		activitySvc:  p.ActivitySvc,
		renderer:     p.Renderer,
		renderWait:   wait,
	}
}

func (s *Service) GenerateForSubscription(ctx context.Context, tx *gorm.DB, input invoicedomain.GenerateInput) (invoicedomain.Invoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTenant
	}
	if input.SubscriptionID == 0 || input.CustomerID == 0 || input.Seats < 1 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoice
	}

	number, err := s.nextNumber(ctx, tx, tenantID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	scaledBase := pricing.ScaleForCycle(input.BaseAmount, input.Cycle)
	accountAmount, couponAmount := pricing.ClampLineAmounts(
		scaledBase,
		pricing.ScaleForCycle(input.AccountDiscountAmount, input.Cycle),
		pricing.ScaleForCycle(input.CouponDiscountAmount, input.Cycle),
	)

	now := s.clock.Now()
	subscriptionID := input.SubscriptionID
	invoice := invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		SubscriptionID: &subscriptionID,
		CustomerID:     input.CustomerID,
		Number:         number,
		Status:         invoicedomain.InvoiceStatusDraft,
		Subtotal:       scaledBase - accountAmount - couponAmount,
		Tax:            input.Tax,
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		IssuedAt:       now,
		DueAt:          now.Add(dueAfter),
		Notes:          input.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	invoice.Total = invoice.Subtotal + invoice.Tax
	if invoice.Currency == "" {
		invoice.Currency = "USD"
	}

	lines := s.buildSubscriptionLines(&invoice, input, scaledBase, accountAmount, couponAmount, now)

	if err := s.repo.Insert(ctx, tx, &invoice, lines); err != nil {
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

// buildSubscriptionLines emits the ordered first-invoice lines: base plan
// charge, extra seats when per-seat pricing applies, then negative discount
// lines. The line total always reconciles with the invoice subtotal.
func (s *Service) buildSubscriptionLines(
	invoice *invoicedomain.Invoice,
	input invoicedomain.GenerateInput,
	scaledBase, accountAmount, couponAmount int64,
	now time.Time,
) []invoicedomain.LineItem {
	lines := make([]invoicedomain.LineItem, 0, 4)
	position := 0

	appendLine := func(description string, quantity, unitAmount, amount int64) {
		position++
		lines = append(lines, invoicedomain.LineItem{
			ID:          s.genID.Generate(),
			TenantID:    invoice.TenantID,
			InvoiceID:   invoice.ID,
			Position:    position,
			Description: description,
			Quantity:    quantity,
			UnitAmount:  unitAmount,
			Amount:      amount,
			CreatedAt:   now,
		})
	}

	seatUnit := pricing.ScaleForCycle(input.SeatUnitAmount, input.Cycle)
	extraSeats := int64(input.Seats - 1)
	planAmount := scaledBase
	if seatUnit > 0 && extraSeats > 0 {
		planAmount = scaledBase - seatUnit*extraSeats
	}

	appendLine(fmt.Sprintf("%s plan (%s)", input.PlanName, input.Cycle), 1, planAmount, planAmount)
	if seatUnit > 0 && extraSeats > 0 {
		appendLine("Additional seats", extraSeats, seatUnit, seatUnit*extraSeats)
	}
	if accountAmount > 0 {
		appendLine("Account discount", 1, -accountAmount, -accountAmount)
	}
	if couponAmount > 0 {
		appendLine(fmt.Sprintf("Coupon %s", input.CouponCode), 1, -couponAmount, -couponAmount)
	}
	return lines
}

func (s *Service) CreateStandalone(ctx context.Context, req invoicedomain.CreateStandaloneRequest) (invoicedomain.Invoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTenant
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrCustomerNotFound
	}
	if len(req.Lines) == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoice
	}
	for _, line := range req.Lines {
		if strings.TrimSpace(line.Description) == "" || line.Quantity < 1 {
			return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoice
		}
	}

	var created invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.FindByID(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return invoicedomain.ErrCustomerNotFound
		}

		number, err := s.nextNumber(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		invoice := invoicedomain.Invoice{
			ID:         s.genID.Generate(),
			TenantID:   tenantID,
			CustomerID: customerID,
			Number:     number,
			Status:     invoicedomain.InvoiceStatusDraft,
			Tax:        req.Tax,
			Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
			IssuedAt:   now,
			DueAt:      now.Add(dueAfter),
			Notes:      req.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if invoice.Currency == "" {
			invoice.Currency = "USD"
		}

		lines := make([]invoicedomain.LineItem, 0, len(req.Lines))
		for i, line := range req.Lines {
			invoice.Subtotal += line.Amount
			lines = append(lines, invoicedomain.LineItem{
				ID:          s.genID.Generate(),
				TenantID:    tenantID,
				InvoiceID:   invoice.ID,
				Position:    i + 1,
				Description: strings.TrimSpace(line.Description),
				Quantity:    line.Quantity,
				UnitAmount:  line.UnitAmount,
				Amount:      line.Amount,
				CreatedAt:   now,
			})
		}
		invoice.Total = invoice.Subtotal + invoice.Tax

		if err := s.repo.Insert(ctx, tx, &invoice, lines); err != nil {
			return err
		}
		created = invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidTenant
	}

	invoices, err := s.repo.List(ctx, s.db, tenantID, req)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	size := req.Pagination.PageSize
	if size <= 0 {
		size = 10
	}
	pageInfo := &pagination.PageInfo{}
	if len(invoices) > size {
		pageInfo.HasMore = true
		invoices = invoices[:size]
	}
	if len(invoices) > 0 {
		last := invoices[len(invoices)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.Format(time.RFC3339Nano),
		})
		if err == nil {
			pageInfo.NextPageToken = token
		}
	}

	return invoicedomain.ListInvoiceResponse{Invoices: invoices, PageInfo: pageInfo}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceDetail, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidTenant
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvoiceNotFound
	}

	invoice, err := s.repo.FindByID(ctx, s.db, tenantID, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if invoice == nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvoiceNotFound
	}

	lines, err := s.repo.ListLines(ctx, s.db, tenantID, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	return invoicedomain.InvoiceDetail{Invoice: *invoice, Lines: lines}, nil
}

func (s *Service) Finalize(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTenant
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}

	var finalized invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.Status == invoicedomain.InvoiceStatusFinal {
			return invoicedomain.ErrAlreadyFinalized
		}
		if invoice.Status != invoicedomain.InvoiceStatusDraft {
			return invoicedomain.ErrNotDraft
		}

		invoice.Status = invoicedomain.InvoiceStatusFinal
		invoice.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, invoice); err != nil {
			return err
		}
		finalized = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice finalized",
		zap.String("invoice_id", finalized.ID.String()),
		zap.String("number", finalized.Number),
	)
	return finalized, nil
}

func (s *Service) MarkPaid(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidTenant
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}

	var paid invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if !invoicedomain.CanTransition(invoice.Status, invoicedomain.InvoiceStatusPaid) {
			return invoicedomain.ErrNotPayable
		}

		now := s.clock.Now()
		invoice.Status = invoicedomain.InvoiceStatusPaid
		invoice.PaidAt = &now
		invoice.UpdatedAt = now
		if err := s.repo.UpdateStatus(ctx, tx, invoice); err != nil {
			return err
		}

		if invoice.SubscriptionID != nil {
			if err := s.activateDraftSubscription(ctx, tx, tenantID, *invoice.SubscriptionID, invoice.CustomerID, now); err != nil {
				return err
			}
		}

		paid = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice paid",
		zap.String("invoice_id", paid.ID.String()),
		zap.String("number", paid.Number),
	)
	return paid, nil
}

// activateDraftSubscription moves a draft subscription to active when its
// first invoice is paid. Paying the invoice of an already active subscription
// is a no-op here. The customer may hold at most one active subscription, so
// the existing-active check locks before the status flip; a stale draft whose
// customer went active through another path conflicts instead of activating.
func (s *Service) activateDraftSubscription(ctx context.Context, tx *gorm.DB, tenantID, subscriptionID, customerID snowflake.ID, now time.Time) error {
	query := `SELECT number FROM subscriptions
		 WHERE tenant_id = ? AND customer_id = ? AND status = 'active' AND id != ?`
	if tx.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	var existingNumber string
	if err := tx.WithContext(ctx).Raw(query, tenantID, customerID, subscriptionID).Scan(&existingNumber).Error; err != nil {
		return err
	}
	if existingNumber != "" {
		return &subscriptiondomain.ConflictError{ExistingNumber: existingNumber}
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = 'active', updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = 'draft'`,
		now,
		tenantID,
		subscriptionID,
	)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return &subscriptiondomain.ConflictError{}
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}

	if err := tx.WithContext(ctx).Exec(
		`UPDATE customers
		 SET subscription_status = 'active', updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		now,
		tenantID,
		customerID,
	).Error; err != nil {
		return err
	}

	return s.activitySvc.Append(ctx, tx, activitydomain.Entry{
		SubscriptionID: subscriptionID,
		Type:           activitydomain.TypeActivated,
		Description:    "Subscription activated on first payment",
		Metadata:       map[string]any{"from": "draft", "to": "active"},
	})
}

func (s *Service) nextNumber(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) (string, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, tx, tenantID)
	if err != nil {
		return "", err
	}
	if tenant == nil {
		return "", tenantdomain.ErrTenantNotFound
	}

	seq, err := s.tenantRepo.NextSequence(ctx, tx, tenantID, tenantdomain.SequenceInvoice)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%d", strings.ToUpper(tenant.Code), seq), nil
}
