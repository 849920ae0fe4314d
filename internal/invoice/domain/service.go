package domain

import (
	"context"
	"errors"
	"time"

	"github.com/brightpane/brightpane/internal/pricing"
	"github.com/brightpane/brightpane/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// GenerateInput carries the resolved pricing of a new subscription into the
// first-invoice build. All amounts are monthly-equivalent minor units; the
// generator scales them to the billed period.
type GenerateInput struct {
	SubscriptionID        snowflake.ID
	CustomerID            snowflake.ID
	PlanName              string
	Cycle                 pricing.Cycle
	Seats                 int
	BaseAmount            int64
	SeatUnitAmount        int64
	AccountDiscountAmount int64
	CouponDiscountAmount  int64
	CouponCode            string
	Currency              string
	Tax                   int64
	Notes                 string
}

// StandaloneLine is a caller-provided line for a standalone invoice.
type StandaloneLine struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	Amount      int64  `json:"amount"`
}

type CreateStandaloneRequest struct {
	CustomerID string           `json:"customer_id"`
	Currency   string           `json:"currency"`
	Tax        int64            `json:"tax"`
	Notes      string           `json:"notes"`
	Lines      []StandaloneLine `json:"lines"`
}

type ListInvoiceRequest struct {
	Status     *InvoiceStatus
	CustomerID *snowflake.ID
	Pagination pagination.Pagination
}

type ListInvoiceResponse struct {
	Invoices []Invoice            `json:"invoices"`
	PageInfo *pagination.PageInfo `json:"page_info,omitempty"`
}

type InvoiceDetail struct {
	Invoice
	Lines []LineItem `json:"lines"`
}

// DocumentInput is the view handed to the document renderer.
type DocumentInput struct {
	Number       string
	TenantName   string
	CustomerName string
	Status       string
	Currency     string
	IssuedAt     time.Time
	DueAt        time.Time
	Subtotal     int64
	Tax          int64
	Total        int64
	Notes        string
	Lines        []LineItem
}

// DocumentRenderer produces the invoice document and returns the stored file
// path. Implementations must honor ctx cancellation.
type DocumentRenderer interface {
	Render(ctx context.Context, input DocumentInput) (string, error)
}

type Service interface {
	// GenerateForSubscription builds and persists the first invoice of a
	// subscription inside the caller's transaction.
	GenerateForSubscription(ctx context.Context, tx *gorm.DB, input GenerateInput) (Invoice, error)
	CreateStandalone(ctx context.Context, req CreateStandaloneRequest) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
	Finalize(ctx context.Context, id string) (Invoice, error)
	// MarkPaid records payment and, in the same transaction, activates a
	// linked draft subscription.
	MarkPaid(ctx context.Context, id string) (Invoice, error)
	// RenderDocument renders the invoice document and persists its path.
	// Failures are returned to the caller but never affect billing state.
	RenderDocument(ctx context.Context, id string) (string, error)
}

var (
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrInvalidInvoice      = errors.New("invalid_invoice")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrCustomerNotFound    = errors.New("customer_not_found")
	ErrDocumentNotRendered = errors.New("document_not_rendered")

	// Finalize rejections carry the wording surfaced to the console.
	ErrAlreadyFinalized = errors.New("already finalized")
	ErrNotDraft         = errors.New("only draft invoices can be finalized")
	ErrNotPayable       = errors.New("only draft or final invoices can be paid")
)
