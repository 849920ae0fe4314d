package service

import (
	"context"
	"errors"
	"strings"

	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	tenantdomain "github.com/brightpane/brightpane/internal/tenant/domain"
	"github.com/brightpane/brightpane/internal/tenantctx"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// RenderDocument renders the invoice PDF and persists the resulting path.
// Rendering is bounded by the configured timeout; callers treat failures as
// non-fatal.
func (s *Service) RenderDocument(ctx context.Context, id string) (string, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return "", invoicedomain.ErrInvalidTenant
	}
	if s.renderer == nil {
		return "", errors.New("renderer_not_configured")
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return "", invoicedomain.ErrInvoiceNotFound
	}

	invoice, err := s.repo.FindByID(ctx, s.db, tenantID, invoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil {
		return "", invoicedomain.ErrInvoiceNotFound
	}

	input, err := s.buildDocumentInput(ctx, tenantID, invoice)
	if err != nil {
		return "", err
	}

	renderCtx, cancel := context.WithTimeout(ctx, s.renderWait)
	defer cancel()

	path, err := s.renderer.Render(renderCtx, input)
	if err != nil {
		s.log.Warn("invoice document render failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return "", err
	}

	if err := s.repo.UpdatePDFPath(ctx, s.db, tenantID, invoiceID, path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Service) buildDocumentInput(ctx context.Context, tenantID snowflake.ID, invoice *invoicedomain.Invoice) (invoicedomain.DocumentInput, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, s.db, tenantID)
	if err != nil {
		return invoicedomain.DocumentInput{}, err
	}
	if tenant == nil {
		return invoicedomain.DocumentInput{}, tenantdomain.ErrTenantNotFound
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, tenantID, invoice.CustomerID)
	if err != nil {
		return invoicedomain.DocumentInput{}, err
	}
	customerName := ""
	if customer != nil {
		customerName = customer.Name
	}

	lines, err := s.repo.ListLines(ctx, s.db, tenantID, invoice.ID)
	if err != nil {
		return invoicedomain.DocumentInput{}, err
	}

	return invoicedomain.DocumentInput{
		Number:       invoice.Number,
		TenantName:   tenant.Name,
		CustomerName: customerName,
		Status:       string(invoice.Status),
		Currency:     invoice.Currency,
		IssuedAt:     invoice.IssuedAt,
		DueAt:        invoice.DueAt,
		Subtotal:     invoice.Subtotal,
		Tax:          invoice.Tax,
		Total:        invoice.Total,
		Notes:        invoice.Notes,
		Lines:        lines,
	}, nil
}
