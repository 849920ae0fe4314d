package repository

import (
	"context"

	"github.com/brightpane/brightpane/internal/invoice/domain"
	"github.com/brightpane/brightpane/pkg/db/option"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error)
	// FindByIDForUpdate locks the row for the duration of the transaction on
	// dialects that support it.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, req domain.ListInvoiceRequest) ([]domain.Invoice, error)
	ListLines(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) ([]domain.LineItem, error)
	Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice, lines []domain.LineItem) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error
	UpdatePDFPath(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, path string) error
}

type repository struct{}

func Provide() Repository {
	return &repository{}
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error) {
	return findOne(ctx, db, tenantID, id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error) {
	if tx.Dialector.Name() != "sqlite" {
		var invoice domain.Invoice
		err := tx.WithContext(ctx).Raw(
			`SELECT * FROM invoices WHERE tenant_id = ? AND id = ? FOR UPDATE`,
			tenantID,
			id,
		).Scan(&invoice).Error
		if err != nil {
			return nil, err
		}
		if invoice.ID == 0 {
			return nil, nil
		}
		return &invoice, nil
	}
	return findOne(ctx, tx, tenantID, id)
}

func findOne(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM invoices WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, req domain.ListInvoiceRequest) ([]domain.Invoice, error) {
	opts := []option.QueryOption{
		option.ApplyOperator(option.Condition{Field: "tenant_id", Operator: option.EQ, Value: tenantID}),
	}
	if req.Status != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: *req.Status}))
	}
	if req.CustomerID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "customer_id", Operator: option.EQ, Value: *req.CustomerID}))
	}
	opts = append(opts,
		option.WithSortBy(option.WithQuerySortBy("created_at", "desc", nil)),
		option.ApplyPagination(req.Pagination),
	)

	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var invoices []domain.Invoice
	err := stmt.Find(&invoices).Error
	return invoices, err
}

func (r *repository) ListLines(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) ([]domain.LineItem, error) {
	var lines []domain.LineItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("position asc").
		Find(&lines).Error
	return lines, err
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice, lines []domain.LineItem) error {
	if err := db.WithContext(ctx).Create(invoice).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) UpdateStatus(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, paid_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		invoice.Status,
		invoice.PaidAt,
		invoice.UpdatedAt,
		invoice.TenantID,
		invoice.ID,
	).Error
}

func (r *repository) UpdatePDFPath(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, path string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET pdf_path = ? WHERE tenant_id = ? AND id = ?`,
		path,
		tenantID,
		id,
	).Error
}
