// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusFinal    InvoiceStatus = "final"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusOverdue  InvoiceStatus = "overdue"
	InvoiceStatusCanceled InvoiceStatus = "canceled"
)

// Invoice is a billing document. SubscriptionID is nil for standalone
// invoices. Rows are immutable after creation except status, paid_at and
// pdf_path.
type Invoice struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	TenantID       snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_invoices_tenant_number"`
	SubscriptionID *snowflake.ID `gorm:"index"`
	CustomerID     snowflake.ID  `gorm:"not null;index"`
	Number         string        `gorm:"type:text;not null;uniqueIndex:ux_invoices_tenant_number"`
	Status         InvoiceStatus `gorm:"type:text;not null;default:'draft'"`
	Subtotal       int64         `gorm:"not null;default:0"`
	Tax            int64         `gorm:"not null;default:0"`
	Total          int64         `gorm:"not null;default:0"`
	Currency       string        `gorm:"type:text;not null;default:'USD'"`
	IssuedAt       time.Time     `gorm:"not null"`
	DueAt          time.Time     `gorm:"not null"`
	PaidAt         *time.Time    `gorm:""`
	PDFPath        *string       `gorm:"column:pdf_path;type:text"`
	Notes          string        `gorm:"type:text"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItem is one ordered line on an invoice. Amount is negative only for
// discount lines.
type LineItem struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	TenantID    snowflake.ID `gorm:"not null;index"`
	InvoiceID   snowflake.ID `gorm:"not null;index"`
	Position    int          `gorm:"not null"`
	Description string       `gorm:"type:text;not null"`
	Quantity    int64        `gorm:"not null;default:1"`
	UnitAmount  int64        `gorm:"not null"`
	Amount      int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }

// ParseStatus validates a status token.
func ParseStatus(value string) (InvoiceStatus, error) {
	switch status := InvoiceStatus(value); status {
	case InvoiceStatusDraft, InvoiceStatusFinal, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCanceled:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// isTransitionAllowed is the single source of truth for invoice status
// changes. paid, overdue and canceled have no outgoing edges.
func isTransitionAllowed(from, to InvoiceStatus) bool {
	switch from {
	case InvoiceStatusDraft:
		return to == InvoiceStatusFinal || to == InvoiceStatusPaid || to == InvoiceStatusCanceled
	case InvoiceStatusFinal:
		return to == InvoiceStatusPaid || to == InvoiceStatusCanceled
	default:
		return false
	}
}

// CanTransition reports whether the status change is a legal edge.
func CanTransition(from, to InvoiceStatus) bool {
	return isTransitionAllowed(from, to)
}
