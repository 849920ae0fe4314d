package domain

import (
	"context"
	"errors"
)

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type SetDiscountRequest struct {
	CustomerID string `json:"-"`
	Kind       string `json:"kind"`
	Value      int64  `json:"value"`
	Recurring  bool   `json:"recurring"`
	Notes      string `json:"notes"`
}

type ListCustomerResponse struct {
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context) (ListCustomerResponse, error)
	SetDiscount(ctx context.Context, req SetDiscountRequest) (AccountDiscount, error)
	RemoveDiscount(ctx context.Context, customerID string) error
	GetDiscount(ctx context.Context, customerID string) (*AccountDiscount, error)
}

var (
	ErrNotFound            = errors.New("customer_not_found")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidDiscountKind = errors.New("invalid_discount_kind")
	ErrInvalidDiscount     = errors.New("invalid_discount_value")
	ErrInvalidTenant       = errors.New("invalid_tenant")
)
