package domain

import (
	"context"
	"errors"
)

type CreatePlanRequest struct {
	Name          string `json:"name"`
	Code          string `json:"code"`
	PricingModel  string `json:"pricing_model"`
	MonthlyAmount int64  `json:"monthly_amount"`
	YearlyAmount  int64  `json:"yearly_amount"`
	PerSeatAmount *int64 `json:"per_seat_amount"`
	Currency      string `json:"currency"`
}

type ListPlanResponse struct {
	Plans []Plan `json:"plans"`
}

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (Plan, error)
	GetByID(ctx context.Context, id string) (Plan, error)
	List(ctx context.Context) (ListPlanResponse, error)
}

var (
	ErrNotFound            = errors.New("plan_not_found")
	ErrInvalidPlan         = errors.New("invalid_plan")
	ErrInvalidPricingModel = errors.New("invalid_pricing_model")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrPlanExists          = errors.New("plan_exists")
)
