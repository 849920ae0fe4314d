package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	activitydomain "github.com/brightpane/brightpane/internal/activity/domain"
	coupondomain "github.com/brightpane/brightpane/internal/coupon/domain"
	customerdomain "github.com/brightpane/brightpane/internal/customer/domain"
	invoicedomain "github.com/brightpane/brightpane/internal/invoice/domain"
	plandomain "github.com/brightpane/brightpane/internal/plan/domain"
	"github.com/brightpane/brightpane/internal/pricing"
	subscriptiondomain "github.com/brightpane/brightpane/internal/subscription/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrRateLimited maps to 429 with a Retry-After header set by the handler.
var ErrRateLimited = errors.New("rate_limited")

// ErrorHandlingMiddleware converts accumulated gin errors into a JSON body.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErrs *ValidationErrors
	if errors.As(err, &vErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErrs.Errors,
		}
	}

	var conflictErr *subscriptiondomain.ConflictError
	if errors.As(err, &conflictErr) {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictErr.Error(),
		}
	}

	var couponErr *subscriptiondomain.CouponRejectedError
	if errors.As(err, &couponErr) {
		if couponErr.NotFound() {
			return http.StatusNotFound, errorPayload{
				Type:    "not_found",
				Message: couponErr.Error(),
			}
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "coupon_rejected",
			Message: couponErr.Error(),
		}
	}

	switch {
	case isNotFound(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isStateConflict(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isInvalidInput(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func isNotFound(err error) bool {
	for _, target := range []error{
		gorm.ErrRecordNotFound,
		subscriptiondomain.ErrSubscriptionNotFound,
		subscriptiondomain.ErrCustomerNotFound,
		subscriptiondomain.ErrPlanNotFound,
		invoicedomain.ErrInvoiceNotFound,
		invoicedomain.ErrCustomerNotFound,
		invoicedomain.ErrDocumentNotRendered,
		coupondomain.ErrCouponNotFound,
		customerdomain.ErrNotFound,
		plandomain.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// State transitions that cannot proceed surface as 409s.
func isStateConflict(err error) bool {
	for _, target := range []error{
		subscriptiondomain.ErrInvalidTransition,
		invoicedomain.ErrAlreadyFinalized,
		invoicedomain.ErrNotDraft,
		invoicedomain.ErrNotPayable,
		coupondomain.ErrCouponExists,
		coupondomain.ErrCouponExhausted,
		plandomain.ErrPlanExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isInvalidInput(err error) bool {
	for _, target := range []error{
		subscriptiondomain.ErrInvalidSubscription,
		subscriptiondomain.ErrInvalidTargetStatus,
		subscriptiondomain.ErrInvalidTenant,
		invoicedomain.ErrInvalidInvoice,
		invoicedomain.ErrInvalidStatus,
		invoicedomain.ErrInvalidTenant,
		coupondomain.ErrInvalidCoupon,
		coupondomain.ErrInvalidCouponKind,
		coupondomain.ErrInvalidValue,
		coupondomain.ErrInvalidTenant,
		customerdomain.ErrInvalidCustomer,
		customerdomain.ErrInvalidDiscountKind,
		customerdomain.ErrInvalidDiscount,
		customerdomain.ErrInvalidTenant,
		plandomain.ErrInvalidPlan,
		plandomain.ErrInvalidPricingModel,
		plandomain.ErrInvalidAmount,
		plandomain.ErrInvalidTenant,
		activitydomain.ErrInvalidActivity,
		activitydomain.ErrInvalidTenant,
		pricing.ErrInvalidSeats,
		pricing.ErrInvalidBillingCycle,
		pricing.ErrMissingBasePrice,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
