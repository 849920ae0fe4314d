package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	coupondomain "github.com/brightpane/brightpane/internal/coupon/domain"
	"github.com/brightpane/brightpane/internal/tenantctx"
)

func (s *Server) CreateCoupon(c *gin.Context) {
	var req coupondomain.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.couponSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) ListCoupons(c *gin.Context) {
	resp, err := s.couponSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Coupons})
}

func (s *Server) DisableCoupon(c *gin.Context) {
	if err := s.couponSvc.Disable(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ValidateCoupon checks eligibility without consuming a redemption. The
// outcome is always 200: rejections are payload, not errors.
func (s *Server) ValidateCoupon(c *gin.Context) {
	var req struct {
		Code   string `json:"code"`
		PlanID string `json:"plan_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		AbortWithError(c, newValidationError("code", "missing_code", "coupon code is required"))
		return
	}

	if s.couponLimiter.Enabled() {
		tenantID, _ := tenantctx.TenantIDFromContext(c.Request.Context())
		res, err := s.couponLimiter.Allow(c.Request.Context(), tenantID)
		if err != nil {
			// Redis trouble must not take coupon validation down.
			s.log.Warn("coupon rate limiter unavailable", zap.Error(err))
		} else if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	var planID snowflake.ID
	if raw := strings.TrimSpace(req.PlanID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("plan_id", "invalid_plan_id", "invalid plan id"))
			return
		}
		planID = parsed
	}

	result, err := s.couponSvc.Validate(c.Request.Context(), req.Code, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
